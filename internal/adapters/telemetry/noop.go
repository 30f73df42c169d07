package telemetry

import (
	"context"

	"go.trai.ch/weave/internal/core/ports"
)

var _ ports.Tracer = NoOpTracer{}

// NoOpTracer is a ports.Tracer whose spans record nothing. It stands in for the OTel
// tracer where cache decisions need no reporting, such as in tests.
type NoOpTracer struct{}

// NewNoOpTracer creates a new NoOpTracer.
func NewNoOpTracer() NoOpTracer {
	return NoOpTracer{}
}

// Start returns ctx unchanged together with a span that ignores every call.
func (NoOpTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, noOpSpan{}
}

type noOpSpan struct{}

func (noOpSpan) End()                         {}
func (noOpSpan) RecordError(error)            {}
func (noOpSpan) SetAttribute(_ string, _ any) {}
