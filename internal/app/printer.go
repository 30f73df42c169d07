package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/weave/internal/ui/output"
	"go.trai.ch/weave/internal/ui/style"
)

// printer writes step results as a header line followed by the result text.
type printer struct {
	w       io.Writer
	header  lipgloss.Style
	muted   lipgloss.Style
	printed bool
}

func newPrinter(w io.Writer) *printer {
	r := output.Renderer(w)
	return &printer{
		w:      w,
		header: style.Header(r),
		muted:  style.Muted(r),
	}
}

func (p *printer) step(r stepResult) {
	if p.printed {
		_, _ = fmt.Fprintln(p.w)
	}
	p.printed = true

	line := p.header.Render(title(r.step))
	if r.cont {
		line += " " + p.muted.Render("(cont)")
	}
	_, _ = fmt.Fprintln(p.w, line)

	if r.value != "" {
		_, _ = io.WriteString(p.w, r.value)
		if !strings.HasSuffix(r.value, "\n") {
			_, _ = fmt.Fprintln(p.w)
		}
	}
}

// title names what a step worked on.
func title(s domain.Step) string {
	switch s.Kind {
	case domain.StepCommand:
		return "$ " + strings.Join(s.Command, " ")
	case domain.StepRun, domain.StepCompile:
		return string(s.Kind) + " " + s.Source
	default:
		return s.Source
	}
}
