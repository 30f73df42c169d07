package cache

import (
	"slices"

	"go.trai.ch/weave/internal/core/domain"
)

// Watch records the files one producer invocation read and wrote.
type Watch struct {
	baseline   map[string]domain.File
	inputs     map[string]struct{}
	internal   map[string]struct{}
	external   map[string]struct{}
	suppressed bool
}

// NewWatch opens a watch over the given file table snapshot.
func NewWatch(baseline map[string]domain.File) *Watch {
	return &Watch{
		baseline: baseline,
		inputs:   make(map[string]struct{}),
		internal: make(map[string]struct{}),
		external: make(map[string]struct{}),
	}
}

// AddInput records that name was read.
func (w *Watch) AddInput(name string) {
	w.inputs[name] = struct{}{}
}

// AddOutputInternal records that name was changed through the tree API.
func (w *Watch) AddOutputInternal(name string) {
	w.internal[name] = struct{}{}
}

// AddOutputExternal records that name was changed on disk by another process.
func (w *Watch) AddOutputExternal(name string) {
	w.external[name] = struct{}{}
}

// Suppress marks the invocation as not replayable.
func (w *Watch) Suppress() {
	w.suppressed = true
}

// Suppressed reports whether Suppress was called.
func (w *Watch) Suppressed() bool {
	return w.suppressed
}

// Inputs returns every input as it was when the watch opened, sorted by name.
func (w *Watch) Inputs() []domain.File {
	names := sortedKeys(w.inputs)
	files := make([]domain.File, len(names))
	for i, name := range names {
		f, ok := w.baseline[name]
		if !ok {
			f = domain.EmptyFile(name)
		}
		files[i] = f
	}
	return files
}

// OutputNames returns the union of internal and external outputs, sorted.
func (w *Watch) OutputNames() []string {
	names := sortedKeys(w.internal)
	for name := range w.external {
		if _, ok := w.internal[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// ExternalNames returns the names changed on disk, sorted.
func (w *Watch) ExternalNames() []string {
	return sortedKeys(w.external)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
