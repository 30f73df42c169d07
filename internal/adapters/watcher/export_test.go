package watcher

import "go.trai.ch/weave/internal/core/ports"

// FakeTracker replays a fixed set of events.
type FakeTracker struct {
	Dirs     []string
	Accessed []string
	Written  []string
	Overflow bool
	AddErr   error
	StopErr  error
}

func (f *FakeTracker) Add(dir string) error {
	if f.AddErr != nil {
		return f.AddErr
	}
	f.Dirs = append(f.Dirs, dir)
	return nil
}

func (f *FakeTracker) Stop() (*activity, error) {
	seen := newActivity()
	for _, p := range f.Accessed {
		seen.accessed[p] = true
	}
	for _, p := range f.Written {
		seen.written[p] = true
	}
	seen.overflow = f.Overflow
	return seen, f.StopErr
}

// NewObserverWithTracker creates an Observer using t instead of the platform tracker.
func NewObserverWithTracker(snapshotter ports.Snapshotter, logger ports.Logger, t *FakeTracker) *Observer {
	o := NewObserver(snapshotter, logger)
	o.newTracker = func() (tracker, error) { return t, nil }
	return o
}
