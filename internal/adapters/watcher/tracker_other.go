//go:build !linux

package watcher

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fsnotifyTracker records writes and creations. fsnotify has no read events, so
// nothing is ever reported as accessed.
type fsnotifyTracker struct {
	fsWatcher *fsnotify.Watcher
	mu        sync.Mutex
	seen      *activity
	err       error
	done      chan struct{}
}

func newPlatformTracker() (tracker, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	t := &fsnotifyTracker{
		fsWatcher: watcher,
		seen:      newActivity(),
		done:      make(chan struct{}),
	}
	go t.processEvents()
	return t, nil
}

func (t *fsnotifyTracker) Add(dir string) error {
	return t.fsWatcher.Add(dir)
}

func (t *fsnotifyTracker) Stop() (*activity, error) {
	closeErr := t.fsWatcher.Close()
	<-t.done

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = closeErr
	}
	return t.seen, t.err
}

func (t *fsnotifyTracker) processEvents() {
	defer close(t.done)

	for {
		select {
		case event, ok := <-t.fsWatcher.Events:
			if !ok {
				return
			}
			t.record(event)
		case err, ok := <-t.fsWatcher.Errors:
			if !ok {
				return
			}
			if err == fsnotify.ErrEventOverflow { //nolint:errorlint // sentinel identity
				t.mu.Lock()
				t.seen.overflow = true
				t.mu.Unlock()
				continue
			}
			t.mu.Lock()
			if t.err == nil {
				t.err = err
			}
			t.mu.Unlock()
		}
	}
}

func (t *fsnotifyTracker) record(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !shouldSkipDirectories[info.Name()] {
				for dir := range watchRecursively(event.Name) {
					_ = t.fsWatcher.Add(dir)
				}
			}
			return
		}
	}

	t.mu.Lock()
	t.seen.written[event.Name] = true
	t.mu.Unlock()
}
