// Package watcher reports the file activity of external processes in a working directory.
package watcher

import (
	"context"
	"io/fs"
	"iter"
	"path/filepath"
	"slices"

	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/weave/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileObserver = (*Observer)(nil)

// shouldSkipDirectories are directories that should not be watched.
var shouldSkipDirectories = map[string]bool{
	".git":   true,
	".jj":    true,
	".weave": true,
}

// activity is what a tracker saw while it was running, as absolute paths.
type activity struct {
	accessed map[string]bool
	written  map[string]bool
	overflow bool
}

func newActivity() *activity {
	return &activity{accessed: make(map[string]bool), written: make(map[string]bool)}
}

// tracker collects kernel file events for a set of directories.
type tracker interface {
	// Add starts watching dir, not recursively.
	Add(dir string) error
	// Stop ends watching and returns what was seen.
	Stop() (*activity, error)
}

// Observer implements ports.FileObserver by diffing snapshots taken around the observed
// work and merging in the events a tracker saw meanwhile.
type Observer struct {
	snapshotter ports.Snapshotter
	logger      ports.Logger
	newTracker  func() (tracker, error)
}

// NewObserver creates an Observer hashing files with snapshotter.
func NewObserver(snapshotter ports.Snapshotter, logger ports.Logger) *Observer {
	return &Observer{
		snapshotter: snapshotter,
		logger:      logger,
		newTracker:  newPlatformTracker,
	}
}

// Observe runs fn and reports the regular files under root it read, changed and created.
func (o *Observer) Observe(
	ctx context.Context,
	root string,
	fn func(ctx context.Context) error,
) (ports.FileChanges, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return ports.FileChanges{}, zerr.With(zerr.Wrap(err, domain.ErrObserveFailed.Error()), "root", root)
	}

	before, err := o.snapshotter.Snapshot(ctx, root)
	if err != nil {
		return ports.FileChanges{}, err
	}

	t, err := o.start(root)
	if err != nil {
		return ports.FileChanges{}, err
	}

	runErr := fn(ctx)

	seen, err := t.Stop()
	if err != nil {
		return ports.FileChanges{}, zerr.With(zerr.Wrap(err, domain.ErrObserveFailed.Error()), "root", root)
	}
	if runErr != nil {
		return ports.FileChanges{}, runErr
	}
	if seen.overflow {
		o.logger.Warn("file event queue overflowed; accessed files may be incomplete")
	}

	after, err := o.snapshotter.Snapshot(ctx, root)
	if err != nil {
		return ports.FileChanges{}, err
	}

	return diff(root, before, after, seen), nil
}

func (o *Observer) start(root string) (tracker, error) {
	t, err := o.newTracker()
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrObserveFailed.Error()), "root", root)
	}
	for dir := range watchRecursively(root) {
		if err := t.Add(dir); err != nil {
			_, _ = t.Stop()
			return nil, zerr.With(zerr.Wrap(err, domain.ErrObserveFailed.Error()), "dir", dir)
		}
	}
	return t, nil
}

// diff classifies the files of two snapshots. Event paths outside the snapshots are
// directories, skipped trees or files that no longer exist, and are dropped. Created
// files had nothing to read, so they are never reported as accessed.
func diff(root string, before, after map[string]ports.FileStamp, seen *activity) ports.FileChanges {
	var changes ports.FileChanges

	for name, stamp := range after {
		old, existed := before[name]
		switch {
		case !existed:
			changes.Created = append(changes.Created, name)
		case old != stamp || seen.written[filepath.Join(root, filepath.FromSlash(name))]:
			changes.Modified = append(changes.Modified, name)
		}
	}

	for path := range seen.accessed {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		name := filepath.ToSlash(rel)
		if _, ok := before[name]; ok {
			changes.Accessed = append(changes.Accessed, name)
		}
	}

	slices.Sort(changes.Accessed)
	slices.Sort(changes.Modified)
	slices.Sort(changes.Created)
	return changes
}

// watchRecursively walks the directory tree and yields all directories.
func watchRecursively(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Continue walking even if there's an error accessing a directory.
				return nil //nolint:nilerr // This is intentional - we want to skip problematic directories
			}
			if d.IsDir() {
				if path != root && shouldSkipDirectories[d.Name()] {
					return fs.SkipDir
				}
				if !yield(path) {
					return filepath.SkipAll
				}
			}
			return nil
		})
	}
}
