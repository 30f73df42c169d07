package ports

import "context"

// FileChanges lists the regular files, relative to the observed root, that a run touched.
type FileChanges struct {
	// Accessed are files that were opened or read.
	Accessed []string
	// Modified are files that existed before the run and changed.
	Modified []string
	// Created are files that did not exist before the run.
	Created []string
}

// FileObserver reports which files a piece of work read and wrote on disk.
//
//go:generate mockgen -source=observer.go -destination=mocks/mock_observer.go -package=mocks
type FileObserver interface {
	// Observe runs fn and returns the file activity under root while it ran.
	// Directories are never reported.
	Observe(ctx context.Context, root string, fn func(ctx context.Context) error) (FileChanges, error)
}

// FileStamp identifies the content of a file at one point in time.
type FileStamp struct {
	Hash uint64
	Size int64
}

// Snapshotter records the content of every regular file under a directory.
type Snapshotter interface {
	// Snapshot returns the stamp of every regular file under root, keyed by slash-separated relative path.
	Snapshot(ctx context.Context, root string) (map[string]FileStamp, error)
}
