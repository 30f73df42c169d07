package fs

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/weave/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

var _ ports.Snapshotter = (*Hasher)(nil)

// Hasher computes content stamps of files.
type Hasher struct {
	walker  *Walker
	ignores []string
}

// NewHasher creates a new Hasher. Files whose name matches one of ignores are left out of snapshots.
func NewHasher(walker *Walker, ignores ...string) *Hasher {
	return &Hasher{walker: walker, ignores: ignores}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (ports.FileStamp, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return ports.FileStamp{}, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return ports.FileStamp{}, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return ports.FileStamp{Hash: hasher.Sum64(), Size: n}, nil
}

// Snapshot hashes every regular file under root in parallel.
// A missing root yields an empty snapshot; files removed while hashing are left out.
func (h *Hasher) Snapshot(ctx context.Context, root string) (map[string]ports.FileStamp, error) {
	stamps := make(map[string]ports.FileStamp)

	info, err := os.Stat(root)
	if errors.Is(err, iofs.ErrNotExist) {
		return stamps, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrSnapshotFailed.Error()), "root", root)
	}
	if !info.IsDir() {
		return nil, zerr.With(zerr.Wrap(iofs.ErrInvalid, domain.ErrSnapshotFailed.Error()), "root", root)
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	var walkErr error
	for path, err := range h.walker.WalkFiles(root, h.ignores) {
		if err != nil {
			walkErr = zerr.With(zerr.Wrap(err, domain.ErrSnapshotFailed.Error()), "path", path)
			break
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return zerr.With(zerr.Wrap(err, domain.ErrSnapshotFailed.Error()), "path", path)
			}

			stamp, err := h.ComputeFileHash(path)
			if errors.Is(err, iofs.ErrNotExist) {
				return nil
			}
			if err != nil {
				return zerr.Wrap(err, domain.ErrSnapshotFailed.Error())
			}

			mu.Lock()
			stamps[filepath.ToSlash(rel)] = stamp
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return stamps, nil
}
