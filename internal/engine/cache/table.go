// Package cache implements the incremental action cache: the file table a producer edits,
// the watch scope that records what it touched, and the manager that replays or re-runs it.
package cache

import (
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/weave/internal/core/domain"
	"go.trai.ch/zerr"
)

// FileTable maps file names to their current content.
//
// Entries are replaced whole, never edited in place. The table is the cache's view of the
// working directory; it reaches the disk only through WriteAll.
type FileTable struct {
	files   map[string]domain.File
	written map[string]uint64
}

// NewFileTable returns an empty table.
func NewFileTable() *FileTable {
	return &FileTable{
		files:   make(map[string]domain.File),
		written: make(map[string]uint64),
	}
}

// Get returns the file registered under name, registering an empty one on first access.
func (t *FileTable) Get(name string) domain.File {
	if f, ok := t.files[name]; ok {
		return f
	}
	f := domain.EmptyFile(name)
	t.files[name] = f
	return f
}

// Lookup returns the file registered under name without registering it.
func (t *FileTable) Lookup(name string) (domain.File, bool) {
	f, ok := t.files[name]
	return f, ok
}

// current returns the registered file or the empty file for name.
func (t *FileTable) current(name string) domain.File {
	if f, ok := t.files[name]; ok {
		return f
	}
	return domain.EmptyFile(name)
}

// Set replaces the entry for f.Name.
func (t *FileTable) Set(f domain.File) {
	t.files[f.Name] = f
}

// Names returns the registered names in sorted order.
func (t *FileTable) Names() []string {
	names := make([]string, 0, len(t.files))
	for name := range t.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Snapshot returns a copy of the current name to file mapping.
func (t *FileTable) Snapshot() map[string]domain.File {
	out := make(map[string]domain.File, len(t.files))
	for name, f := range t.files {
		out[name] = f
	}
	return out
}

// AllUpToDate reports whether every given input equals the table's current file of that name.
// A name the table has never seen counts as empty.
func (t *FileTable) AllUpToDate(inputs []domain.File) bool {
	for _, in := range inputs {
		if !t.current(in.Name).Equal(in) {
			return false
		}
	}
	return true
}

// ApplyOutputs replaces the entry of every given file.
func (t *FileTable) ApplyOutputs(outputs []domain.File) {
	for _, f := range outputs {
		t.Set(f)
	}
}

// WriteAll materializes every file under dir.
//
// Files whose content has not changed since they were last written are skipped, as are
// empty files that were never written.
func (t *FileTable) WriteAll(dir string) error {
	for _, name := range t.Names() {
		f := t.files[name]
		digest := f.Digest()

		prev, seen := t.written[name]
		if seen && prev == digest {
			continue
		}
		if !seen && f.IsEmpty() {
			continue
		}

		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrMaterializeFailed.Error()), "file", name)
		}
		if err := os.WriteFile(path, f.Bytes(), domain.FilePerm); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrMaterializeFailed.Error()), "file", name)
		}
		t.written[name] = digest
	}
	return nil
}

// markSynced records that the disk already holds the current content of name.
func (t *FileTable) markSynced(name string) {
	t.written[name] = t.current(name).Digest()
}

// forget drops what is known about the disk copy of name so the next WriteAll rewrites it.
func (t *FileTable) forget(name string) {
	delete(t.written, name)
}
