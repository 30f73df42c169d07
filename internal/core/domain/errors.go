package domain

import (
	"errors"

	"go.trai.ch/zerr"
)

var (
	// ErrFragmentNotFound is returned when a tree edit or recall names a fragment absent from the tree.
	ErrFragmentNotFound = zerr.New("named fragment not found")

	// ErrInvalidPlacement is returned when a placement kind is unknown or lacks a required anchor.
	ErrInvalidPlacement = zerr.New("invalid fragment placement")

	// ErrStoreOpenFailed is returned when the key-value store cannot be opened.
	ErrStoreOpenFailed = zerr.New("failed to open key-value store")

	// ErrStoreReadFailed is returned when a value cannot be read from the key-value store.
	ErrStoreReadFailed = zerr.New("failed to read from key-value store")

	// ErrStoreWriteFailed is returned when a value cannot be written to the key-value store.
	ErrStoreWriteFailed = zerr.New("failed to write to key-value store")

	// ErrInvalidCapacity is returned when the action cache is created with a non-positive capacity.
	ErrInvalidCapacity = zerr.New("action cache capacity must be positive")

	// ErrCacheEncodeFailed is returned when the action cache cannot be serialized.
	ErrCacheEncodeFailed = zerr.New("failed to encode action cache")

	// ErrCacheDecodeFailed is returned when the persisted action cache cannot be deserialized.
	ErrCacheDecodeFailed = zerr.New("failed to decode action cache")

	// ErrValueEncodeFailed is returned when a producer's return value cannot be encoded for replay.
	ErrValueEncodeFailed = zerr.New("failed to encode producer value")

	// ErrValueDecodeFailed is returned when a recorded value cannot be decoded on replay.
	ErrValueDecodeFailed = zerr.New("failed to decode recorded value")

	// ErrMaterializeFailed is returned when the file table cannot be written to disk.
	ErrMaterializeFailed = zerr.New("failed to materialize file")

	// ErrObserveFailed is returned when the filesystem observer cannot watch the working directory.
	ErrObserveFailed = zerr.New("failed to observe working directory")

	// ErrSnapshotFailed is returned when a working directory snapshot cannot be taken.
	ErrSnapshotFailed = zerr.New("failed to snapshot working directory")

	// ErrProcessStartFailed is returned when an external process cannot be started.
	ErrProcessStartFailed = zerr.New("failed to start process")

	// ErrConfigNotFound is returned when no recipe file can be found.
	ErrConfigNotFound = zerr.New("could not find weave.yaml")

	// ErrConfigReadFailed is returned when the recipe file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read recipe file")

	// ErrConfigParseFailed is returned when the recipe file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse recipe file")

	// ErrUnknownLanguage is returned when a step references a language the recipe does not define.
	ErrUnknownLanguage = zerr.New("unknown language")

	// ErrInvalidStep is returned when a recipe step is malformed.
	ErrInvalidStep = zerr.New("invalid step")

	// ErrRecipeFailed is returned when executing a recipe fails.
	ErrRecipeFailed = zerr.New("recipe execution failed")
)

// FragmentNotFoundError reports the name that a fragment lookup failed to find.
// It matches ErrFragmentNotFound under errors.Is.
type FragmentNotFoundError struct {
	Name string
}

// NewFragmentNotFoundError returns a FragmentNotFoundError for name.
func NewFragmentNotFoundError(name string) *FragmentNotFoundError {
	return &FragmentNotFoundError{Name: name}
}

func (e *FragmentNotFoundError) Error() string {
	return ErrFragmentNotFound.Error() + ": " + e.Name
}

// Is reports whether target is ErrFragmentNotFound.
func (e *FragmentNotFoundError) Is(target error) bool {
	return target == ErrFragmentNotFound //nolint:errorlint // sentinel identity
}

// IsFragmentNotFound reports whether err carries a FragmentNotFoundError and returns the missing name.
func IsFragmentNotFound(err error) (string, bool) {
	var nf *FragmentNotFoundError
	if errors.As(err, &nf) {
		return nf.Name, true
	}
	return "", false
}
