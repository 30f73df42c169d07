package ports

// ActionStore is the key-value store that keeps the action cache between runs.
// A single writer is assumed; reads observe every prior write of the same process.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ActionStore interface {
	// Get retrieves the value stored under key.
	// Returns nil, nil if not found.
	Get(key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases the underlying resources.
	Close() error
}

// StoreOpener opens the action store kept at a path.
type StoreOpener interface {
	// Open opens or creates the store at path.
	Open(path string) (ActionStore, error)
}
