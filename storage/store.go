package storage

// KV defines the interface for key-value persistence.
// This allows swapping between a JSON file, SQLite, or memory backends
type KV interface {
	// Get returns the value stored under key and whether it exists
	Get(key string) ([]byte, bool, error)
	// Set replaces the value stored under key
	Set(key string, value []byte) error

	// Lifecycle
	Close() error
}
