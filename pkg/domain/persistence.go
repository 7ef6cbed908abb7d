package domain

import "context"

// KeyValueStore is the durable namespace the record store persists
// collections into. Each key holds one serialized collection; Put replaces the
// value for a key in a single operation.
type KeyValueStore interface {
	// Get returns the stored value and true, or nil and false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Close releases resources held by the backend.
	Close() error
}
