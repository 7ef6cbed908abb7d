package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// DefaultKeyPrefix namespaces the collection keys.
const DefaultKeyPrefix = "labcontrol"

// Keys names the three persisted collections.
type Keys struct {
	Catalog   string
	Batches   string
	Locations string
}

// NewKeys derives collection keys from a namespace prefix.
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return Keys{
		Catalog:   prefix + "_catalog",
		Batches:   prefix + "_batches",
		Locations: prefix + "_locations",
	}
}

// All returns the keys in seed order.
func (k Keys) All() []string { return []string{k.Catalog, k.Batches, k.Locations} }

// RecordStore reads and writes whole collections as JSON arrays. It has no
// query capability; filtering and joins happen after a full read.
type RecordStore struct {
	kv KeyValueStore
}

// NewRecordStore wraps a key-value backend.
func NewRecordStore(kv KeyValueStore) *RecordStore {
	return &RecordStore{kv: kv}
}

// Backend returns the wrapped key-value store.
func (r *RecordStore) Backend() KeyValueStore { return r.kv }

// Present reports whether key holds a value, corrupt or not.
func (r *RecordStore) Present(ctx context.Context, key string) (bool, error) {
	_, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	return ok, nil
}

// ReadCollection decodes the collection stored under key. An absent key, an
// empty value or JSON null yields an empty collection. Undecodable payloads
// return ErrCorruptCollection and are left untouched in the backend.
func ReadCollection[T any](ctx context.Context, r *RecordStore, key string) ([]T, error) {
	raw, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	out := []T{}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCorruptCollection, key, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// WriteCollection serializes items and replaces the collection with one put.
func WriteCollection[T any](ctx context.Context, r *RecordStore, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
