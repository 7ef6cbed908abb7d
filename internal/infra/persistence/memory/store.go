// Package memory provides an in-memory key-value namespace for the record
// store, used for tests and ephemeral sessions. It behaves like browser local
// storage: values are opaque byte strings replaced wholesale on every put.
package memory

import (
	"context"
	"errors"
	"sync"

	"labcontrol/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store satisfies the domain key-value interface.
var _ domain.KeyValueStore = (*Store)(nil)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("memory store closed")

// Store implements domain.KeyValueStore backed by process memory.
type Store struct {
	mu     sync.RWMutex
	state  map[string][]byte
	closed bool
}

// NewStore returns an empty in-memory namespace.
func NewStore() *Store {
	return &Store{state: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.state[key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

// Put replaces the value stored under key.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.state[key] = cloneBytes(value)
	return nil
}

// Close marks the store closed; subsequent operations fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
