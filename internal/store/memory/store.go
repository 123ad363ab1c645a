// Package memory provides an in-process ResultStore. It backs single-binary
// deployments and serves as the fake store in tests across the module.
package memory

import (
	"context"
	"sync"

	"github.com/phrazzld/mediatask/internal/store"
)

// Store keeps values and lists in maps guarded by a single RWMutex.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
	lists  map[string][]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		values: make(map[string][]byte),
		lists:  make(map[string][]string),
	}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, store.ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()

	if !ok {
		return nil, store.ErrNotFound
	}

	// callers must not be able to mutate the stored bytes
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set overwrites the value stored under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return store.ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.values[key] = v
	s.mu.Unlock()
	return nil
}

// Append adds value to the end of the list under listKey.
func (s *Store) Append(ctx context.Context, listKey string, value string) error {
	if listKey == "" {
		return store.ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.lists[listKey] = append(s.lists[listKey], value)
	s.mu.Unlock()
	return nil
}

// List returns a copy of the list under listKey.
func (s *Store) List(ctx context.Context, listKey string) ([]string, error) {
	if listKey == "" {
		return nil, store.ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.lists[listKey]
	out := make([]string, len(items))
	copy(out, items)
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

var (
	_ store.ResultStore = (*Store)(nil)
	_ store.Pinger      = (*Store)(nil)
)
