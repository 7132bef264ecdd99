// Package storage provides pluggable backend interfaces for result storage.
package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when no object exists at the key.
var ErrKeyNotFound = errors.New("key not found")

// Store is the pluggable backend interface for the canonical store.
//
// Keys are strings with "/" separators for hierarchy; values are binary
// data. Put overwrites: writing to an existing key replaces its value, which
// is what makes replayed result writes idempotent rather than duplicating.
//
// All implementations must be safe for concurrent use from multiple
// goroutines.
//
// Implementations:
//   - objectstore.Store: NATS JetStream ObjectStore backend
//   - MemStore: in-memory backend for tests
type Store interface {
	// Put stores binary data at the specified key, replacing any
	// existing value.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the data at the specified key. Returns
	// ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys matching the prefix, in lexicographic
	// order. An empty prefix lists every key. Returns an empty slice
	// when nothing matches.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the specified key. Deleting a missing
	// key is not an error.
	Delete(ctx context.Context, key string) error
}
