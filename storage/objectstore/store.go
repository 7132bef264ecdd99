// Package objectstore implements storage.Store on a NATS JetStream
// ObjectStore bucket.
package objectstore

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/inferrelay/errors"
	"github.com/c360/inferrelay/natsclient"
	"github.com/c360/inferrelay/storage"
)

// Config holds configuration for the ObjectStore backend
type Config struct {
	// Bucket is the JetStream ObjectStore bucket name
	Bucket string `json:"bucket"`
}

// DefaultConfig returns the default ObjectStore configuration
func DefaultConfig() Config {
	return Config{Bucket: "RESULTS"}
}

// Store is a storage.Store backed by a JetStream ObjectStore bucket.
// PutBytes replaces the object at a name, so writes through deterministic
// keys are naturally idempotent.
type Store struct {
	bucket string
	os     jetstream.ObjectStore
}

// New connects the store to its bucket, creating the bucket if needed
func New(ctx context.Context, client *natsclient.Client, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		cfg = DefaultConfig()
	}

	os, err := client.ObjectStore(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "New", "open bucket")
	}

	return &Store{bucket: cfg.Bucket, os: os}, nil
}

// NewWithObjectStore wraps an existing ObjectStore handle
func NewWithObjectStore(bucket string, os jetstream.ObjectStore) *Store {
	return &Store{bucket: bucket, os: os}
}

// Bucket returns the bucket name this store writes to
func (s *Store) Bucket() string {
	return s.bucket
}

// Put stores data at key, replacing any existing object
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.os.PutBytes(ctx, key, data); err != nil {
		return errors.WrapTransient(err, "Store", "Put", "write object")
	}
	return nil
}

// Get retrieves the object at key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.os.GetBytes(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrKeyNotFound
		}
		return nil, errors.WrapTransient(err, "Store", "Get", "read object")
	}
	return data, nil
}

// List returns the keys under prefix in lexicographic order
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := s.os.List(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoObjectsFound) {
			return []string{}, nil
		}
		return nil, errors.WrapTransient(err, "Store", "List", "list objects")
	}

	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Deleted {
			continue
		}
		if strings.HasPrefix(info.Name, prefix) {
			keys = append(keys, info.Name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes the object at key. Missing keys are a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.os.Delete(ctx, key); err != nil {
		if isNotFound(err) {
			return nil
		}
		return errors.WrapTransient(err, "Store", "Delete", "delete object")
	}
	return nil
}

// isNotFound reports whether err means the object does not exist
func isNotFound(err error) bool {
	return stderrors.Is(err, jetstream.ErrObjectNotFound)
}

var _ storage.Store = (*Store)(nil)
