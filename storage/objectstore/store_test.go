package objectstore

import (
	"fmt"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "RESULTS", cfg.Bucket)
}

func TestNewWithObjectStore(t *testing.T) {
	store := NewWithObjectStore("ARTIFACTS", nil)
	assert.Equal(t, "ARTIFACTS", store.Bucket())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(jetstream.ErrObjectNotFound))
	assert.True(t, isNotFound(fmt.Errorf("get: %w", jetstream.ErrObjectNotFound)))
	assert.False(t, isNotFound(nil))
	assert.False(t, isNotFound(assert.AnError))
}
