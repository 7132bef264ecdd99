package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultKey_Deterministic(t *testing.T) {
	ref := "studies/1.2.840/series/7/instance-42.dcm"

	k1 := ResultKey("results", RelationInference, ref)
	k2 := ResultKey("results", RelationInference, ref)

	assert.Equal(t, k1, k2, "same reference must always derive the same key")
}

func TestResultKey_DistinctRefs(t *testing.T) {
	k1 := ResultKey("results", RelationInference, "studies/a/instance-1")
	k2 := ResultKey("results", RelationInference, "studies/a/instance-2")

	assert.NotEqual(t, k1, k2)
}

func TestResultKey_SanitizedCollision(t *testing.T) {
	// Both sanitize to the same segment; the digest suffix keeps them apart.
	k1 := ResultKey("results", RelationInference, "a/b")
	k2 := ResultKey("results", RelationInference, "a:b")

	assert.NotEqual(t, k1, k2)
}

func TestResultKey_Shape(t *testing.T) {
	key := ResultKey("results", RelationInference, "img/scan.jpg")

	assert.Regexp(t, `^results/inference/[A-Za-z0-9._-]+-[0-9a-f]{8}$`, key)
}

func TestSanitizeRef(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain-name_1.jpg", "plain-name_1.jpg"},
		{"a/b/c", "a-b-c"},
		{"space here", "space-here"},
		{"unicodeé", "unicode-"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeRef(tt.in))
	}
}
