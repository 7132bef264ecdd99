package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// RelationInference is the fixed relation type linking a result record to
// the artifact it was derived from.
const RelationInference = "inference"

// ResultKey derives the deterministic store key for an artifact's result.
// The key is a pure function of (prefix, relation, ref): reprocessing the
// same artifact always targets the same key, so replayed writes overwrite
// rather than duplicate. A short digest of the raw reference is appended so
// references that only differ in sanitized characters cannot collide.
func ResultKey(prefix, relation, ref string) string {
	digest := sha256.Sum256([]byte(ref))
	short := hex.EncodeToString(digest[:])[:8]
	return fmt.Sprintf("%s/%s/%s-%s", prefix, relation, sanitizeRef(ref), short)
}

// sanitizeRef maps an artifact reference to a store-safe key segment
func sanitizeRef(ref string) string {
	var b strings.Builder
	b.Grow(len(ref))
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
