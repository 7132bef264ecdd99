package source

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/inferrelay/errors"
)

// Notification is the wire format of an artifact-stored message. Only Ref is
// required; producers may include extra fields the relay ignores.
type Notification struct {
	// Ref is the artifact's reference in the canonical store
	Ref string `json:"ref"`

	// StoredAt is when the producer stored the artifact
	StoredAt time.Time `json:"stored_at,omitempty"`

	// ContentType hints at the artifact's media type
	ContentType string `json:"content_type,omitempty"`
}

// parseNotification decodes and validates a notification payload. Failures
// are classified invalid: the payload will never become parseable, so the
// message is terminated rather than redelivered.
func parseNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, errors.WrapInvalid(err, "Source", "parseNotification", "decode payload")
	}
	if n.Ref == "" {
		return Notification{}, errors.WrapInvalid(
			fmt.Errorf("notification missing ref"),
			"Source", "parseNotification", "validate payload")
	}
	return n, nil
}
