package sink

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/c360/inferrelay/errors"
	"github.com/c360/inferrelay/natsclient"
)

// DefaultSubject is the subject failure reports are published on
const DefaultSubject = "relay.failures"

// NATSSink publishes failure reports as JSON so downstream consumers can
// alert on or archive them
type NATSSink struct {
	client  *natsclient.Client
	subject string
	logger  *slog.Logger
}

// NewNATSSink creates a NATSSink publishing to subject. An empty subject
// uses DefaultSubject.
func NewNATSSink(client *natsclient.Client, subject string, logger *slog.Logger) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{client: client, subject: subject, logger: logger}
}

// Report publishes the failure report
func (s *NATSSink) Report(ctx context.Context, r Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "NATSSink", "Report", "encode report")
	}

	if err := s.client.Publish(ctx, s.subject, data); err != nil {
		return errors.WrapTransient(err, "NATSSink", "Report", "publish report")
	}
	return nil
}

var _ Sink = (*NATSSink)(nil)
