// Package natsclient manages the relay's connection to NATS.
//
// The Client wraps a single nats.Conn plus its JetStream context and exposes
// the three resources the relay needs:
//
//   - EnsureStream: the event stream carrying artifact-stored notifications
//   - PullConsumer: the durable consumer the source adapter fetches from
//   - ObjectStore: the buckets backing artifact and result storage
//
// Connection status is tracked through NATS callbacks and exposed via
// IsHealthy and OnHealthChange so the health endpoint and channel metrics
// stay current. Close drains the connection within a bounded timeout so
// in-flight acknowledgments are flushed on shutdown.
package natsclient
