// Package inferrelay is a notification-driven inference relay.
//
// The relay subscribes to "artifact stored" events on a JetStream channel,
// fetches each artifact from the canonical object store, scores it against a
// remote prediction endpoint, and writes the result back to the store under a
// key derived from the originating artifact, then acknowledges the event.
// Delivery is at-least-once; result writes are idempotent by construction, so
// redelivered events overwrite rather than duplicate prior results.
//
// The relay is organized as small packages wired together by cmd/inferrelay:
//
//   - source: event intake from a durable pull consumer
//   - fetcher: artifact retrieval with bounded retry
//   - predictor: HTTP scoring client
//   - packager: result persistence with deterministic keys
//   - relay: the per-event state machine and worker pool
//
// Supporting packages (errors, pkg/retry, pkg/worker, metric, sink, health,
// config) provide the ambient infrastructure shared by all components.
package inferrelay
