// Package relay implements the controller at the center of the pipeline.
//
// Each event from the message source passes through the states
//
//	RECEIVED -> FETCHING -> PREDICTING -> PACKAGING -> STORING -> ACKNOWLEDGED
//
// with FAILED reachable from any non-terminal state on a permanent error.
// The controller acknowledges an event only after its result record is
// durably stored; a crash at any earlier point leaves the delivery with the
// channel, which redelivers it. Redelivered events overwrite their prior
// result through the deterministic store key, so at-least-once delivery
// never duplicates records.
//
// Permanent failures are reported to the observability sink with the
// artifact reference, failing stage, and error detail. Transient failures
// are returned to the channel with exponential redelivery backoff.
package relay
