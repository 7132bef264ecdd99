// Package source is the relay's message source adapter. It pulls
// artifact-stored notifications from a durable JetStream consumer, parses
// them, and emits events carrying an AckToken so the controller decides when
// each delivery is settled.
//
// The channel provides at-least-once delivery: events are acknowledged only
// after their result record is durably stored, and unacknowledged events are
// redelivered after the ack wait elapses. Payloads that cannot be parsed are
// terminated immediately since redelivery cannot repair them.
package source
