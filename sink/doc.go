// Package sink carries the relay's failure reports. Every event that
// terminates in FAILED is reported exactly once per delivery attempt with
// the artifact reference, the stage that failed, and the error detail; no
// failure is silently dropped. The log sink is always present, and the NATS
// sink publishes reports for downstream alerting.
package sink
