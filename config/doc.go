// Package config defines the relay's configuration surface: the message
// channel endpoint, the artifact and result buckets, the scoring endpoint,
// and retry/timeout tuning for every pipeline stage.
//
// Configuration is loaded from layered JSON files merged over defaults,
// with INFERRELAY_* environment variables overriding both. Validation runs
// at load time; an invalid configuration is the only condition the relay
// exits non-zero on.
package config
