// Package predictor is the relay's prediction client. It POSTs artifact
// payloads to the scoring endpoint as a single synchronous request with a
// bounded timeout. Rejections (4xx) are permanent and carry the endpoint's
// code and message; timeouts are retried up to a small bound before
// escalating to a permanent failure.
package predictor
