// Package retry provides exponential backoff retry and polling for transient
// failures.
//
// # Functions
//
//   - Do: execute a function with retry and exponential backoff
//   - DoWithResult: same, returning both result and error
//   - Poll: run a status check at an interval until done, error, or deadline
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Quick(): 10 attempts, 50ms-1s delay (component startup)
//
// # Usage
//
// Retry with result:
//
//	artifact, err := retry.DoWithResult(ctx, cfg, func() ([]byte, error) {
//	    return store.Get(ctx, ref)
//	})
//
// Wrap permanent failures so they are not retried:
//
//	return retry.NonRetryable(errors.ErrArtifactNotFound)
//
// Wait for a remote endpoint to become ready:
//
//	err := retry.Poll(ctx, time.Second, 30*time.Second, func(ctx context.Context) (bool, error) {
//	    return client.Ready(ctx), nil
//	})
//
// The package is intentionally minimal: no circuit breakers, no metrics, no
// error classification. Callers decide what to retry.
package retry
