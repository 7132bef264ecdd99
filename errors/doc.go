// Package errors defines the relay's error taxonomy and classification
// helpers.
//
// # Taxonomy
//
// Six sentinel errors cover the failure modes of the pipeline:
//
//   - ErrTransientUnavailable: the message channel is unreachable (source)
//   - ErrTransientFetch: retryable network condition during fetch
//   - ErrArtifactNotFound: the artifact reference does not resolve (permanent)
//   - ErrPredictionTimeout: scoring call exceeded its deadline (retryable)
//   - ErrPredictionService: scoring endpoint rejected the input (permanent)
//   - ErrStoreRejected: result store declined the write (permanent)
//
// Stages wrap these with WrapTransient/WrapInvalid/WrapFatal to add component
// context. The controller uses IsTransient and IsPermanent to drive its state
// transitions; no other package needs to inspect error strings.
//
// # Usage
//
//	if err := store.Put(ctx, key, data); err != nil {
//	    return errors.WrapInvalid(errors.ErrStoreRejected, "Packager", "Store", "write record")
//	}
package errors
