// Package event defines the relay's data model: the Event delivered by the
// message channel, the Artifact it references, the PredictionResult returned
// by the scoring endpoint, and the ResultRecord persisted back to the store.
//
// Result keys are derived deterministically from the artifact reference and a
// fixed relation type (see ResultKey), so reprocessing a redelivered event
// overwrites the prior record instead of duplicating it.
package event
