package event

import (
	"fmt"
	"time"
)

// Artifact is the binary payload fetched for one event. Immutable once
// fetched; owned transiently by the controller for one processing cycle.
type Artifact struct {
	Ref         string
	Data        []byte
	ContentType string
}

// Size returns the payload size in bytes
func (a Artifact) Size() int {
	return len(a.Data)
}

// PredictionResult is the structured output of the scoring endpoint
type PredictionResult struct {
	ArtifactRef  string             `json:"artifact_ref"`
	Label        string             `json:"label"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	Confidence   float64            `json:"confidence"`
	ModelVersion string             `json:"model_version"`
}

// Validate checks that the result is complete enough to persist
func (r PredictionResult) Validate() error {
	if r.ArtifactRef == "" {
		return fmt.Errorf("prediction result missing artifact reference")
	}
	if r.Label == "" && len(r.Scores) == 0 {
		return fmt.Errorf("prediction result for %s has neither label nor scores", r.ArtifactRef)
	}
	if r.ModelVersion == "" {
		return fmt.Errorf("prediction result for %s missing model version", r.ArtifactRef)
	}
	return nil
}

// ResultRecord is the persisted form of a PredictionResult, linked to the
// originating artifact. Every record references exactly one artifact.
type ResultRecord struct {
	Key         string           `json:"key"`
	ArtifactRef string           `json:"artifact_ref"`
	Relation    string           `json:"relation"`
	Result      PredictionResult `json:"result"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Validate checks record invariants before storage
func (r ResultRecord) Validate() error {
	if r.Key == "" {
		return fmt.Errorf("result record missing store key")
	}
	if r.ArtifactRef == "" {
		return fmt.Errorf("result record missing artifact reference")
	}
	if r.Relation == "" {
		return fmt.Errorf("result record missing relation type")
	}
	if err := r.Result.Validate(); err != nil {
		return fmt.Errorf("result record %s: %w", r.Key, err)
	}
	return nil
}
