// Package packager turns prediction results into persisted result records.
package packager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/inferrelay/errors"
	"github.com/c360/inferrelay/event"
	"github.com/c360/inferrelay/metric"
	"github.com/c360/inferrelay/storage"
)

// Config holds configuration for the result packager
type Config struct {
	// KeyPrefix is the leading segment of every result key
	KeyPrefix string `json:"key_prefix"`

	// Relation links each record to its originating artifact
	Relation string `json:"relation"`
}

// DefaultConfig returns the default packager configuration
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "results",
		Relation:  event.RelationInference,
	}
}

// Deps holds runtime dependencies for the packager
type Deps struct {
	Config  Config
	Store   storage.Store
	Metrics *metric.Metrics
	Logger  *slog.Logger
}

// Packager assembles result records and writes them to the canonical store.
// Record keys are derived deterministically from the artifact reference, so
// reprocessing an artifact after a crash overwrites the earlier record
// instead of duplicating it.
type Packager struct {
	config  Config
	store   storage.Store
	metrics *metric.Metrics
	logger  *slog.Logger
}

// New creates a Packager from its dependencies
func New(deps Deps) *Packager {
	cfg := deps.Config
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if cfg.Relation == "" {
		cfg.Relation = DefaultConfig().Relation
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "packager")
	}

	return &Packager{
		config:  cfg,
		store:   deps.Store,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// Package assembles the persisted record for a prediction result. Fails with
// ErrStoreRejected when the result is structurally incomplete.
func (p *Packager) Package(result event.PredictionResult) (event.ResultRecord, error) {
	if err := result.Validate(); err != nil {
		return event.ResultRecord{}, fmt.Errorf("%w: %w", errors.ErrStoreRejected, err)
	}

	return event.ResultRecord{
		Key:         event.ResultKey(p.config.KeyPrefix, p.config.Relation, result.ArtifactRef),
		ArtifactRef: result.ArtifactRef,
		Relation:    p.config.Relation,
		Result:      result,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Store writes the record to the canonical store. The write targets the
// record's deterministic key, so replays overwrite rather than duplicate.
// Fails with ErrStoreRejected when the record is malformed or the store
// declines the write; transient store errors pass through for the caller
// to classify.
func (p *Packager) Store(ctx context.Context, record event.ResultRecord) error {
	if err := record.Validate(); err != nil {
		p.rejected()
		return fmt.Errorf("%w: %w", errors.ErrStoreRejected, err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		p.rejected()
		return fmt.Errorf("%w: encode record %s: %w", errors.ErrStoreRejected, record.Key, err)
	}

	if err := p.store.Put(ctx, record.Key, data); err != nil {
		if errors.IsInvalid(err) || errors.IsFatal(err) {
			p.rejected()
			return fmt.Errorf("%w: %s: %w", errors.ErrStoreRejected, record.Key, err)
		}
		return errors.WrapTransient(err, "Packager", "Store", "write record")
	}

	p.logger.Debug("Result stored", "key", record.Key, "artifact_ref", record.ArtifactRef)
	return nil
}

// PackageAndStore assembles and persists the record in one call
func (p *Packager) PackageAndStore(ctx context.Context, result event.PredictionResult) (event.ResultRecord, error) {
	record, err := p.Package(result)
	if err != nil {
		return event.ResultRecord{}, err
	}
	if err := p.Store(ctx, record); err != nil {
		return event.ResultRecord{}, err
	}
	return record, nil
}

func (p *Packager) rejected() {
	if p.metrics != nil {
		p.metrics.StageFailures.WithLabelValues("store", "rejected").Inc()
	}
}
