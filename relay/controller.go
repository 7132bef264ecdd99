// Package relay contains the controller that drives each event through
// fetch, predict, package, and store, and settles its acknowledgment.
package relay

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/inferrelay/errors"
	"github.com/c360/inferrelay/event"
	"github.com/c360/inferrelay/metric"
	"github.com/c360/inferrelay/pkg/worker"
	"github.com/c360/inferrelay/sink"
)

// Fetcher resolves an artifact reference into its payload
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (event.Artifact, error)
}

// Predictor scores an artifact
type Predictor interface {
	Predict(ctx context.Context, artifact event.Artifact) (event.PredictionResult, error)
}

// Packager assembles and persists result records
type Packager interface {
	Package(result event.PredictionResult) (event.ResultRecord, error)
	Store(ctx context.Context, record event.ResultRecord) error
}

// Config holds configuration for the relay controller
type Config struct {
	// Workers is the number of events processed concurrently
	Workers int `json:"workers"`

	// QueueSize bounds the backlog between the source and the workers
	QueueSize int `json:"queue_size"`

	// EventTimeout bounds one event's full pipeline pass
	EventTimeout time.Duration `json:"event_timeout"`

	// NakDelay is the base redelivery delay after a transient failure.
	// The delay doubles with each delivery of the same event.
	NakDelay time.Duration `json:"nak_delay"`

	// NakMaxDelay caps the redelivery delay
	NakMaxDelay time.Duration `json:"nak_max_delay"`
}

// DefaultConfig returns the default controller configuration
func DefaultConfig() Config {
	return Config{
		Workers:      8,
		QueueSize:    256,
		EventTimeout: 2 * time.Minute,
		NakDelay:     5 * time.Second,
		NakMaxDelay:  5 * time.Minute,
	}
}

// Deps holds runtime dependencies for the controller
type Deps struct {
	Config    Config
	Events    <-chan event.Event
	Fetcher   Fetcher
	Predictor Predictor
	Packager  Packager
	Sink      sink.Sink
	Metrics   *metric.Metrics
	Registry  *metric.MetricsRegistry
	Logger    *slog.Logger
}

// Controller orchestrates the pipeline per incoming event. Events are
// processed independently on a worker pool: one event's failure never
// affects another's progress. An event is acknowledged only after its result
// record is durably stored; every other outcome leaves the delivery with
// the channel for redelivery.
type Controller struct {
	config    Config
	events    <-chan event.Event
	fetcher   Fetcher
	predictor Predictor
	packager  Packager
	sink      sink.Sink
	metrics   *metric.Metrics
	logger    *slog.Logger

	pool *worker.Pool[event.Event]

	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool

	acknowledged atomic.Int64
	failed       atomic.Int64
}

// NewController creates a controller from its dependencies
func NewController(deps Deps) (*Controller, error) {
	if deps.Events == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nil event channel"),
			"Controller", "NewController", "validate dependencies")
	}
	if deps.Fetcher == nil || deps.Predictor == nil || deps.Packager == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("missing pipeline stage"),
			"Controller", "NewController", "validate dependencies")
	}

	cfg := deps.Config
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = DefaultConfig().EventTimeout
	}
	if cfg.NakDelay <= 0 {
		cfg.NakDelay = DefaultConfig().NakDelay
	}
	if cfg.NakMaxDelay < cfg.NakDelay {
		cfg.NakMaxDelay = DefaultConfig().NakMaxDelay
	}

	failureSink := deps.Sink
	if failureSink == nil {
		failureSink = sink.NewLogSink(deps.Logger)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "relay")
	}

	c := &Controller{
		config:    cfg,
		events:    deps.Events,
		fetcher:   deps.Fetcher,
		predictor: deps.Predictor,
		packager:  deps.Packager,
		sink:      failureSink,
		metrics:   deps.Metrics,
		logger:    logger,
	}

	var opts []worker.Option[event.Event]
	if deps.Registry != nil {
		opts = append(opts, worker.WithMetricsRegistry[event.Event](deps.Registry, "relay_events"))
	}
	c.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, c.process, opts...)

	return c, nil
}

// Start launches the worker pool and the dispatch loop
func (c *Controller) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Controller", "Start", "check running state")
	}

	if err := c.pool.Start(ctx); err != nil {
		c.running.Store(false)
		return errors.Wrap(err, "Controller", "Start", "start worker pool")
	}

	c.shutdown = make(chan struct{})
	c.done = make(chan struct{})
	go c.dispatchLoop(ctx)

	c.logger.Info("Controller started",
		"workers", c.config.Workers,
		"queue_size", c.config.QueueSize,
		"event_timeout", c.config.EventTimeout)

	return nil
}

// Stop halts dispatch and drains in-flight events within the timeout
func (c *Controller) Stop(timeout time.Duration) error {
	if !c.running.Load() {
		return nil
	}
	c.running.Store(false)
	close(c.shutdown)

	select {
	case <-c.done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"Controller", "Stop", "wait for dispatch loop")
	}

	return c.pool.Stop(timeout)
}

// Stats reports processing counters
func (c *Controller) Stats() (acknowledged, failed int64, pool worker.PoolStats) {
	return c.acknowledged.Load(), c.failed.Load(), c.pool.Stats()
}

// dispatchLoop feeds events from the source into the worker pool
func (c *Controller) dispatchLoop(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			if err := c.pool.Submit(ev); err != nil {
				// Queue full or shutting down: hand the delivery back
				// to the channel instead of dropping it.
				if c.metrics != nil {
					c.metrics.StageFailures.WithLabelValues("receive", "overload").Inc()
				}
				c.logger.Warn("Event not queued, returned for redelivery",
					"event_id", ev.ID, "ref", ev.Ref, "error", err)
				_ = ev.Nak(c.config.NakDelay)
			}
		}
	}
}

// process drives one event through the full pipeline
func (c *Controller) process(ctx context.Context, ev event.Event) error {
	eventCtx, cancel := context.WithTimeout(ctx, c.config.EventTimeout)
	defer cancel()

	if c.metrics != nil {
		c.metrics.EventsInflight.Inc()
		defer c.metrics.EventsInflight.Dec()
	}

	logger := c.logger.With("event_id", ev.ID, "ref", ev.Ref)
	if ev.Redelivered() {
		logger.Debug("Processing redelivered event", "deliveries", ev.Deliveries())
	}

	artifact, err := c.runFetch(eventCtx, ev)
	if err != nil {
		return c.settleFailure(eventCtx, ev, StateFetching, err, logger)
	}

	result, err := c.runPredict(eventCtx, artifact)
	if err != nil {
		return c.settleFailure(eventCtx, ev, StatePredicting, err, logger)
	}

	record, err := c.runPackage(result)
	if err != nil {
		return c.settleFailure(eventCtx, ev, StatePackaging, err, logger)
	}

	if err := c.runStore(eventCtx, record); err != nil {
		return c.settleFailure(eventCtx, ev, StateStoring, err, logger)
	}

	// The record is durable; only now is the delivery settled. A failed
	// ack is survivable: the channel redelivers and the store overwrite
	// is idempotent.
	if err := ev.Ack(); err != nil {
		logger.Warn("Acknowledge failed, channel will redeliver", "error", err)
	}

	c.acknowledged.Add(1)
	if c.metrics != nil {
		c.metrics.EventsProcessed.WithLabelValues("acknowledged").Inc()
	}
	logger.Info("Event acknowledged", "key", record.Key, "label", record.Result.Label)

	return nil
}

func (c *Controller) runFetch(ctx context.Context, ev event.Event) (event.Artifact, error) {
	return timeStage(c.metrics, "fetch", func() (event.Artifact, error) {
		return c.fetcher.Fetch(ctx, ev.Ref)
	})
}

func (c *Controller) runPredict(ctx context.Context, artifact event.Artifact) (event.PredictionResult, error) {
	return timeStage(c.metrics, "predict", func() (event.PredictionResult, error) {
		return c.predictor.Predict(ctx, artifact)
	})
}

func (c *Controller) runPackage(result event.PredictionResult) (event.ResultRecord, error) {
	return timeStage(c.metrics, "package", func() (event.ResultRecord, error) {
		return c.packager.Package(result)
	})
}

func (c *Controller) runStore(ctx context.Context, record event.ResultRecord) error {
	_, err := timeStage(c.metrics, "store", func() (struct{}, error) {
		return struct{}{}, c.packager.Store(ctx, record)
	})
	return err
}

// settleFailure resolves a stage error into the event's terminal handling.
// Permanent errors move the event to FAILED: the failure is reported to the
// sink and the delivery is left unacknowledged so the channel redelivers it
// under at-least-once semantics. Transient errors skip the report and ask
// for redelivery with backoff.
func (c *Controller) settleFailure(
	ctx context.Context,
	ev event.Event,
	state State,
	err error,
	logger *slog.Logger,
) error {
	if errors.IsPermanent(err) {
		c.failed.Add(1)
		if c.metrics != nil {
			c.metrics.EventsProcessed.WithLabelValues("failed").Inc()
		}

		report := sink.Report{
			EventID:    ev.ID,
			Ref:        ev.Ref,
			Stage:      state.String(),
			Error:      err.Error(),
			Kind:       failureKind(err),
			Deliveries: ev.Deliveries(),
			OccurredAt: time.Now().UTC(),
		}
		if reportErr := c.sink.Report(ctx, report); reportErr != nil {
			logger.Error("Failure report not delivered",
				"stage", report.Stage, "report_error", reportErr, "error", err)
		}

		logger.Error("Event failed", "stage", state.String(), "kind", report.Kind, "error", err)
		return err
	}

	// Transient: back off proportionally to how often this event has
	// already been delivered.
	delay := redeliveryDelay(c.config.NakDelay, c.config.NakMaxDelay, ev.Deliveries())
	if c.metrics != nil {
		c.metrics.EventsProcessed.WithLabelValues("redelivered").Inc()
	}
	logger.Warn("Event returned for redelivery",
		"stage", state.String(), "delay", delay, "error", err)
	_ = ev.Nak(delay)

	return err
}

// timeStage runs fn and records its duration under the stage label
func timeStage[T any](m *metric.Metrics, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
	return result, err
}

// failureKind maps an error to its report label
func failureKind(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrArtifactNotFound):
		return "not_found"
	case stderrors.Is(err, errors.ErrPredictionTimeout):
		return "timeout"
	case stderrors.Is(err, errors.ErrPredictionService):
		return "rejected"
	case stderrors.Is(err, errors.ErrStoreRejected):
		return "store_rejected"
	case stderrors.Is(err, errors.ErrMaxRetriesExceeded):
		return "retry_exhausted"
	default:
		return errors.Classify(err).String()
	}
}

// redeliveryDelay doubles the base delay per prior delivery, capped at max
func redeliveryDelay(base, max time.Duration, deliveries uint64) time.Duration {
	delay := base
	for i := uint64(1); i < deliveries; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
