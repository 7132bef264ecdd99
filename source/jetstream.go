// Package source adapts the NATS JetStream message channel into a stream of
// relay events with explicit acknowledgment.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/inferrelay/errors"
	"github.com/c360/inferrelay/event"
	"github.com/c360/inferrelay/metric"
	"github.com/c360/inferrelay/natsclient"
)

// Config holds configuration for the JetStream source
type Config struct {
	// Stream is the JetStream stream carrying notifications
	Stream string `json:"stream"`

	// Subject is the notification subject within the stream
	Subject string `json:"subject"`

	// Durable names the pull consumer. The consumer's position survives
	// relay restarts, so no notification is lost across a crash.
	Durable string `json:"durable"`

	// BatchSize is the maximum messages fetched per pull
	BatchSize int `json:"batch_size"`

	// FetchTimeout bounds each pull when the stream is idle
	FetchTimeout time.Duration `json:"fetch_timeout"`

	// AckWait is how long the channel waits for an ack before redelivering
	AckWait time.Duration `json:"ack_wait"`

	// BufferSize is the capacity of the outgoing event channel
	BufferSize int `json:"buffer_size"`
}

// Validate checks the configuration for required fields
func (c *Config) Validate() error {
	if c.Stream == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "stream name")
	}
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "subject")
	}
	if c.Durable == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "durable name")
	}
	return nil
}

// DefaultConfig returns sensible defaults for the JetStream source
func DefaultConfig() Config {
	return Config{
		Stream:       "ARTIFACT_EVENTS",
		Subject:      "artifacts.stored",
		Durable:      "inferrelay",
		BatchSize:    16,
		FetchTimeout: 5 * time.Second,
		AckWait:      30 * time.Second,
		BufferSize:   64,
	}
}

// Deps holds runtime dependencies for the JetStream source
type Deps struct {
	Config  Config
	Client  *natsclient.Client
	Metrics *metric.Metrics
	Logger  *slog.Logger
}

// JetStreamSource pulls artifact-stored notifications from a durable
// consumer and converts them to events. Deliveries stay unacknowledged until
// the controller settles them, so a crashed relay sees every in-flight event
// again after restart.
type JetStreamSource struct {
	config  Config
	client  *natsclient.Client
	metrics *metric.Metrics
	logger  *slog.Logger

	consumer jetstream.Consumer
	events   chan event.Event

	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool
	mu       sync.Mutex

	received  atomic.Int64
	malformed atomic.Int64
}

// NewJetStreamSource creates a source from its dependencies
func NewJetStreamSource(deps Deps) *JetStreamSource {
	cfg := deps.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "source")
	}

	return &JetStreamSource{
		config:  cfg,
		client:  deps.Client,
		metrics: deps.Metrics,
		logger:  logger,
		events:  make(chan event.Event, cfg.BufferSize),
	}
}

// Initialize validates configuration and dependencies before any I/O
func (s *JetStreamSource) Initialize() error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.client == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"JetStreamSource", "Initialize", "client validation")
	}
	return nil
}

// Events returns the channel the source delivers events on. The channel is
// closed after Stop once the fetch loop has exited.
func (s *JetStreamSource) Events() <-chan event.Event {
	return s.events
}

// Start ensures the stream and durable consumer exist, then begins fetching
func (s *JetStreamSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}

	if _, err := s.client.EnsureStream(ctx, jetstream.StreamConfig{
		Name:      s.config.Stream,
		Subjects:  []string{s.config.Subject},
		Retention: jetstream.WorkQueuePolicy,
	}); err != nil {
		return errors.Wrap(err, "JetStreamSource", "Start", "ensure stream")
	}

	consumer, err := s.client.PullConsumer(ctx, s.config.Stream, jetstream.ConsumerConfig{
		Durable:       s.config.Durable,
		FilterSubject: s.config.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       s.config.AckWait,
		MaxDeliver:    -1,
	})
	if err != nil {
		return errors.Wrap(err, "JetStreamSource", "Start", "create consumer")
	}
	s.consumer = consumer

	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.fetchLoop(ctx)

	s.logger.Info("Source started",
		"stream", s.config.Stream,
		"subject", s.config.Subject,
		"durable", s.config.Durable)

	return nil
}

// Stop halts fetching and closes the event channel
func (s *JetStreamSource) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	close(s.shutdown)

	select {
	case <-s.done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"JetStreamSource", "Stop", "wait for fetch loop")
	}

	close(s.events)
	return nil
}

// Received reports the number of notifications pulled so far
func (s *JetStreamSource) Received() int64 {
	return s.received.Load()
}

// fetchLoop pulls notification batches until shutdown
func (s *JetStreamSource) fetchLoop(ctx context.Context) {
	defer close(s.done)

	for s.running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		default:
		}

		batch, err := s.consumer.Fetch(s.config.BatchSize,
			jetstream.FetchMaxWait(s.config.FetchTimeout))
		if err != nil {
			s.logger.Warn("Fetch failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-s.shutdown:
				return
			case <-ctx.Done():
				return
			}
			continue
		}

		for msg := range batch.Messages() {
			s.dispatch(ctx, msg)
		}
		if err := batch.Error(); err != nil {
			s.logger.Warn("Fetch batch error", "error", err)
		}
	}
}

// dispatch converts one message into an event and hands it downstream.
// Malformed payloads are terminated: redelivery cannot fix them.
func (s *JetStreamSource) dispatch(ctx context.Context, msg jetstream.Msg) {
	n, err := parseNotification(msg.Data())
	if err != nil {
		s.malformed.Add(1)
		if s.metrics != nil {
			s.metrics.StageFailures.WithLabelValues("receive", "malformed").Inc()
		}
		s.logger.Warn("Malformed notification", "subject", msg.Subject(), "error", err)
		if termErr := msg.TermWithReason("malformed notification"); termErr != nil {
			s.logger.Warn("Failed to terminate malformed message", "error", termErr)
		}
		return
	}

	ev := event.New(n.Ref, newAckToken(msg))
	s.received.Add(1)
	if s.metrics != nil {
		s.metrics.EventsReceived.Inc()
		if ev.Redelivered() {
			s.metrics.ChannelRedeliveries.Inc()
		}
	}

	select {
	case s.events <- ev:
	case <-s.shutdown:
		// Shutting down: leave the delivery unacknowledged so the
		// channel redelivers it to the next relay instance.
		_ = ev.Nak(0)
	case <-ctx.Done():
		_ = ev.Nak(0)
	}
}
