// Package main implements the entry point for the inference relay.
// The relay consumes artifact-stored notifications from JetStream, fetches
// each artifact from the object store, scores it against a prediction
// endpoint, and writes the packaged result back to the canonical store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/inferrelay/config"
	"github.com/c360/inferrelay/fetcher"
	"github.com/c360/inferrelay/health"
	"github.com/c360/inferrelay/metric"
	"github.com/c360/inferrelay/natsclient"
	"github.com/c360/inferrelay/packager"
	"github.com/c360/inferrelay/pkg/retry"
	"github.com/c360/inferrelay/predictor"
	"github.com/c360/inferrelay/relay"
	"github.com/c360/inferrelay/sink"
	"github.com/c360/inferrelay/source"
	"github.com/c360/inferrelay/storage/objectstore"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "inferrelay"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	// Connect to the message channel
	natsClient, err := createNATSClient(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = natsClient.Close(closeCtx)
	}()

	metricsRegistry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()
	wireChannelHealth(natsClient, metricsRegistry.CoreMetrics(), monitor)

	if err := connectToNATS(ctx, natsClient); err != nil {
		return err
	}

	// Assemble the pipeline
	app, err := buildPipeline(ctx, cfg, natsClient, metricsRegistry, logger)
	if err != nil {
		return err
	}

	// Expose metrics and health
	metricsServer, err := startMetricsServer(cfg, metricsRegistry, monitor)
	if err != nil {
		return err
	}

	// Run until signalled
	return runWithSignalHandling(ctx, app, metricsServer, cliCfg.ShutdownTimeout)
}

// pipeline bundles the running pieces of the relay in start order
type pipeline struct {
	source     *source.JetStreamSource
	controller *relay.Controller
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting inference relay",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads and validates configuration. An empty config
// path runs on defaults plus environment overrides.
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// createNATSClient builds the client from connection configuration
func createNATSClient(cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger.With("component", "natsclient")),
		natsclient.WithClientName(cfg.Service.Name),
	}
	if cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.NATS.Timeout))
	}
	if cfg.NATS.Username != "" && cfg.NATS.Password != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	return client, nil
}

// wireChannelHealth reflects connection state into metrics and health
func wireChannelHealth(client *natsclient.Client, metrics *metric.Metrics, monitor *health.Monitor) {
	monitor.UpdateDegraded("channel", "not yet connected")
	client.OnHealthChange(func(healthy bool) {
		if healthy {
			metrics.ChannelConnected.Set(1)
			monitor.UpdateHealthy("channel", "connected")
		} else {
			metrics.ChannelConnected.Set(0)
			monitor.UpdateDegraded("channel", "reconnecting")
		}
	})
}

// connectToNATS establishes the connection, retrying while the broker
// comes up
func connectToNATS(ctx context.Context, client *natsclient.Client) error {
	slog.Info("Connecting to NATS", "url", client.URL())

	err := retry.Do(ctx, retry.Config{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}, func() error {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return client.Connect(connectCtx)
	})
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	return nil
}

// buildPipeline wires the stores, pipeline stages, source, and controller
func buildPipeline(
	ctx context.Context,
	cfg *config.Config,
	natsClient *natsclient.Client,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*pipeline, error) {
	metrics := metricsRegistry.CoreMetrics()

	artifactStore, err := objectstore.New(ctx, natsClient, objectstore.Config{
		Bucket: cfg.Buckets.Artifacts,
	})
	if err != nil {
		return nil, fmt.Errorf("open artifact bucket: %w", err)
	}

	resultStore, err := objectstore.New(ctx, natsClient, objectstore.Config{
		Bucket: cfg.Buckets.Results,
	})
	if err != nil {
		return nil, fmt.Errorf("open result bucket: %w", err)
	}

	artifactFetcher := fetcher.New(fetcher.Deps{
		Config:  cfg.Fetch,
		Store:   artifactStore,
		Metrics: metrics,
		Logger:  logger.With("component", "fetcher"),
	})

	predictClient, err := predictor.New(predictor.Deps{
		Config:  cfg.Predict,
		Metrics: metrics,
		Logger:  logger.With("component", "predictor"),
	})
	if err != nil {
		return nil, fmt.Errorf("create prediction client: %w", err)
	}

	waitForScoringEndpoint(ctx, predictClient, cfg.Predict.URL)

	resultPackager := packager.New(packager.Deps{
		Config:  cfg.Package,
		Store:   resultStore,
		Metrics: metrics,
		Logger:  logger.With("component", "packager"),
	})

	eventSource := source.NewJetStreamSource(source.Deps{
		Config:  cfg.Source,
		Client:  natsClient,
		Metrics: metrics,
		Logger:  logger.With("component", "source"),
	})
	if err := eventSource.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize source: %w", err)
	}

	failureSink := buildFailureSink(cfg, natsClient, logger)

	controller, err := relay.NewController(relay.Deps{
		Config:    cfg.Relay,
		Events:    eventSource.Events(),
		Fetcher:   artifactFetcher,
		Predictor: predictClient,
		Packager:  resultPackager,
		Sink:      failureSink,
		Metrics:   metrics,
		Registry:  metricsRegistry,
		Logger:    logger.With("component", "relay"),
	})
	if err != nil {
		return nil, fmt.Errorf("create controller: %w", err)
	}

	return &pipeline{source: eventSource, controller: controller}, nil
}

// waitForScoringEndpoint polls the endpoint until it responds or the
// deadline passes. An endpoint still coming up is not a startup error: the
// relay starts anyway and lets deliveries redeliver until scoring recovers.
func waitForScoringEndpoint(ctx context.Context, client *predictor.Client, url string) {
	slog.Info("Checking scoring endpoint", "url", url)

	err := retry.Poll(ctx, 2*time.Second, 30*time.Second, func(pollCtx context.Context) (bool, error) {
		checkCtx, cancel := context.WithTimeout(pollCtx, 5*time.Second)
		defer cancel()
		if err := client.Ready(checkCtx); err != nil {
			slog.Debug("Scoring endpoint not ready", "error", err)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		slog.Warn("Scoring endpoint unreachable, starting anyway", "url", url, "error", err)
		return
	}

	slog.Info("Scoring endpoint reachable", "url", url)
}

// buildFailureSink combines the log sink with the NATS sink when a failure
// subject is configured
func buildFailureSink(cfg *config.Config, natsClient *natsclient.Client, logger *slog.Logger) sink.Sink {
	logSink := sink.NewLogSink(logger.With("component", "sink"))

	if cfg.Sink.Subject == "" {
		return logSink
	}

	return sink.NewMultiSink(
		logSink,
		sink.NewNATSSink(natsClient, cfg.Sink.Subject, logger.With("component", "sink")),
	)
}

// startMetricsServer exposes /metrics and /healthz when metrics are enabled
func startMetricsServer(
	cfg *config.Config,
	metricsRegistry *metric.MetricsRegistry,
	monitor *health.Monitor,
) (*metric.Server, error) {
	if !cfg.Metrics.Enabled {
		slog.Info("Metrics server disabled")
		return nil, nil
	}

	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
	server.Handle("/healthz", health.Handler(monitor, cfg.Service.Name))

	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start metrics server: %w", err)
	}

	slog.Info("Metrics server started", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	return server, nil
}

// runWithSignalHandling starts the pipeline and blocks until shutdown
func runWithSignalHandling(
	ctx context.Context,
	app *pipeline,
	metricsServer *metric.Server,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	// Controller first so events have a consumer before the source pulls
	if err := app.controller.Start(signalCtx); err != nil {
		return fmt.Errorf("start controller: %w", err)
	}
	if err := app.source.Start(signalCtx); err != nil {
		_ = app.controller.Stop(shutdownTimeout)
		return fmt.Errorf("start source: %w", err)
	}

	slog.Info("Inference relay started")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	return shutdown(app, metricsServer, shutdownTimeout)
}

// shutdown stops the pipeline in reverse dependency order: the source stops
// pulling, the controller drains in-flight events, then the metrics server
// goes down. Unsettled deliveries redeliver after the consumer's ack wait.
func shutdown(app *pipeline, metricsServer *metric.Server, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	var firstErr error
	if err := app.source.Stop(timeout); err != nil {
		slog.Error("Error stopping source", "error", err)
		firstErr = err
	}

	remaining := time.Until(deadline)
	if remaining < time.Second {
		remaining = time.Second
	}
	if err := app.controller.Stop(remaining); err != nil {
		slog.Error("Error stopping controller", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if metricsServer != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Stop(stopCtx); err != nil {
			slog.Error("Error stopping metrics server", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	slog.Info("Inference relay shutdown complete")
	return firstErr
}
