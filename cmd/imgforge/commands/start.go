package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgforge/internal/logger"
	"github.com/marmos91/imgforge/internal/telemetry"
	"github.com/marmos91/imgforge/pkg/api"
	"github.com/marmos91/imgforge/pkg/api/handlers"
	"github.com/marmos91/imgforge/pkg/blob"
	blobs3 "github.com/marmos91/imgforge/pkg/blob/s3"
	"github.com/marmos91/imgforge/pkg/cleanup"
	"github.com/marmos91/imgforge/pkg/config"
	"github.com/marmos91/imgforge/pkg/journal"
	"github.com/marmos91/imgforge/pkg/metrics"
	"github.com/marmos91/imgforge/pkg/notify"
	"github.com/marmos91/imgforge/pkg/optimize"
	"github.com/marmos91/imgforge/pkg/pathmint"
	"github.com/marmos91/imgforge/pkg/reqcontext"
	"github.com/marmos91/imgforge/pkg/sse"
	"github.com/marmos91/imgforge/pkg/transform"
	"github.com/marmos91/imgforge/pkg/ttlstore"
	"github.com/marmos91/imgforge/pkg/workerpool"
)

// callbackTimeout bounds one webhook delivery.
const callbackTimeout = 30 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the imgforge server",
	Long: `Start the imgforge server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/imgforge/config.yaml.

Examples:
  # Start with default config location
  imgforge start

  # Start with custom config file
  imgforge start --config /etc/imgforge/config.yaml

  # Start with environment variable overrides
  IMGFORGE_LOGGING_LEVEL=DEBUG imgforge start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "imgforge",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "imgforge",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	fmt.Println("ImgForge - Asynchronous image optimization service")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Initialize metrics FIRST so collectors created below are registered.
	var pipelineMetrics *metrics.PipelineMetrics
	var eventMetrics *metrics.EventMetrics
	var storageMetrics *metrics.StorageMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		pipelineMetrics = metrics.NewPipelineMetrics()
		eventMetrics = metrics.NewEventMetrics()
		storageMetrics = metrics.NewStorageMetrics()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Shared TTL store and the controller-params registry on top of it.
	store := ttlstore.New[any](ttlstore.WithDefaultTTL[any](cfg.Optimization.DefaultTTL))
	registry := reqcontext.NewRegistry[optimize.Params](
		reqcontext.KindControllerParams, store, cfg.Optimization.ContextTTL)

	// Worker pool running the real transformer.
	pool := workerpool.New(workerpool.Config{
		MinWorkers:  cfg.Optimization.MinWorkers,
		MaxWorkers:  cfg.Optimization.MaxWorkers,
		IdleTimeout: cfg.Optimization.WorkerIdleTimeout,
		QueueSize:   cfg.Optimization.QueueSize,
	}, transform.Optimize)
	logger.Info("Worker pool started",
		"min_workers", cfg.Optimization.MinWorkers,
		"max_workers", cfg.Optimization.MaxWorkers,
		"queue_size", cfg.Optimization.QueueSize)

	broker := sse.NewBroker()
	notifier := notify.NewNotifier(callbackTimeout)

	// Blob sink: S3-compatible object store.
	sink, err := newSink(ctx, cfg, storageMetrics)
	if err != nil {
		return err
	}

	// Optional BadgerDB job journal.
	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer func() {
			if err := jnl.Close(); err != nil {
				logger.Error("journal close error", logger.KeyError, err)
			}
		}()

		orphans, err := jnl.ReportOrphans(ctx)
		if err != nil {
			logger.Warn("cannot report journal orphans", logger.KeyError, err)
		} else if orphans > 0 {
			logger.Warn("journal holds jobs from a previous run", "orphans", orphans)
		}
		logger.Info("Journal enabled", "path", cfg.Journal.Path)
	}

	// Cleanup scheduler: TTL sweep plus temp-file unlinking.
	scheduler := cleanup.New(store, broker, cleanup.Config{
		SweepInterval: cfg.Optimization.CleanupInterval,
	})
	scheduler.Start()
	defer scheduler.Stop()

	orch := optimize.New(optimize.Deps{
		Registry: registry,
		Pool:     pool,
		Broker:   broker,
		Notifier: notifier,
		Sink:     sink,
		Minter:   pathmint.New(),
		Journal:  jnl,
		Pipeline: pipelineMetrics,
		Events:   eventMetrics,
	}, optimize.Config{
		BaseURL:        cfg.S3.PublicBaseURL,
		QueueHighWater: cfg.Optimization.QueueHighWater,
	})

	router := api.NewRouter(api.Deps{
		Orchestrator: orch,
		Broker:       broker,
		Pool:         pool,
		Contexts:     store,
		Sink:         sink,
		Uploads: handlers.UploadConfig{
			MaxFileSize:      int64(cfg.Optimization.MaxFileSize),
			BatchMaxFileSize: int64(cfg.Optimization.BatchMaxFileSize),
			DefaultQuality:   cfg.Optimization.DefaultQuality,
			TempDir:          cfg.Optimization.TempDir,
		},
		DownloadDir: cfg.Optimization.TempDir,
	})

	apiServer := api.NewServer(cfg.Server, router)
	logger.Info("API server configured", "host", cfg.Server.Host, "port", cfg.Server.Port)

	// Keep the pool gauges fresh while metrics are on.
	if pipelineMetrics != nil {
		go pollPoolStats(ctx, pool, broker, pipelineMetrics, eventMetrics)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics.Port)
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		runErr = <-serverDone
	case runErr = <-serverDone:
		signal.Stop(sigChan)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", logger.KeyError, err)
		}
	}

	// Drain in-flight optimizations, then drop streams and contexts.
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", logger.KeyError, err)
	}
	scheduler.Stop()
	broker.Close()
	store.Clear()

	if runErr != nil {
		logger.Error("Server error", logger.KeyError, runErr)
		return runErr
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// newSink builds the S3 sink and verifies the bucket is reachable.
func newSink(ctx context.Context, cfg *config.Config, storageMetrics *metrics.StorageMetrics) (blob.Sink, error) {
	client, err := blobs3.NewClientFromConfig(ctx,
		cfg.S3.Endpoint,
		cfg.S3.Region,
		cfg.S3.AccessKeyID,
		cfg.S3.SecretAccessKey,
		cfg.S3.ForcePathStyle,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	sink, err := blobs3.NewSink(ctx, client, blobs3.Config{
		Bucket:    cfg.S3.Bucket,
		KeyPrefix: cfg.S3.KeyPrefix,
		Metrics:   storageMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 sink: %w", err)
	}

	logger.Info("Blob sink ready", logger.KeyBucket, cfg.S3.Bucket, "endpoint", cfg.S3.Endpoint)
	return sink, nil
}

// startMetricsServer serves /metrics on its own port.
func startMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info("Metrics server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", logger.KeyError, err)
		}
	}()

	return srv
}

// pollPoolStats refreshes the pool and subscriber gauges.
func pollPoolStats(ctx context.Context, pool *workerpool.Pool, broker *sse.Broker, pipeline *metrics.PipelineMetrics, events *metrics.EventMetrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := pool.Stats()
			pipeline.SetPoolState(stats.QueueDepth, stats.ActiveWorkers)
			events.SetSubscribers(broker.StreamCount())
		}
	}
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
