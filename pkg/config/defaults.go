package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/imgforge/internal/bytesize"
)

// Pipeline defaults.
const (
	DefaultTTL             = time.Hour
	DefaultContextTTL      = time.Hour
	DefaultCleanupInterval = 5 * time.Minute
	DefaultQuality         = 80
	DefaultMaxWorkers      = 4
	DefaultIdleTimeout     = 5 * time.Second
	DefaultQueueSize       = 10000
)

// Upload size limits.
const (
	DefaultMaxFileSize      = 50 * bytesize.MiB
	DefaultBatchMaxFileSize = 10 * bytesize.MiB
)

// ApplyDefaults fills unset fields with their defaults. Explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)
	applyOptimizationDefaults(&cfg.Optimization)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	// WriteTimeout stays zero: a server-wide write deadline would sever
	// long-lived SSE streams. Per-route timeouts cover the rest.
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyOptimizationDefaults(cfg *OptimizationConfig) {
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.ContextTTL == 0 {
		cfg.ContextTTL = DefaultContextTTL
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.BatchMaxFileSize == 0 {
		cfg.BatchMaxFileSize = DefaultBatchMaxFileSize
	}
	if cfg.DefaultQuality == 0 {
		cfg.DefaultQuality = DefaultQuality
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.MinWorkers == 0 {
		cfg.MinWorkers = cfg.MaxWorkers
	}
	if cfg.WorkerIdleTimeout == 0 {
		cfg.WorkerIdleTimeout = DefaultIdleTimeout
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.QueueHighWater == 0 {
		cfg.QueueHighWater = cfg.QueueSize
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "imgforge")
	}
}

// GetDefaultConfig returns a Config with every default applied. Used by
// the init command to write a sample file and by tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		S3: S3Config{
			Region: "us-east-1",
			Bucket: "imgforge-artifacts",
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
