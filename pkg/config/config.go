package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/imgforge/internal/bytesize"
)

// Config is the ImgForge server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (IMGFORGE_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server contains the HTTP API server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Optimization tunes the optimization pipeline
	Optimization OptimizationConfig `mapstructure:"optimization" yaml:"optimization"`

	// S3 configures the blob sink for optimized artifacts
	S3 S3Config `mapstructure:"s3" yaml:"s3"`

	// Journal configures the optional BadgerDB job journal
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the log output format: text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is where logs are written: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is active. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector. Default: true
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling rate in [0,1]. Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is active. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes selects which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the /metrics endpoint. Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Host is the listen address. Default: 0.0.0.0
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the listen port. Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is zero by default; a non-zero value cuts off SSE
	// streams that outlive it.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"omitempty,gt=0" yaml:"shutdown_timeout"`
}

// OptimizationConfig tunes the pipeline: TTLs, limits, pool sizing.
type OptimizationConfig struct {
	// DefaultTTL is the TTL-store entry default. Default: 1h
	DefaultTTL time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`

	// ContextTTL bounds the lifetime of request contexts. Default: 1h
	ContextTTL time.Duration `mapstructure:"context_ttl" yaml:"context_ttl"`

	// CleanupInterval is the sweep cadence. Default: 5m
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`

	// MaxFileSize is the single-upload limit. Default: 50MiB
	MaxFileSize bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size"`

	// BatchMaxFileSize is the per-file limit inside a batch. Default: 10MiB
	BatchMaxFileSize bytesize.ByteSize `mapstructure:"batch_max_file_size" yaml:"batch_max_file_size"`

	// DefaultQuality is the encoding quality when the client sends none.
	// Default: 80
	DefaultQuality int `mapstructure:"default_quality" validate:"omitempty,min=1,max=100" yaml:"default_quality"`

	// MinWorkers and MaxWorkers bound the worker pool. Default max: 4
	MinWorkers int `mapstructure:"min_workers" yaml:"min_workers"`
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers"`

	// WorkerIdleTimeout retires surplus workers. Default: 5s
	WorkerIdleTimeout time.Duration `mapstructure:"worker_idle_timeout" yaml:"worker_idle_timeout"`

	// QueueSize is the pool queue ceiling. Default: 10000
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`

	// QueueHighWater rejects accepts past this depth. Default: QueueSize
	QueueHighWater int `mapstructure:"queue_high_water" yaml:"queue_high_water"`

	// TempDir holds uploaded files while they await processing.
	// Default: <os temp>/imgforge
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir"`
}

// S3Config configures the S3-compatible blob sink.
type S3Config struct {
	// Endpoint overrides the AWS endpoint (MinIO and friends). Optional.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Region is the bucket region. Required.
	Region string `mapstructure:"region" yaml:"region"`

	// Bucket receives optimized artifacts. Required.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// KeyPrefix is prepended to every object key. Optional.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// ForcePathStyle enables path-style addressing (MinIO). Default: false
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// PublicBaseURL is the CDN/origin prefix of download URLs.
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// JournalConfig configures the optional job journal.
type JournalConfig struct {
	// Enabled turns the BadgerDB journal on. Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the journal database directory. Required when enabled.
	Path string `mapstructure:"path" yaml:"path"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the config
// file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  imgforge init\n\n"+
				"Or specify a custom config file:\n"+
				"  imgforge <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  imgforge init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures env overrides and config file resolution.
// Example: IMGFORGE_LOGGING_LEVEL=DEBUG, IMGFORGE_S3_BUCKET=media.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("IMGFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the config file if present. A missing file is not
// an error; defaults apply.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks combines the custom type hooks (ByteSize, Duration).
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings like "50MiB" and raw numbers to
// bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory, preferring
// XDG_CONFIG_HOME, then ~/.config, then the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "imgforge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "imgforge")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks for a config file at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory (for the init command).
func GetConfigDir() string {
	return getConfigDir()
}
