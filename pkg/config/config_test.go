package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/imgforge/internal/bytesize"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
server:
  port: 9000
optimization:
  default_ttl: 30m
  max_file_size: 10MiB
  max_workers: 8
s3:
  region: eu-west-1
  bucket: media
  public_base_url: https://cdn.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Optimization.DefaultTTL)
	assert.Equal(t, 10*bytesize.MiB, cfg.Optimization.MaxFileSize)
	assert.Equal(t, 8, cfg.Optimization.MaxWorkers)
	assert.Equal(t, 8, cfg.Optimization.MinWorkers, "min defaults to max")
	assert.Equal(t, "media", cfg.S3.Bucket)
	assert.Equal(t, "https://cdn.example.com", cfg.S3.PublicBaseURL)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DefaultTTL, cfg.Optimization.DefaultTTL)
	assert.Equal(t, DefaultMaxFileSize, cfg.Optimization.MaxFileSize)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: verbose
s3:
  region: us-east-1
  bucket: b
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "logging: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
}

func TestMustLoadMissingExplicitFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imgforge init")
}

func TestSaveAndReload(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 9999
	cfg.S3.Bucket = "roundtrip"

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.Server.Port)
	assert.Equal(t, "roundtrip", loaded.S3.Bucket)
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
s3:
  region: us-east-1
  bucket: from-file
`)

	t.Setenv("IMGFORGE_S3_BUCKET", "from-env")
	t.Setenv("IMGFORGE_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.S3.Bucket)
	assert.Equal(t, "WARN", cfg.Logging.Level)
}
