package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INVOICEDESK_CONFIG", "")
	t.Setenv("INVOICEDESK_STORAGE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "invoice-demo-data-v1", cfg.Storage.Key)
	assert.Equal(t, "memory", cfg.Queue.Driver)
	assert.Equal(t, 2*time.Minute, cfg.Gateway.Timeout)
	assert.Empty(t, cfg.SigningSecret)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoicedesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
address: ":9090"
reference_ttl: 30m
gateway:
  url: http://extractor:8000
  timeout: 45s
storage:
  driver: postgres
  postgres_url: postgres://file
queue:
  workers: 7
`), 0o600))

	t.Setenv("INVOICEDESK_CONFIG", path)
	t.Setenv("INVOICEDESK_DATABASE_URL", "postgres://env")
	t.Setenv("INVOICEDESK_WORKERS", "not-a-number")
	t.Setenv("INVOICEDESK_SIGNING_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, 30*time.Minute, cfg.ReferenceTTL)
	assert.Equal(t, "http://extractor:8000", cfg.Gateway.URL)
	assert.Equal(t, 45*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://env", cfg.Storage.PostgresURL)
	assert.Equal(t, 7, cfg.Queue.Workers, "invalid env value keeps file value")
	assert.Equal(t, []byte("s3cret"), cfg.SigningSecret)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFileFillsZeroValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_file_bytes: -1\nqueue:\n  workers: 0\n"), 0o600))
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, 25<<20, cfg.MaxFileSize)
	assert.Equal(t, 2, cfg.Queue.Workers)
}
