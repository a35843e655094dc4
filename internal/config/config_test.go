package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: "9090"
postgres:
  url: postgres://cie@localhost/cie
redis:
  addr: localhost:6379
  ttl: 5m
catalog:
  ttl: 30s
scoring:
  batch_size: 25
log:
  debug: true
seed:
  path: config/roster.yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres://cie@localhost/cie", cfg.Postgres.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 25, cfg.Scoring.BatchSize)
	assert.True(t, cfg.Log.Debug)
	assert.Equal(t, "config/roster.yaml", cfg.Seed.Path)
	assert.Equal(t, 30*time.Second, TTLDuration(cfg.Catalog.TTL, time.Minute))
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[server]
port = "7070"

[scoring]
batch_size = 10

[catalog]
ttl = "2m"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 10, cfg.Scoring.BatchSize)
	assert.Equal(t, 2*time.Minute, TTLDuration(cfg.Catalog.TTL, time.Minute))
}

func TestLoadRejectsNegativeBatchSize(t *testing.T) {
	path := writeFile(t, "config.yaml", "scoring:\n  batch_size: -1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestTTLDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
}

func TestBatchSizeDefault(t *testing.T) {
	var cfg Config
	assert.Equal(t, 50, cfg.BatchSize())
	cfg.Scoring.BatchSize = 20
	assert.Equal(t, 20, cfg.BatchSize())
}
