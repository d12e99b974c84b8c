package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_Success(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")

	jsonBody := `{
		"server": {
			"http_address": "localhost:8080",
			"request_timeout": "30s",
			"shutdown_timeout": "10s"
		},
		"registry": {
			"heartbeat_timeout": "1m",
			"sweep_interval": "30s",
			"snapshot_timeout": "15s"
		},
		"guard": {
			"webhook_secret": "whsec_test",
			"max_timestamp_age": "5m",
			"max_timestamp_future": "1m",
			"idempotency_cache_size": 5000,
			"idempotency_ttl": "5m",
			"failure_window": "5m",
			"failure_threshold": 7,
			"rate_limit_per_second": 2.5,
			"rate_limit_burst": 20
		},
		"queue": {
			"message_ttl": "5m",
			"cleanup_interval": "1m",
			"max_queue_length": 500
		},
		"client": {
			"push_url": "ws://localhost:8080/ws",
			"polling_url": "http://localhost:8080",
			"token": "bearer-token",
			"polling_interval": "20s",
			"max_reconnect_attempts": 3
		}
	}`

	require.NoError(t, os.WriteFile(p, []byte(jsonBody), 0o600))

	// Act
	cfg, err := parseJSON(p)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddress)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, time.Minute, cfg.Registry.HeartbeatTimeout)
	assert.Equal(t, 30*time.Second, cfg.Registry.SweepInterval)

	assert.Equal(t, "whsec_test", cfg.Guard.WebhookSecret)
	assert.Equal(t, 5*time.Minute, cfg.Guard.MaxTimestampAge)
	assert.Equal(t, 5000, cfg.Guard.IdempotencyCacheSize)
	assert.Equal(t, 7, cfg.Guard.FailureThreshold)
	assert.Equal(t, 2.5, cfg.Guard.RateLimitPerSecond)

	assert.Equal(t, 5*time.Minute, cfg.Queue.MessageTTL)
	assert.Equal(t, 500, cfg.Queue.MaxQueueLength)

	assert.Equal(t, "ws://localhost:8080/ws", cfg.Client.PushURL)
	assert.Equal(t, "http://localhost:8080", cfg.Client.PollingURL)
	assert.Equal(t, 20*time.Second, cfg.Client.PollingInterval)
	assert.Equal(t, 3, cfg.Client.MaxReconnectAttempts)

	// the JSON source never points at another JSON file
	assert.Empty(t, cfg.JSONFilePath)
}

func TestParseJSON_NumericDuration(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")

	// durations may also be raw nanoseconds
	jsonBody := `{"server": {"request_timeout": 30000000000}}`
	require.NoError(t, os.WriteFile(p, []byte(jsonBody), 0o600))

	cfg, err := parseJSON(p)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
}

func TestParseJSON_MissingFile(t *testing.T) {
	cfg, err := parseJSON("/does/not/exist.json")

	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestParseJSON_MalformedBody(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(p, []byte("{not json"), 0o600))

	cfg, err := parseJSON(p)

	require.Error(t, err)
	assert.Nil(t, cfg)
}
