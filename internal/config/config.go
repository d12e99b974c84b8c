package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container. It aggregates
// all sub-configurations and is populated by merging values from environment
// variables, command-line flags, an optional JSON file, and built-in
// defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Server holds network address and timeout settings for the HTTP
	// server.
	Server Server `envPrefix:"SERVER_"`

	// Registry holds connection-registry settings for the push channel.
	Registry Registry `envPrefix:"REGISTRY_"`

	// Guard holds webhook delivery-integrity settings.
	Guard Guard `envPrefix:"GUARD_"`

	// Queue holds pull-mode message queue settings.
	Queue Queue `envPrefix:"QUEUE_"`

	// Client holds the sync client transport settings. Ignored by the
	// server binary.
	Client Client `envPrefix:"CLIENT_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged below the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Server holds network and timeout settings for the inbound transport layer.
type Server struct {
	// HTTPAddress is the TCP address on which the HTTP server listens,
	// in "host:port" format (e.g. "0.0.0.0:8080").
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout is the maximum duration allowed for a single inbound
	// request before the server cancels it (e.g. "30s", "1m").
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	// Env: SERVER_SHUTDOWN_TIMEOUT
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
}

// Registry holds liveness settings for server-side push connections.
type Registry struct {
	// HeartbeatTimeout is how long a connection may stay silent before
	// the sweeper evicts it.
	// Env: REGISTRY_HEARTBEAT_TIMEOUT
	HeartbeatTimeout time.Duration `env:"HEARTBEAT_TIMEOUT"`

	// SweepInterval spaces the stale-connection sweeps.
	// Env: REGISTRY_SWEEP_INTERVAL
	SweepInterval time.Duration `env:"SWEEP_INTERVAL"`

	// SnapshotTimeout bounds one force-sync snapshot build.
	// Env: REGISTRY_SNAPSHOT_TIMEOUT
	SnapshotTimeout time.Duration `env:"SNAPSHOT_TIMEOUT"`
}

// Guard holds webhook delivery-integrity settings: signature verification,
// timestamp windows, idempotency, and failure tracking.
type Guard struct {
	// WebhookSecret is the shared HMAC-SHA256 key webhook signatures are
	// verified against. Must be kept confidential.
	// Env: GUARD_WEBHOOK_SECRET
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// MaxTimestampAge is how far in the past a webhook timestamp may lie
	// before the event is rejected as a replay.
	// Env: GUARD_MAX_TIMESTAMP_AGE
	MaxTimestampAge time.Duration `env:"MAX_TIMESTAMP_AGE"`

	// MaxTimestampFuture is the tolerated clock skew into the future.
	// Env: GUARD_MAX_TIMESTAMP_FUTURE
	MaxTimestampFuture time.Duration `env:"MAX_TIMESTAMP_FUTURE"`

	// IdempotencyCacheSize bounds the processed-event cache.
	// Env: GUARD_IDEMPOTENCY_CACHE_SIZE
	IdempotencyCacheSize int `env:"IDEMPOTENCY_CACHE_SIZE"`

	// IdempotencyTTL is how long a processed event ID stays deduplicated.
	// Env: GUARD_IDEMPOTENCY_TTL
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL"`

	// FailureWindow is the sliding window over which verification
	// failures per source are counted.
	// Env: GUARD_FAILURE_WINDOW
	FailureWindow time.Duration `env:"FAILURE_WINDOW"`

	// FailureThreshold is the in-window failure count that triggers a
	// security warning.
	// Env: GUARD_FAILURE_THRESHOLD
	FailureThreshold int `env:"FAILURE_THRESHOLD"`

	// RateLimitPerSecond caps webhook deliveries per source address.
	// Env: GUARD_RATE_LIMIT_PER_SECOND
	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND"`

	// RateLimitBurst is the token-bucket burst for webhook deliveries.
	// Env: GUARD_RATE_LIMIT_BURST
	RateLimitBurst int `env:"RATE_LIMIT_BURST"`
}

// Queue holds settings for the recipient-keyed update queue backing pull
// mode.
type Queue struct {
	// MessageTTL is how long undelivered updates are retained.
	// Env: QUEUE_MESSAGE_TTL
	MessageTTL time.Duration `env:"MESSAGE_TTL"`

	// CleanupInterval spaces the expired-message sweeps.
	// Env: QUEUE_CLEANUP_INTERVAL
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL"`

	// MaxQueueLength caps one recipient's backlog; overflow drops the
	// oldest entries.
	// Env: QUEUE_MAX_QUEUE_LENGTH
	MaxQueueLength int `env:"MAX_QUEUE_LENGTH"`
}

// Client holds the sync client's transport settings.
type Client struct {
	// PushURL is the websocket endpoint of the push channel.
	// Env: CLIENT_PUSH_URL
	PushURL string `env:"PUSH_URL"`

	// PollingURL is the base HTTP URL for pull-mode fetches.
	// Env: CLIENT_POLLING_URL
	PollingURL string `env:"POLLING_URL"`

	// Token is the bearer token presented on both transports.
	// Env: CLIENT_TOKEN
	Token string `env:"TOKEN"`

	// PollingInterval spaces the pull-mode fetches.
	// Env: CLIENT_POLLING_INTERVAL
	PollingInterval time.Duration `env:"POLLING_INTERVAL"`

	// MaxReconnectAttempts bounds push reconnects before pull fallback.
	// Env: CLIENT_MAX_RECONNECT_ATTEMPTS
	MaxReconnectAttempts int `env:"MAX_RECONNECT_ATTEMPTS"`

	// ReconnectBackoffBase is the first reconnect delay.
	// Env: CLIENT_RECONNECT_BACKOFF_BASE
	ReconnectBackoffBase time.Duration `env:"RECONNECT_BACKOFF_BASE"`

	// ReconnectBackoffMax caps the exponential reconnect delay.
	// Env: CLIENT_RECONNECT_BACKOFF_MAX
	ReconnectBackoffMax time.Duration `env:"RECONNECT_BACKOFF_MAX"`

	// HeartbeatInterval spaces client heartbeats on the push channel.
	// Env: CLIENT_HEARTBEAT_INTERVAL
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL"`

	// HeartbeatTimeout is how long to wait for a heartbeat ack.
	// Env: CLIENT_HEARTBEAT_TIMEOUT
	HeartbeatTimeout time.Duration `env:"HEARTBEAT_TIMEOUT"`

	// ConnectionTimeout bounds one push-channel open.
	// Env: CLIENT_CONNECTION_TIMEOUT
	ConnectionTimeout time.Duration `env:"CONNECTION_TIMEOUT"`

	// ForceSyncTimeout bounds one correlated force-sync round trip.
	// Env: CLIENT_FORCE_SYNC_TIMEOUT
	ForceSyncTimeout time.Duration `env:"FORCE_SYNC_TIMEOUT"`

	// RequestTimeout is the default timeout for outbound HTTP requests.
	// Env: CLIENT_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// defaultConfig returns the built-in defaults, merged below every explicit
// source.
func defaultConfig() *StructuredConfig {
	return &StructuredConfig{
		Server: Server{
			HTTPAddress:     "localhost:8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Registry: Registry{
			HeartbeatTimeout: 60 * time.Second,
			SweepInterval:    30 * time.Second,
			SnapshotTimeout:  15 * time.Second,
		},
		Guard: Guard{
			MaxTimestampAge:      5 * time.Minute,
			MaxTimestampFuture:   time.Minute,
			IdempotencyCacheSize: 10000,
			IdempotencyTTL:       5 * time.Minute,
			FailureWindow:        5 * time.Minute,
			FailureThreshold:     5,
			RateLimitPerSecond:   5,
			RateLimitBurst:       10,
		},
		Queue: Queue{
			MessageTTL:      5 * time.Minute,
			CleanupInterval: time.Minute,
			MaxQueueLength:  1000,
		},
		Client: Client{
			PollingInterval:      30 * time.Second,
			MaxReconnectAttempts: 5,
			ReconnectBackoffBase: time.Second,
			ReconnectBackoffMax:  30 * time.Second,
			HeartbeatInterval:    30 * time.Second,
			HeartbeatTimeout:     10 * time.Second,
			ConnectionTimeout:    10 * time.Second,
			ForceSyncTimeout:     15 * time.Second,
			RequestTimeout:       15 * time.Second,
		},
	}
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (first source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
