package config

import (
	"fmt"
	"time"
)

// ClientTransport holds the transport settings used by the sync client.
type ClientTransport struct {
	// PushURL is the websocket endpoint of the push channel.
	PushURL string
	// PollingURL is the base HTTP URL for pull-mode fetches.
	PollingURL string
	// Token is the bearer token presented on both transports.
	Token string
	// PollingInterval spaces the pull-mode fetches.
	PollingInterval time.Duration
	// MaxReconnectAttempts bounds push reconnects before pull fallback.
	MaxReconnectAttempts int
	// ReconnectBackoffBase is the first reconnect delay.
	ReconnectBackoffBase time.Duration
	// ReconnectBackoffMax caps the exponential reconnect delay.
	ReconnectBackoffMax time.Duration
	// HeartbeatInterval spaces client heartbeats on the push channel.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout is how long to wait for a heartbeat ack.
	HeartbeatTimeout time.Duration
	// ConnectionTimeout bounds one push-channel open.
	ConnectionTimeout time.Duration
	// ForceSyncTimeout bounds one correlated force-sync round trip.
	ForceSyncTimeout time.Duration
	// RequestTimeout is the default timeout for outbound HTTP requests.
	RequestTimeout time.Duration
}

// ClientConfig is the top-level client configuration assembled from
// [StructuredConfig].
type ClientConfig struct {
	// Transport contains the sync transport settings.
	Transport ClientTransport
}

// GetClientConfig builds and validates a client-specific config view from the
// merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps only the fields
// relevant to the client runtime, and validates the resulting [ClientConfig].
func GetClientConfig() (*ClientConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := &ClientConfig{
		Transport: ClientTransport{
			PushURL:              cfg.Client.PushURL,
			PollingURL:           cfg.Client.PollingURL,
			Token:                cfg.Client.Token,
			PollingInterval:      cfg.Client.PollingInterval,
			MaxReconnectAttempts: cfg.Client.MaxReconnectAttempts,
			ReconnectBackoffBase: cfg.Client.ReconnectBackoffBase,
			ReconnectBackoffMax:  cfg.Client.ReconnectBackoffMax,
			HeartbeatInterval:    cfg.Client.HeartbeatInterval,
			HeartbeatTimeout:     cfg.Client.HeartbeatTimeout,
			ConnectionTimeout:    cfg.Client.ConnectionTimeout,
			ForceSyncTimeout:     cfg.Client.ForceSyncTimeout,
			RequestTimeout:       cfg.Client.RequestTimeout,
		},
	}

	return clientCfg, clientCfg.validate()
}
