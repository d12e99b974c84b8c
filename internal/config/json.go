package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON tags and
// string-friendly durations ("30s", "5m").
type StructuredJSONConfig struct {
	Server struct {
		HTTPAddress     string   `json:"http_address"`
		RequestTimeout  Duration `json:"request_timeout"`
		ShutdownTimeout Duration `json:"shutdown_timeout"`
	} `json:"server,omitempty"`

	Registry struct {
		HeartbeatTimeout Duration `json:"heartbeat_timeout"`
		SweepInterval    Duration `json:"sweep_interval"`
		SnapshotTimeout  Duration `json:"snapshot_timeout"`
	} `json:"registry,omitempty"`

	Guard struct {
		WebhookSecret        string   `json:"webhook_secret"`
		MaxTimestampAge      Duration `json:"max_timestamp_age"`
		MaxTimestampFuture   Duration `json:"max_timestamp_future"`
		IdempotencyCacheSize int      `json:"idempotency_cache_size"`
		IdempotencyTTL       Duration `json:"idempotency_ttl"`
		FailureWindow        Duration `json:"failure_window"`
		FailureThreshold     int      `json:"failure_threshold"`
		RateLimitPerSecond   float64  `json:"rate_limit_per_second"`
		RateLimitBurst       int      `json:"rate_limit_burst"`
	} `json:"guard,omitempty"`

	Queue struct {
		MessageTTL      Duration `json:"message_ttl"`
		CleanupInterval Duration `json:"cleanup_interval"`
		MaxQueueLength  int      `json:"max_queue_length"`
	} `json:"queue,omitempty"`

	Client struct {
		PushURL              string   `json:"push_url"`
		PollingURL           string   `json:"polling_url"`
		Token                string   `json:"token"`
		PollingInterval      Duration `json:"polling_interval"`
		MaxReconnectAttempts int      `json:"max_reconnect_attempts"`
		ReconnectBackoffBase Duration `json:"reconnect_backoff_base"`
		ReconnectBackoffMax  Duration `json:"reconnect_backoff_max"`
		HeartbeatInterval    Duration `json:"heartbeat_interval"`
		HeartbeatTimeout     Duration `json:"heartbeat_timeout"`
		ConnectionTimeout    Duration `json:"connection_timeout"`
		ForceSyncTimeout     Duration `json:"force_sync_timeout"`
		RequestTimeout       Duration `json:"request_timeout"`
	} `json:"client,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Server: Server{
			HTTPAddress:     jsonCfg.Server.HTTPAddress,
			RequestTimeout:  time.Duration(jsonCfg.Server.RequestTimeout),
			ShutdownTimeout: time.Duration(jsonCfg.Server.ShutdownTimeout),
		},
		Registry: Registry{
			HeartbeatTimeout: time.Duration(jsonCfg.Registry.HeartbeatTimeout),
			SweepInterval:    time.Duration(jsonCfg.Registry.SweepInterval),
			SnapshotTimeout:  time.Duration(jsonCfg.Registry.SnapshotTimeout),
		},
		Guard: Guard{
			WebhookSecret:        jsonCfg.Guard.WebhookSecret,
			MaxTimestampAge:      time.Duration(jsonCfg.Guard.MaxTimestampAge),
			MaxTimestampFuture:   time.Duration(jsonCfg.Guard.MaxTimestampFuture),
			IdempotencyCacheSize: jsonCfg.Guard.IdempotencyCacheSize,
			IdempotencyTTL:       time.Duration(jsonCfg.Guard.IdempotencyTTL),
			FailureWindow:        time.Duration(jsonCfg.Guard.FailureWindow),
			FailureThreshold:     jsonCfg.Guard.FailureThreshold,
			RateLimitPerSecond:   jsonCfg.Guard.RateLimitPerSecond,
			RateLimitBurst:       jsonCfg.Guard.RateLimitBurst,
		},
		Queue: Queue{
			MessageTTL:      time.Duration(jsonCfg.Queue.MessageTTL),
			CleanupInterval: time.Duration(jsonCfg.Queue.CleanupInterval),
			MaxQueueLength:  jsonCfg.Queue.MaxQueueLength,
		},
		Client: Client{
			PushURL:              jsonCfg.Client.PushURL,
			PollingURL:           jsonCfg.Client.PollingURL,
			Token:                jsonCfg.Client.Token,
			PollingInterval:      time.Duration(jsonCfg.Client.PollingInterval),
			MaxReconnectAttempts: jsonCfg.Client.MaxReconnectAttempts,
			ReconnectBackoffBase: time.Duration(jsonCfg.Client.ReconnectBackoffBase),
			ReconnectBackoffMax:  time.Duration(jsonCfg.Client.ReconnectBackoffMax),
			HeartbeatInterval:    time.Duration(jsonCfg.Client.HeartbeatInterval),
			HeartbeatTimeout:     time.Duration(jsonCfg.Client.HeartbeatTimeout),
			ConnectionTimeout:    time.Duration(jsonCfg.Client.ConnectionTimeout),
			ForceSyncTimeout:     time.Duration(jsonCfg.Client.ForceSyncTimeout),
			RequestTimeout:       time.Duration(jsonCfg.Client.RequestTimeout),
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
