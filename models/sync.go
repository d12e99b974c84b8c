package models

import "time"

// ConnectionType names the transport currently carrying updates to the
// client.
type ConnectionType string

const (
	// ConnectionOffline means no transport is active.
	ConnectionOffline ConnectionType = "offline"
	// ConnectionPush means the persistent push channel is active.
	ConnectionPush ConnectionType = "push"
	// ConnectionPull means the client fell back to periodic polling.
	ConnectionPull ConnectionType = "pull"
)

// SyncStatus is the transport state the UI renders. It is owned exclusively
// by the transport manager; callers receive copies and must treat them as
// read-only snapshots.
type SyncStatus struct {
	Connected      bool           `json:"connected"`
	ConnectionType ConnectionType `json:"connection_type"`
	SyncInProgress bool           `json:"sync_in_progress"`
	LastSyncAt     *time.Time     `json:"last_sync_at,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
}

// SyncMetrics accumulates transport health counters for the lifetime of one
// manager instance. Counters are monotonic; AverageLatencyMs is a rolling
// mean over all recorded sync round trips. SuccessRatePct is 100 until the
// first sync is recorded.
type SyncMetrics struct {
	AverageLatencyMs    float64 `json:"average_latency_ms"`
	SuccessRatePct      float64 `json:"success_rate_pct"`
	ErrorCount          int64   `json:"error_count"`
	ReconnectCount      int64   `json:"reconnect_count"`
	TotalSyncs          int64   `json:"total_syncs"`
	FailedSyncs         int64   `json:"failed_syncs"`
	DataInconsistencies int64   `json:"data_inconsistencies"`
}
