package models

import "time"

// Timestamp rejection codes returned by the integrity guard.
const (
	// CodeReplayDetected marks an event older than the freshness window,
	// a possible replay of a previously valid delivery.
	CodeReplayDetected = "replay_detected"
	// CodeFutureTimestamp marks an event too far ahead of the server clock,
	// either clock skew or forgery.
	CodeFutureTimestamp = "invalid_timestamp_future"
)

// TimestampValidation is the result of the guard's freshness check.
type TimestampValidation struct {
	Valid  bool   `json:"valid"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// IdempotencyResult reports whether an external event id has already been
// applied. FirstProcessedAt is set only when IsDuplicate is true.
type IdempotencyResult struct {
	IsDuplicate      bool       `json:"is_duplicate"`
	FirstProcessedAt *time.Time `json:"first_processed_at,omitempty"`
}

// IdempotencyRecord marks a specific external event id as applied. It is
// created the first time an event is accepted and expires with the guard's
// idempotency TTL, after which the same id may legitimately be reprocessed.
type IdempotencyRecord struct {
	ExternalEventID string    `json:"external_event_id"`
	ProcessedAt     time.Time `json:"processed_at"`
	EventType       string    `json:"event_type"`
}

// WebhookEvent is the normalized form of an inbound payment-provider
// delivery after the HTTP handler has extracted the provider headers.
// Timestamp is Unix milliseconds; callers normalize second-precision
// providers before constructing the event.
type WebhookEvent struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Timestamp int64  `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}
