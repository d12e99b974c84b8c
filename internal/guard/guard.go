// Package guard gates inbound payment-provider webhooks before any business
// mutation is allowed to run. It validates event freshness, detects
// duplicate deliveries by external event id, and tracks repeated
// signature-verification failures per source address.
//
// Freshness and idempotency are independent gates: a fresh-but-duplicate
// event must still be refused, and a stale event must be refused even if
// never seen before. Callers apply both, in either order, before mutating
// state.
package guard

import (
	"fmt"
	"time"

	"github.com/beatwave/dashsync/internal/cache"
	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/models"
)

// Config tunes the integrity guard. Zero fields fall back to the documented
// defaults.
type Config struct {
	// MaxTimestampAge is the freshness window; events older than this are
	// treated as replays. Default 300s.
	MaxTimestampAge time.Duration
	// MaxTimestampFuture is the tolerated clock skew ahead of server time.
	// Default 60s.
	MaxTimestampFuture time.Duration
	// IdempotencyCacheSize bounds the number of remembered event ids.
	// Default 10000.
	IdempotencyCacheSize int
	// IdempotencyTTL is how long an applied event id stays remembered.
	// After expiry the same id may legitimately be reprocessed; the
	// provider's own retry window is assumed shorter. Default 300s.
	IdempotencyTTL time.Duration
	// FailureWindow is the sliding window for per-address failure counts.
	// Default 300s.
	FailureWindow time.Duration
	// FailureThreshold is the in-window failure count at which ShouldWarn
	// fires. Default 5.
	FailureThreshold int
}

func (c Config) withDefaults() Config {
	if c.MaxTimestampAge <= 0 {
		c.MaxTimestampAge = 300 * time.Second
	}
	if c.MaxTimestampFuture <= 0 {
		c.MaxTimestampFuture = 60 * time.Second
	}
	if c.IdempotencyCacheSize <= 0 {
		c.IdempotencyCacheSize = 10000
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = 300 * time.Second
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = 300 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	return c
}

// Guard is the webhook integrity guard. Its idempotency and failure caches
// are private; callers only see method results, never raw entries.
type Guard struct {
	cfg      Config
	applied  *cache.Cache[models.IdempotencyRecord]
	failures *cache.Cache[[]time.Time]
	logger   *logger.Logger

	now func() time.Time
}

// New constructs a Guard with the given configuration.
func New(cfg Config, log *logger.Logger) *Guard {
	cfg = cfg.withDefaults()

	return &Guard{
		cfg:      cfg,
		applied:  cache.New[models.IdempotencyRecord](cfg.IdempotencyCacheSize, cfg.IdempotencyTTL),
		failures: cache.New[[]time.Time](cfg.IdempotencyCacheSize, cfg.FailureWindow),
		logger:   log,
		now:      time.Now,
	}
}

// ValidateTimestamp checks the freshness of an event timestamp. Events older
// than MaxTimestampAge are rejected as possible replays; events more than
// MaxTimestampFuture ahead of server time are rejected as clock skew or
// forgery. Both branches are checked even for zero or negative timestamps.
func (g *Guard) ValidateTimestamp(ts time.Time) models.TimestampValidation {
	now := g.now()
	age := now.Sub(ts)

	if age > g.cfg.MaxTimestampAge {
		return models.TimestampValidation{
			Valid:  false,
			Code:   models.CodeReplayDetected,
			Reason: fmt.Sprintf("event is %s old, freshness window is %s", age.Truncate(time.Second), g.cfg.MaxTimestampAge),
		}
	}
	if age < -g.cfg.MaxTimestampFuture {
		return models.TimestampValidation{
			Valid:  false,
			Code:   models.CodeFutureTimestamp,
			Reason: fmt.Sprintf("event is %s ahead of server time, tolerated skew is %s", (-age).Truncate(time.Second), g.cfg.MaxTimestampFuture),
		}
	}

	return models.TimestampValidation{Valid: true}
}

// CheckIdempotency reports whether eventID has already been applied within
// the idempotency TTL. It never mutates state; duplicates are detected only
// after an explicit RecordProcessed.
func (g *Guard) CheckIdempotency(eventID string) models.IdempotencyResult {
	rec, ok := g.applied.Get(eventID)
	if !ok {
		return models.IdempotencyResult{IsDuplicate: false}
	}

	processedAt := rec.ProcessedAt
	return models.IdempotencyResult{IsDuplicate: true, FirstProcessedAt: &processedAt}
}

// RecordProcessed marks eventID as applied. Call it only after the event's
// effect has actually been committed.
func (g *Guard) RecordProcessed(eventID, eventType string) {
	g.applied.Set(eventID, models.IdempotencyRecord{
		ExternalEventID: eventID,
		ProcessedAt:     g.now(),
		EventType:       eventType,
	}, g.cfg.IdempotencyTTL)

	g.logger.Debug().
		Str("event_id", eventID).
		Str("event_type", eventType).
		Msg("webhook event recorded as processed")
}

// TrackFailure appends a signature-verification failure for sourceAddr.
// Timestamps outside the sliding window are discarded lazily here and on
// reads, never by a background sweep.
func (g *Guard) TrackFailure(sourceAddr string) {
	now := g.now()
	recent := g.recentFailures(sourceAddr, now)
	recent = append(recent, now)
	g.failures.Set(sourceAddr, recent, g.cfg.FailureWindow)

	g.logger.Warn().
		Str("source_addr", sourceAddr).
		Int("failures_in_window", len(recent)).
		Msg("webhook signature verification failed")
}

// FailureCount reports how many failures sourceAddr accumulated within the
// sliding window.
func (g *Guard) FailureCount(sourceAddr string) int {
	return len(g.recentFailures(sourceAddr, g.now()))
}

// ShouldWarn is true once sourceAddr reached the failure threshold within
// the window.
func (g *Guard) ShouldWarn(sourceAddr string) bool {
	return g.FailureCount(sourceAddr) >= g.cfg.FailureThreshold
}

func (g *Guard) recentFailures(sourceAddr string, now time.Time) []time.Time {
	all, ok := g.failures.Get(sourceAddr)
	if !ok {
		return nil
	}

	cutoff := now.Add(-g.cfg.FailureWindow)
	recent := make([]time.Time, 0, len(all))
	for _, ts := range all {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	return recent
}
