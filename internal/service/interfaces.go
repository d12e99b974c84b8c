// Package service defines the narrow boundary to the business domain: full
// state snapshots, consistency checks, and webhook event application. The
// domain's own persistence and payment SDKs live behind these interfaces
// and are not part of the synchronization core.
package service

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

import (
	"context"

	"github.com/beatwave/dashsync/models"
)

// SnapshotProvider supplies a full dashboard state snapshot for a user.
// The registry calls it to answer force_sync requests; an empty userID
// yields the anonymous (public) snapshot.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, userID string) (any, error)
}

// ConsistencyChecker answers the dedicated consistency-check request the
// client manager issues on demand.
type ConsistencyChecker interface {
	CheckConsistency(ctx context.Context, userID string) (models.ConsistencyResponse, error)
}

// EventApplier commits the effect of an accepted webhook event. It is
// invoked only after the integrity guard's gates have passed.
type EventApplier interface {
	ApplyEvent(ctx context.Context, event models.WebhookEvent) error
}

// DashboardProvider aggregates everything the transport core needs from the
// business domain.
type DashboardProvider interface {
	SnapshotProvider
	ConsistencyChecker
	EventApplier
}
