// Package adapter implements the client side of the pull transport: the
// polling fetch and the consistency-check request against the sync server's
// HTTP surface.
package adapter

//go:generate mockgen -source=interfaces.go -destination=../mock/poll_client_mock.go -package=mock

import (
	"context"

	"github.com/beatwave/dashsync/models"
)

// PollClient is what the transport manager needs from the pull transport.
type PollClient interface {
	// Poll fetches every update buffered for the caller newer than since
	// (Unix milliseconds).
	Poll(ctx context.Context, since int64) (models.PollResponse, error)

	// CheckConsistency issues the dedicated consistency-check request to
	// the business-domain collaborator.
	CheckConsistency(ctx context.Context) (models.ConsistencyResponse, error)
}
