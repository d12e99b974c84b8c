package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/models"
)

// DashboardService is an in-memory DashboardProvider used by the demo
// binaries and tests. It keeps per-user order, favorite, and quota counters
// and applies webhook events by bumping them. A production deployment
// replaces it with an implementation backed by the real catalog and order
// store.
type DashboardService struct {
	logger *logger.Logger

	mu    sync.RWMutex
	users map[string]*userState
}

type userState struct {
	Orders        []map[string]any
	Favorites     []string
	DownloadQuota int
	Subscription  string
	UpdatedAt     time.Time
}

// Snapshot is the full dashboard state returned for force_sync requests.
type Snapshot struct {
	UserID        string           `json:"user_id,omitempty"`
	Orders        []map[string]any `json:"orders"`
	Favorites     []string         `json:"favorites"`
	DownloadQuota int              `json:"download_quota"`
	Subscription  string           `json:"subscription,omitempty"`
	GeneratedAt   int64            `json:"generated_at"`
}

func NewDashboardService(log *logger.Logger) *DashboardService {
	return &DashboardService{
		logger: log,
		users:  make(map[string]*userState),
	}
}

// GetSnapshot implements SnapshotProvider.
func (s *DashboardService) GetSnapshot(ctx context.Context, userID string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.users[userID]
	if st == nil {
		return Snapshot{UserID: userID, Orders: []map[string]any{}, Favorites: []string{}, GeneratedAt: time.Now().UnixMilli()}, nil
	}

	return Snapshot{
		UserID:        userID,
		Orders:        append([]map[string]any(nil), st.Orders...),
		Favorites:     append([]string(nil), st.Favorites...),
		DownloadQuota: st.DownloadQuota,
		Subscription:  st.Subscription,
		GeneratedAt:   time.Now().UnixMilli(),
	}, nil
}

// CheckConsistency implements ConsistencyChecker. The in-memory state is
// authoritative here, so it always reports consistent; the contract exists
// for the real domain implementation.
func (s *DashboardService) CheckConsistency(ctx context.Context, userID string) (models.ConsistencyResponse, error) {
	if err := ctx.Err(); err != nil {
		return models.ConsistencyResponse{}, err
	}

	return models.ConsistencyResponse{Consistent: true, Inconsistencies: []string{}}, nil
}

// ApplyEvent implements EventApplier. Recognized event types mutate the
// affected user's counters; unknown types are accepted and logged so new
// provider events do not bounce.
func (s *DashboardService) ApplyEvent(ctx context.Context, event models.WebhookEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, _ := event.Payload.(map[string]any)
	userID, _ := payload["user_id"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.users[userID]
	if st == nil {
		st = &userState{DownloadQuota: 0, Orders: []map[string]any{}}
		s.users[userID] = st
	}

	switch event.EventType {
	case "payment.completed":
		st.Orders = append(st.Orders, map[string]any{
			"event_id": event.EventID,
			"paid_at":  event.Timestamp,
		})
	case "subscription.updated":
		if plan, ok := payload["plan"].(string); ok {
			st.Subscription = plan
		}
	case "quota.granted":
		if amount, ok := payload["amount"].(float64); ok {
			st.DownloadQuota += int(amount)
		}
	default:
		s.logger.Info().
			Str("event_type", event.EventType).
			Str("event_id", event.EventID).
			Msg("unrecognized webhook event type accepted without effect")
	}
	st.UpdatedAt = time.Now()

	return nil
}

// SetFavorites replaces a user's favorites list. Exercised by the demo
// server to simulate dashboard activity.
func (s *DashboardService) SetFavorites(userID string, favorites []string) error {
	if userID == "" {
		return fmt.Errorf("empty user id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.users[userID]
	if st == nil {
		st = &userState{}
		s.users[userID] = st
	}
	st.Favorites = append([]string(nil), favorites...)
	st.UpdatedAt = time.Now()
	return nil
}
