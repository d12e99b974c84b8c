package syncmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/beatwave/dashsync/models"
)

// pollLoop runs pull mode: a fetch every PollingInterval until the session
// ends. Individual fetch failures are recorded and reported, never fatal.
func (m *Manager) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollOnce(ctx)
		}
	}
}

func (m *Manager) pollOnce(ctx context.Context) {
	m.mu.Lock()
	since := m.since
	m.mu.Unlock()

	start := time.Now()
	resp, err := m.poll.Poll(ctx, since)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.mu.Lock()
		m.metrics.recordFailure()
		m.lastError = err.Error()
		m.mu.Unlock()
		m.logger.Warn().Err(err).Msg("poll failed")
		m.events.emit(EventSyncError, map[string]any{"error": err.Error()})
		return
	}

	now := time.Now()
	m.mu.Lock()
	m.metrics.recordSuccess(float64(time.Since(start).Milliseconds()))
	m.lastSync = &now
	m.lastError = ""
	if resp.Timestamp > m.since {
		m.since = resp.Timestamp
	}
	m.mu.Unlock()

	if len(resp.Data.Updates) > 0 {
		m.events.emit(EventDataUpdated, resp.Data.Updates)
	}
}

// ForceSyncAll requests a full refresh of dashboard data. In push mode it
// sends a correlated force_sync request and waits for the sync_data reply;
// in pull or offline mode it fetches the full backlog out of band. The
// fresh data is delivered through the data_updated event.
func (m *Manager) ForceSyncAll(ctx context.Context) error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return ErrDestroyed
	}
	mode := m.connType
	ch := m.channel
	m.inFlight++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if mode == models.ConnectionPush && ch != nil {
		return m.forceSyncPush(ctx, ch)
	}
	return m.forceSyncFetch(ctx)
}

func (m *Manager) forceSyncPush(ctx context.Context, ch PushChannel) error {
	env := m.newEnvelope(models.MsgForceSync, nil, "")
	waiter := m.registerPending(env.ID)
	defer m.dropPending(env.ID)

	start := time.Now()
	if err := ch.WriteEnvelope(env); err != nil {
		m.recordSyncFailure(err)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	select {
	case reply, ok := <-waiter:
		if !ok {
			m.recordSyncFailure(ErrConnectionFailed)
			return ErrConnectionFailed
		}
		now := time.Now()
		m.mu.Lock()
		m.metrics.recordSuccess(float64(time.Since(start).Milliseconds()))
		m.lastSync = &now
		m.lastError = ""
		m.mu.Unlock()
		m.events.emit(EventDataUpdated, reply.Payload)
		return nil
	case <-time.After(m.cfg.ForceSyncTimeout):
		m.recordSyncFailure(ErrTimeout)
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// forceSyncFetch pulls the entire backlog regardless of the since bound.
func (m *Manager) forceSyncFetch(ctx context.Context) error {
	start := time.Now()
	resp, err := m.poll.Poll(ctx, 0)
	if err != nil {
		m.recordSyncFailure(err)
		return err
	}

	now := time.Now()
	m.mu.Lock()
	m.metrics.recordSuccess(float64(time.Since(start).Milliseconds()))
	m.lastSync = &now
	m.lastError = ""
	if resp.Timestamp > m.since {
		m.since = resp.Timestamp
	}
	m.mu.Unlock()

	m.events.emit(EventDataUpdated, resp.Data.Updates)
	return nil
}

// ValidateDataConsistency asks the server to compare its authoritative
// state against recent deliveries. A mismatch is surfaced both in the
// returned response and as a data_inconsistency event.
func (m *Manager) ValidateDataConsistency(ctx context.Context) (models.ConsistencyResponse, error) {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return models.ConsistencyResponse{}, ErrDestroyed
	}
	m.mu.Unlock()

	start := time.Now()
	resp, err := m.poll.CheckConsistency(ctx)
	if err != nil {
		m.recordSyncFailure(err)
		return models.ConsistencyResponse{}, err
	}

	m.mu.Lock()
	m.metrics.recordSuccess(float64(time.Since(start).Milliseconds()))
	if !resp.Consistent {
		m.metrics.inconsistencies++
	}
	m.mu.Unlock()

	if !resp.Consistent {
		m.logger.Warn().
			Strs("inconsistencies", resp.Inconsistencies).
			Msg("data consistency check failed")
		m.events.emit(EventDataInconsistency, resp.Inconsistencies)
	}
	return resp, nil
}

func (m *Manager) recordSyncFailure(err error) {
	m.mu.Lock()
	m.metrics.recordFailure()
	m.lastError = err.Error()
	m.mu.Unlock()
}
