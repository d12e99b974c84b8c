// Package syncmanager owns the client side of dashboard synchronization.
//
// The Manager runs a transport state machine (Offline, Connecting, Push,
// Pull) with one invariant: degradation is one-way. A lost push channel is
// retried with exponential backoff up to a configured attempt budget, then
// the manager falls back to periodic polling and stays there until the next
// StartSync. Steady-state transport errors never surface as return values;
// they are reported through the event bus and the metrics counters.
package syncmanager

import (
	"context"
	"sync"
	"time"

	"github.com/beatwave/dashsync/internal/adapter"
	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/internal/utils"
	"github.com/beatwave/dashsync/models"
)

// Config tunes transport behavior. Zero values fall back to defaults.
type Config struct {
	// PushURL is the websocket endpoint of the push channel.
	PushURL string
	// PollingInterval spaces the pull-mode fetches.
	PollingInterval time.Duration
	// MaxReconnectAttempts bounds push reconnects before pull fallback.
	MaxReconnectAttempts int
	// ReconnectBackoffBase is the first reconnect delay; each further
	// attempt doubles it.
	ReconnectBackoffBase time.Duration
	// ReconnectBackoffMax caps the reconnect delay.
	ReconnectBackoffMax time.Duration
	// HeartbeatInterval spaces client heartbeats on the push channel.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout is how long to wait for a heartbeat ack before the
	// channel is considered dead.
	HeartbeatTimeout time.Duration
	// ConnectionTimeout bounds one push-channel open.
	ConnectionTimeout time.Duration
	// ForceSyncTimeout bounds one correlated force-sync round trip.
	ForceSyncTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollingInterval <= 0 {
		c.PollingInterval = 30 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectBackoffBase <= 0 {
		c.ReconnectBackoffBase = time.Second
	}
	if c.ReconnectBackoffMax <= 0 {
		c.ReconnectBackoffMax = 30 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 10 * time.Second
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 10 * time.Second
	}
	if c.ForceSyncTimeout <= 0 {
		c.ForceSyncTimeout = 15 * time.Second
	}
	return c
}

// Manager keeps the client's dashboard state in sync with the server.
type Manager struct {
	cfg    Config
	dialer PushDialer
	poll   adapter.PollClient
	logger *logger.Logger
	ids    *utils.UUIDGenerator
	events *eventBus

	mu        sync.Mutex
	destroyed bool
	running   bool
	debug     bool
	// gen invalidates callbacks from superseded sessions and channels.
	gen      int
	attempts int

	connType models.ConnectionType
	// connected mirrors "a transport is actively delivering": true in
	// Push and Pull, false in Offline and Connecting.
	connected bool
	inFlight  int
	lastSync  *time.Time
	lastError string

	channel       PushChannel
	channelCancel context.CancelFunc
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	reconnect     *time.Timer

	// pending maps envelope IDs to waiters for correlated replies
	// (heartbeat acks, force-sync data).
	pending map[string]chan models.Envelope

	// since is the lower timestamp bound for pull-mode fetches.
	since int64

	metrics metricsState
	wg      sync.WaitGroup
}

// New builds a Manager. It does not open any transport; call StartSync.
func New(cfg Config, dialer PushDialer, poll adapter.PollClient, log *logger.Logger) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		dialer:   dialer,
		poll:     poll,
		logger:   log,
		ids:      utils.NewUUIDGenerator(),
		events:   newEventBus(),
		connType: models.ConnectionOffline,
		pending:  make(map[string]chan models.Envelope),
	}
}

// StartSync begins connecting. A running manager is restarted: the current
// transport is torn down first, and the push channel is attempted again
// even after an earlier pull fallback.
func (m *Manager) StartSync() error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return ErrDestroyed
	}
	m.mu.Unlock()

	m.StopSync()

	m.mu.Lock()
	m.running = true
	m.attempts = 0
	m.gen++
	gen := m.gen
	m.sessionCtx, m.sessionCancel = context.WithCancel(context.Background())
	m.mu.Unlock()

	m.logger.Debug().Str("url", m.cfg.PushURL).Msg("starting sync")
	go m.connect(gen)
	return nil
}

// StopSync tears the active transport down and returns to Offline. It is
// idempotent and safe to call concurrently with transport callbacks.
func (m *Manager) StopSync() {
	m.mu.Lock()
	if !m.running && m.connType == models.ConnectionOffline {
		m.mu.Unlock()
		return
	}
	wasActive := m.connType != models.ConnectionOffline
	m.running = false
	m.gen++
	cancel := m.sessionCancel
	m.sessionCancel = nil
	m.sessionCtx = nil
	timer := m.reconnect
	m.reconnect = nil
	ch := m.channel
	m.channel = nil
	m.channelCancel = nil
	m.connType = models.ConnectionOffline
	m.connected = false
	for id, waiter := range m.pending {
		close(waiter)
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if ch != nil {
		_ = ch.Close()
	}
	m.wg.Wait()

	if wasActive {
		m.events.emit(EventDisconnected, nil)
	}
	m.logger.Debug().Msg("sync stopped")
}

// Destroy stops the manager permanently and drops all listeners. Every
// subsequent operation returns ErrDestroyed.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.mu.Unlock()

	m.StopSync()
	m.events.clear()
}

// Subscribe registers a handler for one event kind and returns a token for
// Unsubscribe. Handlers run synchronously on the manager's goroutines.
func (m *Manager) Subscribe(kind EventKind, h Handler) Token {
	return m.events.subscribe(kind, h)
}

// Unsubscribe removes a previously registered handler.
func (m *Manager) Unsubscribe(tok Token) {
	m.events.unsubscribe(tok)
}

// EnableDebugMode toggles verbose envelope-level logging.
func (m *Manager) EnableDebugMode(on bool) {
	m.mu.Lock()
	m.debug = on
	m.mu.Unlock()
}

// Status returns a snapshot of the current transport state.
func (m *Manager) Status() models.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := models.SyncStatus{
		Connected:      m.connected,
		ConnectionType: m.connType,
		SyncInProgress: m.inFlight > 0,
		LastError:      m.lastError,
	}
	if m.lastSync != nil {
		t := *m.lastSync
		st.LastSyncAt = &t
	}
	return st
}

// Metrics returns a snapshot of the lifetime transport counters.
func (m *Manager) Metrics() models.SyncMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics.snapshot()
}

// connect performs one push-channel open attempt.
func (m *Manager) connect(gen int) {
	m.mu.Lock()
	if gen != m.gen || !m.running {
		m.mu.Unlock()
		return
	}
	ctx := m.sessionCtx
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectionTimeout)
	ch, err := m.dialer.Dial(dialCtx, m.cfg.PushURL)
	cancel()
	if err != nil {
		m.logger.Warn().Err(err).Msg("push channel open failed")
		m.handlePushLoss(gen, err)
		return
	}
	m.onPushOpen(gen, ch)
}

func (m *Manager) onPushOpen(gen int, ch PushChannel) {
	m.mu.Lock()
	if gen != m.gen || !m.running {
		m.mu.Unlock()
		_ = ch.Close()
		return
	}
	m.channel = ch
	chCtx, chCancel := context.WithCancel(m.sessionCtx)
	m.channelCancel = chCancel
	m.connType = models.ConnectionPush
	m.connected = true
	m.attempts = 0
	m.lastError = ""
	m.mu.Unlock()

	m.logger.Info().Msg("push channel established")
	m.events.emit(EventConnected, map[string]any{
		"connection_type": models.ConnectionPush,
	})

	m.wg.Add(2)
	go m.readLoop(gen, ch)
	go m.heartbeatLoop(chCtx, gen, ch)
}

// handlePushLoss runs after a failed open or a dropped channel. It either
// schedules the next reconnect attempt or falls back to pull mode.
func (m *Manager) handlePushLoss(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen || !m.running {
		m.mu.Unlock()
		return
	}
	m.metrics.errorCount++
	m.lastError = err.Error()
	m.connected = false

	if m.attempts < m.cfg.MaxReconnectAttempts {
		delay := m.backoffDelay(m.attempts)
		m.attempts++
		m.metrics.reconnectCount++
		attempt := m.attempts
		m.reconnect = time.AfterFunc(delay, func() { m.connect(gen) })
		m.mu.Unlock()

		m.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("push channel lost, reconnecting")
		m.events.emit(EventSyncError, map[string]any{"error": err.Error()})
		return
	}
	m.mu.Unlock()
	m.enterPull(gen, err)
}

func (m *Manager) backoffDelay(attempt int) time.Duration {
	if attempt > 30 {
		return m.cfg.ReconnectBackoffMax
	}
	d := m.cfg.ReconnectBackoffBase << attempt
	if d > m.cfg.ReconnectBackoffMax || d <= 0 {
		d = m.cfg.ReconnectBackoffMax
	}
	return d
}

// enterPull switches to polling. The manager never promotes itself back to
// push; only StartSync retries the push channel.
func (m *Manager) enterPull(gen int, cause error) {
	m.mu.Lock()
	if gen != m.gen || !m.running {
		m.mu.Unlock()
		return
	}
	ctx := m.sessionCtx
	m.connType = models.ConnectionPull
	m.connected = true
	m.mu.Unlock()

	m.logger.Warn().Err(cause).Msg("push channel exhausted, falling back to polling")
	m.events.emit(EventConnected, map[string]any{
		"connection_type": models.ConnectionPull,
	})

	m.wg.Add(1)
	go m.pollLoop(ctx)
}

// readLoop drains the push channel until it errors, which is the single
// signal that the channel is gone.
func (m *Manager) readLoop(gen int, ch PushChannel) {
	defer m.wg.Done()

	for {
		env, err := ch.ReadEnvelope()
		if err != nil {
			m.onChannelClosed(gen, err)
			return
		}
		m.handleEnvelope(env)
	}
}

func (m *Manager) onChannelClosed(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen || !m.running {
		m.mu.Unlock()
		return
	}
	// Invalidate the heartbeat goroutine and any stale callbacks before
	// starting the reconnect sequence.
	m.gen++
	next := m.gen
	cancel := m.channelCancel
	m.channelCancel = nil
	ch := m.channel
	m.channel = nil
	m.connected = false
	for id, waiter := range m.pending {
		close(waiter)
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ch != nil {
		_ = ch.Close()
	}
	m.handlePushLoss(next, err)
}

func (m *Manager) handleEnvelope(env models.Envelope) {
	m.mu.Lock()
	debug := m.debug
	m.mu.Unlock()
	if debug {
		m.logger.Debug().
			Str("type", env.Type).
			Str("id", env.ID).
			Msg("envelope received")
	}

	switch env.Type {
	case models.MsgHeartbeatAck, models.MsgSyncData:
		m.resolvePending(env)
	case models.MsgDataUpdated:
		m.noteSyncReceived()
		m.events.emit(EventDataUpdated, env.Payload)
	case models.MsgConnected, models.MsgSubscriptionAck,
		models.MsgUnsubscriptionAck, models.MsgUpdateAck:
		// informational only
	case models.MsgError:
		m.logger.Warn().Interface("payload", env.Payload).Msg("server error envelope")
		m.events.emit(EventSyncError, env.Payload)
	default:
		m.logger.Debug().Str("type", env.Type).Msg("unhandled envelope type")
	}
}

func (m *Manager) resolvePending(env models.Envelope) {
	m.mu.Lock()
	waiter, ok := m.pending[env.ID]
	if ok {
		delete(m.pending, env.ID)
	}
	m.mu.Unlock()
	if ok {
		waiter <- env
	}
}

// registerPending creates a reply waiter for the given envelope ID.
func (m *Manager) registerPending(id string) chan models.Envelope {
	waiter := make(chan models.Envelope, 1)
	m.mu.Lock()
	m.pending[id] = waiter
	m.mu.Unlock()
	return waiter
}

func (m *Manager) dropPending(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

// heartbeatLoop keeps the push channel verified. A missed ack counts as a
// connection error: the channel is closed, which unblocks readLoop and
// starts the reconnect sequence.
func (m *Manager) heartbeatLoop(ctx context.Context, gen int, ch PushChannel) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.sendHeartbeat(ctx, ch); err != nil {
				m.logger.Warn().Err(err).Msg("heartbeat failed, dropping push channel")
				_ = ch.Close()
				return
			}
		}
	}
}

func (m *Manager) sendHeartbeat(ctx context.Context, ch PushChannel) error {
	env := m.newEnvelope(models.MsgHeartbeat, nil, "")
	waiter := m.registerPending(env.ID)
	defer m.dropPending(env.ID)

	sent := time.Now()
	if err := ch.WriteEnvelope(env); err != nil {
		return err
	}

	select {
	case _, ok := <-waiter:
		if !ok {
			return ErrConnectionFailed
		}
		m.mu.Lock()
		m.metrics.latencySumMs += float64(time.Since(sent).Milliseconds())
		m.metrics.latencyCount++
		m.mu.Unlock()
		return nil
	case <-time.After(m.cfg.HeartbeatTimeout):
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) newEnvelope(msgType string, payload any, correlationID string) models.Envelope {
	id := correlationID
	if id == "" {
		id = m.ids.Generate()
	}
	return models.Envelope{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
		Source:    models.SourceClient,
		ID:        id,
	}
}

func (m *Manager) noteSyncReceived() {
	now := time.Now()
	m.mu.Lock()
	m.lastSync = &now
	m.mu.Unlock()
}
