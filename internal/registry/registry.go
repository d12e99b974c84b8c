// Package registry owns every live push-channel connection on the server
// side. It tracks liveness via heartbeats, dispatches inbound envelopes,
// and fans updates out to push clients directly and to pull clients through
// the message queue.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/internal/queue"
	"github.com/beatwave/dashsync/internal/service"
	"github.com/beatwave/dashsync/internal/utils"
	"github.com/beatwave/dashsync/models"
)

// Config tunes the connection registry. Zero fields fall back to the
// documented defaults.
type Config struct {
	// HeartbeatTimeout is the silence after which the liveness sweep
	// force-closes a connection. Default 60s.
	HeartbeatTimeout time.Duration
	// SweepInterval is the liveness sweep period. Default 30s.
	SweepInterval time.Duration
	// WriteTimeout bounds a single socket write. Default 10s.
	WriteTimeout time.Duration
	// SnapshotTimeout bounds the snapshot fetch answering force_sync.
	// Default 15s.
	SnapshotTimeout time.Duration
	// EnableBackgroundSweep turns the periodic liveness sweep on. Hosts
	// without long-lived timers (FaaS) must leave it off, otherwise the
	// un-cancelled timer keeps the invocation alive forever.
	EnableBackgroundSweep bool
}

func (c Config) withDefaults() Config {
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 60 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SnapshotTimeout <= 0 {
		c.SnapshotTimeout = 15 * time.Second
	}
	return c
}

// Registry is the server-side connection registry. One instance per
// process; constructed explicitly and passed by reference, never a hidden
// global.
type Registry struct {
	cfg       Config
	logger    *logger.Logger
	snapshots service.SnapshotProvider
	updates   *queue.MessageQueue
	ids       *utils.UUIDGenerator

	mu       sync.RWMutex
	conns    map[string]*Connection
	shutdown bool

	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup

	now func() time.Time
}

// New constructs a Registry. snapshots answers force_sync requests; updates
// receives a copy of every published update for pull-based clients. When
// cfg.EnableBackgroundSweep is set the liveness sweep starts immediately
// and runs until Shutdown.
func New(cfg Config, snapshots service.SnapshotProvider, updates *queue.MessageQueue, log *logger.Logger) *Registry {
	r := &Registry{
		cfg:       cfg.withDefaults(),
		logger:    log,
		snapshots: snapshots,
		updates:   updates,
		ids:       utils.NewUUIDGenerator(),
		conns:     make(map[string]*Connection),
		now:       time.Now,
	}

	if r.cfg.EnableBackgroundSweep {
		sweepCtx, cancel := context.WithCancel(context.Background())
		r.sweepCancel = cancel
		r.sweepWG.Add(1)
		go r.sweepLoop(sweepCtx)
	}

	return r
}

// Accept registers a freshly upgraded socket, sends the initial "connected"
// envelope carrying the assigned connection id, and starts the read and
// write pumps. userID may be empty for anonymous connections. Returns
// ErrShutdown after Shutdown.
func (r *Registry) Accept(ws *websocket.Conn, userID string) (*Connection, error) {
	conn := newConnection(r.ids.Generate(), userID, ws, r.now())

	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		conn.close(websocket.CloseGoingAway, "registry shut down")
		return nil, ErrShutdown
	}
	r.conns[conn.id] = conn
	r.mu.Unlock()

	go conn.writePump(r.cfg.WriteTimeout)

	conn.enqueue(r.newEnvelope(models.MsgConnected, models.ConnectedPayload{ConnectionID: conn.id}, ""))

	go r.readPump(conn)

	r.logger.Info().
		Str("connection_id", conn.id).
		Str("user_id", userID).
		Msg("push connection accepted")

	return conn, nil
}

// Send delivers an envelope to one connection. The failure is reported to
// the caller and never retried.
func (r *Registry) Send(connectionID string, env models.Envelope) error {
	r.mu.RLock()
	conn, ok := r.conns[connectionID]
	r.mu.RUnlock()

	if !ok {
		return ErrConnectionNotFound
	}
	if !conn.enqueue(env) {
		return ErrSendFailed
	}
	return nil
}

// SendToUser delivers an envelope to every connection bound to userID and
// reports how many deliveries succeeded.
func (r *Registry) SendToUser(userID string, env models.Envelope) int {
	sent := 0
	for _, conn := range r.snapshotConns() {
		if conn.userID == userID && conn.enqueue(env) {
			sent++
		}
	}
	return sent
}

// Broadcast delivers an envelope to every live connection except the one
// named by exceptID (pass "" to reach everyone) and reports the success
// count. A slow recipient does not delay the others.
func (r *Registry) Broadcast(env models.Envelope, exceptID string) int {
	sent := 0
	for _, conn := range r.snapshotConns() {
		if conn.id == exceptID {
			continue
		}
		if conn.enqueue(env) {
			sent++
		}
	}
	return sent
}

// PublishUpdate fans one update notification out to both transports: a
// "data_updated" envelope to every push connection and a broadcast copy
// into the message queue for pull clients.
func (r *Registry) PublishUpdate(updateType string, payload any) {
	now := r.now().UnixMilli()
	id := r.ids.Generate()

	r.Broadcast(models.Envelope{
		Type:      models.MsgDataUpdated,
		Payload:   payload,
		Timestamp: now,
		Source:    models.SourceServer,
		ID:        id,
	}, "")

	r.updates.Broadcast(models.QueuedItem{
		ID:        id,
		Type:      updateType,
		Payload:   payload,
		Timestamp: now,
	})
}

// Count reports the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Connection returns a live connection by id.
func (r *Registry) Connection(connectionID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connectionID]
	return conn, ok
}

// Shutdown stops the liveness sweep, closes every live connection with a
// going-away closure, clears the map, and refuses new connections. Safe to
// call repeatedly.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return
	}
	r.shutdown = true
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	clear(r.conns)
	r.mu.Unlock()

	if r.sweepCancel != nil {
		r.sweepCancel()
	}
	r.sweepWG.Wait()

	for _, conn := range conns {
		conn.close(websocket.CloseGoingAway, "server shutting down")
	}

	r.logger.Info().Int("closed", len(conns)).Msg("connection registry shut down")
}

// SweepStale force-closes every connection silent longer than the heartbeat
// timeout and reports how many were evicted. The background sweep calls it
// on a timer; serverless hosts call it explicitly per invocation instead.
func (r *Registry) SweepStale() int {
	cutoff := r.now().Add(-r.cfg.HeartbeatTimeout)

	evicted := 0
	for _, conn := range r.snapshotConns() {
		if conn.LastHeartbeat().Before(cutoff) {
			r.logger.Warn().
				Str("connection_id", conn.id).
				Time("last_heartbeat", conn.LastHeartbeat()).
				Msg("evicting stale connection")
			r.drop(conn, websocket.ClosePolicyViolation, "heartbeat timeout")
			evicted++
		}
	}
	return evicted
}

func (r *Registry) sweepLoop(ctx context.Context) {
	defer r.sweepWG.Done()

	t := time.NewTicker(r.cfg.SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.SweepStale()
		}
	}
}

func (r *Registry) snapshotConns() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}

func (r *Registry) drop(conn *Connection, code int, reason string) {
	r.mu.Lock()
	delete(r.conns, conn.id)
	r.mu.Unlock()

	conn.close(code, reason)
}

func (r *Registry) newEnvelope(msgType string, payload any, correlationID string) models.Envelope {
	id := correlationID
	if id == "" {
		id = r.ids.Generate()
	}
	return models.Envelope{
		Type:      msgType,
		Payload:   payload,
		Timestamp: r.now().UnixMilli(),
		Source:    models.SourceServer,
		ID:        id,
	}
}
