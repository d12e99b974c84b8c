package registry

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"

	"github.com/beatwave/dashsync/models"
)

// readPump consumes inbound envelopes for one connection until the socket
// errors or the registry drops it. Envelopes are processed in arrival
// order; ordering across connections is not defined.
func (r *Registry) readPump(conn *Connection) {
	defer r.drop(conn, websocket.CloseNormalClosure, "")

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Debug().
					Str("connection_id", conn.id).
					Err(err).
					Msg("push connection read error")
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Type == "" {
			// Malformed envelope: log and drop, the connection stays open.
			r.logger.Warn().
				Str("connection_id", conn.id).
				Err(err).
				Msg("dropping malformed envelope")
			continue
		}

		r.dispatch(conn, env)
	}
}

func (r *Registry) dispatch(conn *Connection, env models.Envelope) {
	switch env.Type {
	case models.MsgHeartbeat:
		r.handleHeartbeat(conn, env)
	case models.MsgSubscribe:
		r.handleSubscribe(conn, env)
	case models.MsgUnsubscribe:
		r.handleUnsubscribe(conn, env)
	case models.MsgForceSync:
		r.handleForceSync(conn, env)
	case models.MsgDataUpdate:
		r.handleDataUpdate(conn, env)
	default:
		r.logger.Debug().
			Str("connection_id", conn.id).
			Str("type", env.Type).
			Msg("ignoring unhandled envelope type")
	}
}

// handleHeartbeat refreshes the connection's liveness stamp and acks,
// echoing the heartbeat's own timestamp so the client can measure the round
// trip.
func (r *Registry) handleHeartbeat(conn *Connection, env models.Envelope) {
	conn.touchHeartbeat(r.now())
	conn.enqueue(r.newEnvelope(models.MsgHeartbeatAck, models.HeartbeatAckPayload{EchoTimestamp: env.Timestamp}, env.ID))
}

func (r *Registry) handleSubscribe(conn *Connection, env models.Envelope) {
	var sp models.SubscriptionPayload
	if !decodePayload(env.Payload, &sp) {
		r.logger.Warn().Str("connection_id", conn.id).Msg("dropping subscribe with malformed payload")
		return
	}

	topics := conn.subscribe(sp.Topics)
	conn.enqueue(r.newEnvelope(models.MsgSubscriptionAck, models.SubscriptionPayload{Topics: topics}, env.ID))
}

func (r *Registry) handleUnsubscribe(conn *Connection, env models.Envelope) {
	var sp models.SubscriptionPayload
	if !decodePayload(env.Payload, &sp) {
		r.logger.Warn().Str("connection_id", conn.id).Msg("dropping unsubscribe with malformed payload")
		return
	}

	topics := conn.unsubscribe(sp.Topics)
	conn.enqueue(r.newEnvelope(models.MsgUnsubscriptionAck, models.SubscriptionPayload{Topics: topics}, env.ID))
}

// handleForceSync fetches a full snapshot from the domain collaborator
// asynchronously and replies with a "sync_data" envelope reusing the
// request's id, the only request/response correlation the push channel
// offers.
func (r *Registry) handleForceSync(conn *Connection, env models.Envelope) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SnapshotTimeout)
		defer cancel()

		snapshot, err := r.snapshots.GetSnapshot(ctx, conn.userID)
		if err != nil {
			r.logger.Error().
				Str("connection_id", conn.id).
				Err(err).
				Msg("snapshot fetch for force_sync failed")
			conn.enqueue(r.newEnvelope(models.MsgError, map[string]any{"message": "snapshot unavailable"}, env.ID))
			return
		}

		conn.enqueue(r.newEnvelope(models.MsgSyncData, snapshot, env.ID))
	}()
}

// handleDataUpdate relays an optimistic client-originated change: broadcast
// to all other connections as "data_updated", deposit a copy for pull
// clients, then acknowledge the originator echoing the request id.
func (r *Registry) handleDataUpdate(conn *Connection, env models.Envelope) {
	now := r.now().UnixMilli()

	r.Broadcast(models.Envelope{
		Type:      models.MsgDataUpdated,
		Payload:   env.Payload,
		Timestamp: now,
		Source:    models.SourceServer,
		ID:        r.ids.Generate(),
	}, conn.id)

	r.updates.Broadcast(models.QueuedItem{
		ID:        r.ids.Generate(),
		Type:      models.MsgDataUpdated,
		Payload:   env.Payload,
		Timestamp: now,
	})

	conn.enqueue(r.newEnvelope(models.MsgUpdateAck, nil, env.ID))
}

// decodePayload remarshals an envelope payload (a decoded JSON value) into
// the concrete payload struct for its type.
func decodePayload(payload any, target any) bool {
	if payload == nil {
		return false
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}
