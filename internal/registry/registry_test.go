package registry

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/internal/queue"
	"github.com/beatwave/dashsync/internal/service"
	"github.com/beatwave/dashsync/models"
)

// testHarness runs a Registry behind a real websocket endpoint so tests
// exercise the same read/write pumps as production.
type testHarness struct {
	registry *Registry
	updates  *queue.MessageQueue
	server   *httptest.Server

	acceptErr chan error
}

func newHarness(t *testing.T, cfg Config) *testHarness {
	t.Helper()

	updates := queue.New(queue.Config{}, logger.Nop())
	snapshots := service.NewDashboardService(logger.Nop())
	reg := New(cfg, snapshots, updates, logger.Nop())

	h := &testHarness{
		registry:  reg,
		updates:   updates,
		acceptErr: make(chan error, 8),
	}

	upgrader := websocket.Upgrader{}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, err = reg.Accept(ws, r.URL.Query().Get("user"))
		h.acceptErr <- err
	}))

	t.Cleanup(func() {
		reg.Shutdown()
		h.server.Close()
	})

	return h
}

func (h *testHarness) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "?user=" + userID
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEnvelope(t *testing.T, ws *websocket.Conn) models.Envelope {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)

	var env models.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func writeEnvelope(t *testing.T, ws *websocket.Conn, env models.Envelope) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(env))
}

// readUntil skips envelopes until one of the wanted type arrives. Broadcast
// traffic can interleave with directed replies.
func readUntil(t *testing.T, ws *websocket.Conn, msgType string) models.Envelope {
	t.Helper()

	for i := 0; i < 16; i++ {
		env := readEnvelope(t, ws)
		if env.Type == msgType {
			return env
		}
	}
	t.Fatalf("no %s envelope received", msgType)
	return models.Envelope{}
}

func TestAccept_SendsConnectedEnvelope(t *testing.T) {
	h := newHarness(t, Config{})
	ws := h.dial(t, "user-1")

	env := readEnvelope(t, ws)
	assert.Equal(t, models.MsgConnected, env.Type)
	assert.Equal(t, models.SourceServer, env.Source)
	assert.NotEmpty(t, env.ID)

	var cp models.ConnectedPayload
	require.True(t, decodePayload(env.Payload, &cp))
	assert.NotEmpty(t, cp.ConnectionID)

	require.Eventually(t, func() bool { return h.registry.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestDispatch_HeartbeatAckEchoesTimestamp(t *testing.T) {
	h := newHarness(t, Config{})
	ws := h.dial(t, "user-1")
	readEnvelope(t, ws) // connected

	sent := models.Envelope{
		Type:      models.MsgHeartbeat,
		Timestamp: 1234567890123,
		Source:    models.SourceClient,
		ID:        "hb-1",
	}
	writeEnvelope(t, ws, sent)

	ack := readUntil(t, ws, models.MsgHeartbeatAck)
	assert.Equal(t, "hb-1", ack.ID, "ack correlates with the heartbeat id")

	var hp models.HeartbeatAckPayload
	require.True(t, decodePayload(ack.Payload, &hp))
	assert.Equal(t, int64(1234567890123), hp.EchoTimestamp)
}

func TestDispatch_SubscribeUnsubscribe(t *testing.T) {
	h := newHarness(t, Config{})
	ws := h.dial(t, "user-1")
	readEnvelope(t, ws) // connected

	writeEnvelope(t, ws, models.Envelope{
		Type:    models.MsgSubscribe,
		Payload: models.SubscriptionPayload{Topics: []string{"orders", "favorites"}},
		Source:  models.SourceClient,
		ID:      "sub-1",
	})

	ack := readUntil(t, ws, models.MsgSubscriptionAck)
	assert.Equal(t, "sub-1", ack.ID)

	var sp models.SubscriptionPayload
	require.True(t, decodePayload(ack.Payload, &sp))
	assert.ElementsMatch(t, []string{"orders", "favorites"}, sp.Topics)

	writeEnvelope(t, ws, models.Envelope{
		Type:    models.MsgUnsubscribe,
		Payload: models.SubscriptionPayload{Topics: []string{"orders"}},
		Source:  models.SourceClient,
		ID:      "unsub-1",
	})

	ack = readUntil(t, ws, models.MsgUnsubscriptionAck)
	assert.Equal(t, "unsub-1", ack.ID)
	require.True(t, decodePayload(ack.Payload, &sp))
	assert.Equal(t, []string{"favorites"}, sp.Topics)
}

func TestDispatch_ForceSyncRepliesWithSameID(t *testing.T) {
	h := newHarness(t, Config{})
	ws := h.dial(t, "user-1")
	readEnvelope(t, ws) // connected

	writeEnvelope(t, ws, models.Envelope{
		Type:   models.MsgForceSync,
		Source: models.SourceClient,
		ID:     "fs-42",
	})

	reply := readUntil(t, ws, models.MsgSyncData)
	assert.Equal(t, "fs-42", reply.ID, "sync_data must reuse the request envelope id")
	assert.Equal(t, models.SourceServer, reply.Source)
	assert.NotNil(t, reply.Payload)
}

func TestDispatch_DataUpdateBroadcastsAndAcks(t *testing.T) {
	h := newHarness(t, Config{})
	originator := h.dial(t, "user-1")
	other := h.dial(t, "user-2")
	readEnvelope(t, originator) // connected
	readEnvelope(t, other)      // connected

	require.Eventually(t, func() bool { return h.registry.Count() == 2 }, time.Second, 10*time.Millisecond)

	writeEnvelope(t, originator, models.Envelope{
		Type:    models.MsgDataUpdate,
		Payload: map[string]any{"favorite": "beat-7"},
		Source:  models.SourceClient,
		ID:      "upd-1",
	})

	// The other connection sees the relayed change, not the originator.
	relayed := readUntil(t, other, models.MsgDataUpdated)
	assert.NotEqual(t, "upd-1", relayed.ID, "broadcast gets its own envelope id")

	ack := readUntil(t, originator, models.MsgUpdateAck)
	assert.Equal(t, "upd-1", ack.ID)

	// Pull clients get a queued copy via the global queue.
	require.Eventually(t, func() bool {
		return len(h.updates.DrainSince(models.GlobalRecipient, 0)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDispatch_MalformedEnvelopeKeepsConnectionOpen(t *testing.T) {
	h := newHarness(t, Config{})
	ws := h.dial(t, "user-1")
	readEnvelope(t, ws) // connected

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))

	// The connection still answers heartbeats afterwards.
	writeEnvelope(t, ws, models.Envelope{Type: models.MsgHeartbeat, Source: models.SourceClient, ID: "hb-after"})
	ack := readUntil(t, ws, models.MsgHeartbeatAck)
	assert.Equal(t, "hb-after", ack.ID)
}

func TestSend_UnknownConnection(t *testing.T) {
	h := newHarness(t, Config{})

	err := h.registry.Send("no-such-id", models.Envelope{Type: models.MsgError})
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestSendToUser_TargetsOnlyThatUser(t *testing.T) {
	h := newHarness(t, Config{})
	wsA := h.dial(t, "user-a")
	wsB := h.dial(t, "user-b")
	readEnvelope(t, wsA)
	readEnvelope(t, wsB)

	require.Eventually(t, func() bool { return h.registry.Count() == 2 }, time.Second, 10*time.Millisecond)

	sent := h.registry.SendToUser("user-a", models.Envelope{Type: models.MsgDataUpdated, ID: "direct-1"})
	assert.Equal(t, 1, sent)

	env := readUntil(t, wsA, models.MsgDataUpdated)
	assert.Equal(t, "direct-1", env.ID)

	// user-b must not receive it.
	require.NoError(t, wsB.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := wsB.ReadMessage()
	assert.Error(t, err, "expected read timeout for the untargeted user")
}

func TestPublishUpdate_ReachesPushAndPull(t *testing.T) {
	h := newHarness(t, Config{})
	ws := h.dial(t, "user-1")
	readEnvelope(t, ws)

	require.Eventually(t, func() bool { return h.registry.Count() == 1 }, time.Second, 10*time.Millisecond)

	h.registry.PublishUpdate("order_completed", map[string]any{"order_id": "ord-1"})

	env := readUntil(t, ws, models.MsgDataUpdated)
	assert.NotEmpty(t, env.ID)

	queued := h.updates.DrainSince(models.GlobalRecipient, 0)
	require.Len(t, queued, 1)
	assert.Equal(t, "order_completed", queued[0].Type)
	assert.Equal(t, env.ID, queued[0].ID, "push and pull copies share one id for client-side dedup")
}

func TestSweepStale_EvictsSilentConnections(t *testing.T) {
	h := newHarness(t, Config{HeartbeatTimeout: time.Minute})
	ws := h.dial(t, "user-1")
	readEnvelope(t, ws)

	require.Eventually(t, func() bool { return h.registry.Count() == 1 }, time.Second, 10*time.Millisecond)

	// Nothing is stale yet.
	assert.Equal(t, 0, h.registry.SweepStale())

	// Jump the registry clock past the heartbeat timeout.
	h.registry.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	assert.Equal(t, 1, h.registry.SweepStale())
	assert.Equal(t, 0, h.registry.Count())
}

func TestHeartbeatRefreshesLiveness(t *testing.T) {
	h := newHarness(t, Config{HeartbeatTimeout: time.Minute})
	ws := h.dial(t, "user-1")
	readEnvelope(t, ws)

	require.Eventually(t, func() bool { return h.registry.Count() == 1 }, time.Second, 10*time.Millisecond)

	// Pretend 2 minutes pass, but a heartbeat arrives "now" per the
	// shifted clock; the connection must survive the sweep.
	shifted := time.Now().Add(2 * time.Minute)
	h.registry.now = func() time.Time { return shifted }

	writeEnvelope(t, ws, models.Envelope{Type: models.MsgHeartbeat, Source: models.SourceClient, ID: "hb"})
	readUntil(t, ws, models.MsgHeartbeatAck)

	assert.Equal(t, 0, h.registry.SweepStale())
	assert.Equal(t, 1, h.registry.Count())
}

func TestShutdown_ClosesConnectionsAndRefusesNew(t *testing.T) {
	h := newHarness(t, Config{})
	ws := h.dial(t, "user-1")
	readEnvelope(t, ws)
	require.NoError(t, <-h.acceptErr)

	require.Eventually(t, func() bool { return h.registry.Count() == 1 }, time.Second, 10*time.Millisecond)

	h.registry.Shutdown()
	h.registry.Shutdown() // idempotent

	assert.Equal(t, 0, h.registry.Count())

	// The client observes the socket closing.
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	// New connections are refused at Accept.
	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	ws2, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		defer ws2.Close()
		require.ErrorIs(t, <-h.acceptErr, ErrShutdown)
	}
}

func TestBackgroundSweep_RunsOnInterval(t *testing.T) {
	updates := queue.New(queue.Config{}, logger.Nop())
	reg := New(Config{
		HeartbeatTimeout:      10 * time.Millisecond,
		SweepInterval:         10 * time.Millisecond,
		EnableBackgroundSweep: true,
	}, service.NewDashboardService(logger.Nop()), updates, logger.Nop())
	defer reg.Shutdown()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, _ = reg.Accept(ws, "")
	}))
	defer srv.Close()

	ws, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer ws.Close()

	// Without heartbeats the sweeper evicts the connection on its own.
	require.Eventually(t, func() bool { return reg.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAcceptError_IsShutdownSentinel(t *testing.T) {
	assert.True(t, errors.Is(ErrShutdown, ErrShutdown))
	assert.NotErrorIs(t, ErrSendFailed, ErrShutdown)
}
