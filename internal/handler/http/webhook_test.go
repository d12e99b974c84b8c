package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatwave/dashsync/internal/service"
	"github.com/beatwave/dashsync/models"
)

func postWebhook(t *testing.T, env *testEnv, body []byte, signature string) (*http.Response, webhookResponse) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/webhooks/payment", bytes.NewReader(body))
	require.NoError(t, err)
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}

	resp, err := env.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var parsed webhookResponse
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return resp, parsed
}

func webhookBody(t *testing.T, eventID, eventType string, ts int64) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"event_id":   eventID,
		"event_type": eventType,
		"timestamp":  ts,
		"data":       map[string]any{"order_id": "order-1", "amount": 1299},
	})
	require.NoError(t, err)
	return body
}

func TestPaymentWebhook_ValidDelivery(t *testing.T) {
	env := newTestEnv(t, Config{})

	body := webhookBody(t, "evt-1", "payment.completed", time.Now().UnixMilli())
	resp, parsed := postWebhook(t, env, body, signBody(testWebhookSecret, body))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, parsed.Success)
	assert.False(t, parsed.Duplicate)

	// the accepted event fans out to the pull queue
	assert.Equal(t, 1, env.queue.Len(models.GlobalRecipient))
}

func TestPaymentWebhook_PayloadReachesDashboard(t *testing.T) {
	env := newTestEnv(t, Config{})

	body, err := json.Marshal(map[string]any{
		"event_id":   "evt-quota",
		"event_type": "quota.granted",
		"timestamp":  time.Now().UnixMilli(),
		"data":       map[string]any{"user_id": "user-7", "amount": 25},
	})
	require.NoError(t, err)

	resp, parsed := postWebhook(t, env, body, signBody(testWebhookSecret, body))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, parsed.Success)

	snap, err := env.dashboard.GetSnapshot(context.Background(), "user-7")
	require.NoError(t, err)
	assert.Equal(t, 25, snap.(service.Snapshot).DownloadQuota)
}

func TestPaymentWebhook_SecondsPrecisionTimestamp(t *testing.T) {
	env := newTestEnv(t, Config{})

	body := webhookBody(t, "evt-sec", "payment.completed", time.Now().Unix())
	resp, parsed := postWebhook(t, env, body, signBody(testWebhookSecret, body))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, parsed.Success)
}

func TestPaymentWebhook_InvalidSignature(t *testing.T) {
	env := newTestEnv(t, Config{})

	body := webhookBody(t, "evt-2", "payment.completed", time.Now().UnixMilli())
	resp, _ := postWebhook(t, env, body, "deadbeef")

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	// nothing reached the queue, and the failure was tracked
	assert.Zero(t, env.queue.Len(models.GlobalRecipient))
	assert.Equal(t, 1, env.guard.FailureCount("127.0.0.1"))
}

func TestPaymentWebhook_MissingSignature(t *testing.T) {
	env := newTestEnv(t, Config{})

	body := webhookBody(t, "evt-3", "payment.completed", time.Now().UnixMilli())
	resp, _ := postWebhook(t, env, body, "")

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPaymentWebhook_SignaturePrefixTolerated(t *testing.T) {
	env := newTestEnv(t, Config{})

	body := webhookBody(t, "evt-4", "payment.completed", time.Now().UnixMilli())
	resp, parsed := postWebhook(t, env, body, "sha256="+signBody(testWebhookSecret, body))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, parsed.Success)
}

func TestPaymentWebhook_StaleTimestampRejected(t *testing.T) {
	env := newTestEnv(t, Config{})

	body := webhookBody(t, "evt-5", "payment.completed", time.Now().Add(-10*time.Minute).UnixMilli())
	resp, parsed := postWebhook(t, env, body, signBody(testWebhookSecret, body))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeReplayDetected, parsed.Code)
	assert.Zero(t, env.queue.Len(models.GlobalRecipient))
}

func TestPaymentWebhook_FutureTimestampRejected(t *testing.T) {
	env := newTestEnv(t, Config{})

	body := webhookBody(t, "evt-6", "payment.completed", time.Now().Add(5*time.Minute).UnixMilli())
	resp, parsed := postWebhook(t, env, body, signBody(testWebhookSecret, body))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeFutureTimestamp, parsed.Code)
}

func TestPaymentWebhook_DuplicateDelivery(t *testing.T) {
	env := newTestEnv(t, Config{})

	body := webhookBody(t, "evt-dup", "payment.completed", time.Now().UnixMilli())
	sig := signBody(testWebhookSecret, body)

	resp, parsed := postWebhook(t, env, body, sig)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, parsed.Success)
	require.False(t, parsed.Duplicate)

	resp, parsed = postWebhook(t, env, body, sig)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, parsed.Success)
	assert.True(t, parsed.Duplicate)

	// the duplicate never reached the fan-out
	assert.Equal(t, 1, env.queue.Len(models.GlobalRecipient))
}

func TestPaymentWebhook_MalformedBody(t *testing.T) {
	env := newTestEnv(t, Config{})

	body := []byte("{not json")
	resp, _ := postWebhook(t, env, body, signBody(testWebhookSecret, body))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPaymentWebhook_MissingEventID(t *testing.T) {
	env := newTestEnv(t, Config{})

	body, err := json.Marshal(map[string]any{
		"event_type": "payment.completed",
		"timestamp":  time.Now().UnixMilli(),
	})
	require.NoError(t, err)

	resp, _ := postWebhook(t, env, body, signBody(testWebhookSecret, body))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPaymentWebhook_RateLimitPerSource(t *testing.T) {
	env := newTestEnv(t, Config{RateLimitPerSecond: 0.001, RateLimitBurst: 1})

	body := webhookBody(t, "evt-rl", "payment.completed", time.Now().UnixMilli())
	sig := signBody(testWebhookSecret, body)

	resp, _ := postWebhook(t, env, body, sig)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postWebhook(t, env, body, sig)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestPaymentWebhook_RepeatedFailuresAccumulate(t *testing.T) {
	env := newTestEnv(t, Config{})

	for i := 0; i < 6; i++ {
		body := webhookBody(t, fmt.Sprintf("evt-fail-%d", i), "payment.completed", time.Now().UnixMilli())
		resp, _ := postWebhook(t, env, body, "deadbeef")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	assert.Equal(t, 6, env.guard.FailureCount("127.0.0.1"))
	assert.True(t, env.guard.ShouldWarn("127.0.0.1"))
}
