package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/internal/utils"
	"github.com/beatwave/dashsync/models"
)

const (
	signatureHeader = "X-Webhook-Signature"
	maxWebhookBody  = 1 << 20
)

// webhookRequest is the JSON body of a payment-provider delivery.
// Timestamp may be seconds or milliseconds; it is normalized before
// validation.
type webhookRequest struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type webhookResponse struct {
	Success   bool   `json:"success"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// paymentWebhook ingests one payment-provider delivery. The gates run in
// order: per-source rate limit, HMAC signature, timestamp freshness,
// idempotency. Only a delivery that passes all four mutates dashboard
// state and fans out to connected clients.
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)
	sourceAddr := sourceAddress(r)

	if !h.allowSource(sourceAddr) {
		log.Warn().Str("source", sourceAddr).Msg("webhook rate limit exceeded")
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "error reading request body", http.StatusBadRequest)
		return
	}

	if !h.verifySignature(body, r.Header.Get(signatureHeader)) {
		h.guard.TrackFailure(sourceAddr)
		if h.guard.ShouldWarn(sourceAddr) {
			log.Warn().
				Str("source", sourceAddr).
				Int("failures", h.guard.FailureCount(sourceAddr)).
				Msg("repeated webhook signature failures")
		} else {
			log.Err(ErrInvalidSignature).Str("source", sourceAddr).Send()
		}
		http.Error(w, ErrInvalidSignature.Error(), http.StatusUnauthorized)
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed webhook body", http.StatusBadRequest)
		return
	}
	if req.EventID == "" || req.EventType == "" {
		http.Error(w, "missing event_id or event_type", http.StatusBadRequest)
		return
	}

	ts := normalizeTimestamp(req.Timestamp)

	if validation := h.guard.ValidateTimestamp(time.UnixMilli(ts)); !validation.Valid {
		log.Warn().
			Str("event_id", req.EventID).
			Str("code", validation.Code).
			Msg("webhook timestamp rejected")
		_, _ = utils.WriteJSON(w, webhookResponse{
			Code:   validation.Code,
			Reason: validation.Reason,
		}, http.StatusBadRequest)
		return
	}

	if result := h.guard.CheckIdempotency(req.EventID); result.IsDuplicate {
		log.Info().Str("event_id", req.EventID).Msg("duplicate webhook delivery skipped")
		_, _ = utils.WriteJSON(w, webhookResponse{
			Success:   true,
			Duplicate: true,
		}, http.StatusOK)
		return
	}

	var payload map[string]any
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &payload); err != nil {
			http.Error(w, "malformed event data", http.StatusBadRequest)
			return
		}
	}

	event := models.WebhookEvent{
		EventID:   req.EventID,
		EventType: req.EventType,
		Timestamp: ts,
		Payload:   payload,
	}
	if err := h.dashboard.ApplyEvent(r.Context(), event); err != nil {
		log.Err(err).Str("event_id", req.EventID).Msg("error applying webhook event")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.guard.RecordProcessed(req.EventID, req.EventType)
	h.registry.PublishUpdate(req.EventType, req.Data)

	if _, err := utils.WriteJSON(w, webhookResponse{Success: true}, http.StatusOK); err != nil {
		log.Err(err).Msg("error writing webhook response")
	}
}

// allowSource applies the per-source token bucket.
func (h *Handler) allowSource(sourceAddr string) bool {
	limiter, ok := h.limiters.Get(sourceAddr)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(h.cfg.RateLimitPerSecond), h.cfg.RateLimitBurst)
		h.limiters.Set(sourceAddr, limiter)
	}
	return limiter.Allow()
}

// verifySignature checks the hex HMAC-SHA256 of the raw body. A "sha256="
// prefix on the header value is tolerated.
func (h *Handler) verifySignature(body []byte, signature string) bool {
	if h.cfg.WebhookSecret == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(h.cfg.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// normalizeTimestamp converts second-precision provider timestamps to
// milliseconds. Values at or above 1e12 are already milliseconds.
func normalizeTimestamp(ts int64) int64 {
	if ts > 0 && ts < 1_000_000_000_000 {
		return ts * 1000
	}
	return ts
}

func sourceAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
