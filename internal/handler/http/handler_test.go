package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/beatwave/dashsync/internal/guard"
	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/internal/queue"
	"github.com/beatwave/dashsync/internal/registry"
	"github.com/beatwave/dashsync/internal/service"
)

const testWebhookSecret = "whsec_test_secret"

type testEnv struct {
	handler   *Handler
	server    *httptest.Server
	queue     *queue.MessageQueue
	guard     *guard.Guard
	registry  *registry.Registry
	dashboard *service.DashboardService
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	log := logger.Nop()
	dash := service.NewDashboardService(log)
	q := queue.New(queue.Config{}, log)
	g := guard.New(guard.Config{}, log)
	reg := registry.New(registry.Config{}, dash, q, log)

	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = testWebhookSecret
	}

	h := NewHandler(cfg, reg, q, g, dash, log)
	srv := httptest.NewServer(h.Init())
	t.Cleanup(func() {
		srv.Close()
		reg.Shutdown()
	})

	return &testEnv{
		handler:   h,
		server:    srv,
		queue:     q,
		guard:     g,
		registry:  reg,
		dashboard: dash,
	}
}

// signBody produces the hex HMAC-SHA256 signature a legitimate provider
// would attach.
func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// makeToken issues a signed JWT carrying the given subject. The server only
// reads the subject claim, so any signing key works here.
func makeToken(t *testing.T, sub string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}
