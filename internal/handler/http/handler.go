package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/beatwave/dashsync/internal/cache"
	"github.com/beatwave/dashsync/internal/guard"
	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/internal/queue"
	"github.com/beatwave/dashsync/internal/registry"
	"github.com/beatwave/dashsync/internal/service"
)

// limiterCacheSize bounds the number of webhook sources tracked for rate
// limiting; idle sources expire with limiterTTL.
const (
	limiterCacheSize = 10000
	limiterTTL       = 10 * time.Minute
)

// Config tunes the transport-level protections of the handler.
type Config struct {
	// WebhookSecret is the shared HMAC-SHA256 key inbound webhook
	// signatures are verified against.
	WebhookSecret string
	// RateLimitPerSecond caps webhook deliveries per source address.
	// Default 5.
	RateLimitPerSecond float64
	// RateLimitBurst is the token-bucket burst per source. Default 10.
	RateLimitBurst int
}

func (c Config) withDefaults() Config {
	if c.RateLimitPerSecond <= 0 {
		c.RateLimitPerSecond = 5
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 10
	}
	return c
}

// Handler wires the HTTP surface to the registry, queue, guard, and the
// dashboard service.
type Handler struct {
	cfg       Config
	registry  *registry.Registry
	queue     *queue.MessageQueue
	guard     *guard.Guard
	dashboard service.DashboardProvider

	upgrader websocket.Upgrader
	limiters *cache.Cache[*rate.Limiter]

	logger *logger.Logger
}

func NewHandler(
	cfg Config,
	reg *registry.Registry,
	q *queue.MessageQueue,
	g *guard.Guard,
	dashboard service.DashboardProvider,
	log *logger.Logger,
) *Handler {
	log.Info().Msg("http handler created")
	return &Handler{
		cfg:       cfg.withDefaults(),
		registry:  reg,
		queue:     q,
		guard:     g,
		dashboard: dashboard,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		limiters: cache.New[*rate.Limiter](limiterCacheSize, limiterTTL),
		logger:   log,
	}
}
