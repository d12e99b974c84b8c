package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)

	// websocket upgrade handles its own (optional) identity binding
	router.Get("/ws", h.serveWS)

	// webhook deliveries authenticate with an HMAC signature, not a token
	router.Post("/api/webhooks/payment", h.paymentWebhook)

	router.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Get("/api/sync/poll", h.poll)
		r.Get("/api/sync/consistency", h.consistency)
	})

	return router
}
