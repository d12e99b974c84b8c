package http

import (
	"errors"
	"net/http"

	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/internal/registry"
	"github.com/beatwave/dashsync/internal/utils"
)

// serveWS upgrades the request to a websocket and hands the socket to the
// connection registry.
//
// Identity is optional on the push channel: a bearer token (header or
// "token" query parameter, since browsers cannot set websocket headers)
// with a readable subject binds the connection to that user for targeted
// delivery; anything else yields an anonymous connection that still
// receives broadcasts.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID := h.wsUserID(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		log.Err(err).Msg("websocket upgrade failed")
		return
	}

	if _, err := h.registry.Accept(ws, userID); err != nil {
		if errors.Is(err, registry.ErrShutdown) {
			log.Warn().Msg("connection refused: registry shutting down")
		} else {
			log.Err(err).Msg("connection refused")
		}
		_ = ws.Close()
		return
	}

	log.Info().Str("user_id", userID).Msg("push connection accepted")
}

func (h *Handler) wsUserID(r *http.Request) string {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		if header := r.Header.Get("Authorization"); header != "" {
			if parsed, err := utils.ParseBearerToken(header); err == nil {
				tokenString = parsed
			}
		}
	}
	if tokenString == "" {
		return ""
	}

	userID, err := utils.ParseUserIDFromJWT(tokenString)
	if err != nil {
		return ""
	}
	return userID
}
