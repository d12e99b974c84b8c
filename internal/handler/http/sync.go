package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/beatwave/dashsync/internal/logger"
	"github.com/beatwave/dashsync/internal/utils"
	"github.com/beatwave/dashsync/models"
)

// poll hands the caller its buffered updates: the user-addressed backlog
// plus the global broadcast queue, filtered by the optional `since` query
// parameter (Unix milliseconds, strictly greater-than).
func (h *Handler) poll(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid `since` parameter", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	updates := h.queue.DrainSince(userID, since)
	updates = append(updates, h.queue.DrainSince(models.GlobalRecipient, since)...)

	resp := models.PollResponse{
		Success: true,
		Data: models.PollData{
			Updates: updates,
			Length:  len(updates),
		},
		Timestamp: time.Now().UnixMilli(),
	}

	if _, err := utils.WriteJSON(w, resp, http.StatusOK); err != nil {
		log.Err(err).Msg("error writing poll response")
	}
}

// consistency compares the server's authoritative dashboard state for the
// caller against recent deliveries.
func (h *Handler) consistency(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	resp, err := h.dashboard.CheckConsistency(r.Context(), userID)
	if err != nil {
		log.Err(err).Msg("consistency check failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if _, err := utils.WriteJSON(w, resp, http.StatusOK); err != nil {
		log.Err(err).Msg("error writing consistency response")
	}
}
