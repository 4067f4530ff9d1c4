package http

import (
	"encoding/json"
	"net/http"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
)

func (h *Handler) handlePushToken(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	var req dto.PushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	if err := h.Sessions.AttachPushToken(r.Context(), sess.ID, req.Token, domain.Platform(req.Platform)); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	if err := h.Sessions.Logout(r.Context(), sess.ID); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}
