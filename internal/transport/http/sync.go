package http

import (
	"encoding/json"
	"net/http"

	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
)

func (h *Handler) handleSyncQueue(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	var req dto.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	data, err := h.Sync.Enqueue(r.Context(), sess.ID, sess.UserID, req.Operations)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusAccepted, data)
}

func (h *Handler) handleSyncProcess(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	result, err := h.Sync.ProcessQueue(r.Context(), sess.ID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *Handler) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	data, err := h.Sync.Status(r.Context(), sess.ID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusOK, data)
}
