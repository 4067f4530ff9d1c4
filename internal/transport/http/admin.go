package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
)

func (h *Handler) handleAdminDispatch(w http.ResponseWriter, r *http.Request) {
	var req dto.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	result, err := h.Notifications.Publish(r.Context(), req)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *Handler) handleAdminRegisterSession(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	sess, err := h.Sessions.Register(r.Context(), req)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusCreated, sess)
}

func (h *Handler) handleAdminKick(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "sessionID must be a UUID")
		return
	}

	var req dto.KickRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
	}

	if err := h.Sessions.Kick(r.Context(), sessionID, req.Reason); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (h *Handler) handleAdminPushRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.Records.ListRecent(r.Context(), limit)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusOK, records)
}

func (h *Handler) handleAdminSyncStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "sessionID must be a UUID")
		return
	}

	data, err := h.Sync.Status(r.Context(), sessionID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusOK, data)
}
