package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
	"github.com/wagmicrew/TFX-APP-sub001/internal/store"
)

func (h *Handler) handlePoll(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	q := store.PollQuery{UnreadOnly: true}
	qs := r.URL.Query()
	if v := qs.Get("unreadOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "bad_request", "unreadOnly must be a boolean")
			return
		}
		q.UnreadOnly = b
	}
	if v := qs.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, "bad_request", "limit must be a non-negative integer")
			return
		}
		q.Limit = n
	}
	if v := qs.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "bad_request", "since must be an RFC 3339 timestamp")
			return
		}
		q.Since = ts
	}

	data, err := h.Notifications.Poll(r.Context(), sess.UserID, sess.ID, q)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusOK, data)
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	var req dto.MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	data, err := h.Notifications.MarkRead(r.Context(), sess.UserID, sess.ID, req)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeData(w, http.StatusOK, data)
}
