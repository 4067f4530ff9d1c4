package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wagmicrew/TFX-APP-sub001/internal/authz"
	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/service/impl"
)

// Every /v1 response carries the success envelope the mobile client
// expects: {"success":true,"data":{...}} or {"success":false,"error":{...}}.
type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: &apiError{Code: code, Message: msg}})
}

// writeServiceErr maps service failures onto statuses. Unrecognized errors
// stay opaque 500s so internals don't leak to clients.
func writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrOperationNotFound),
		errors.Is(err, domain.ErrRecordNotFound):
		writeErr(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrSessionInactive):
		writeErr(w, http.StatusConflict, "session_inactive", err.Error())
	case errors.Is(err, authz.ErrInvalidToken), errors.Is(err, domain.ErrUnauthorized):
		writeErr(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeErr(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrInvalidPlatform),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, impl.ErrEmptyContent),
		errors.Is(err, impl.ErrEmptyTargetID),
		errors.Is(err, impl.ErrEmptyToken),
		errors.Is(err, impl.ErrEmptyDeviceID),
		errors.Is(err, impl.ErrNoOperations),
		errors.Is(err, impl.ErrEmptyKind),
		errors.Is(err, impl.ErrBadUserID),
		errors.Is(err, impl.ErrBadSessionID):
		writeErr(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
