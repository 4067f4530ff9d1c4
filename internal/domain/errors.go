package domain

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionInactive    = errors.New("session inactive")
	ErrInvalidPlatform    = errors.New("invalid platform")
	ErrInvalidTarget      = errors.New("invalid dispatch target")
	ErrNoTargets          = errors.New("no active push targets")
	ErrUnknownOperation   = errors.New("unknown sync operation kind")
	ErrOperationNotFound  = errors.New("sync operation not found")
	ErrInvalidPayload     = errors.New("invalid operation payload")
	ErrRecordNotFound     = errors.New("push record not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrGatewayUnavailable = errors.New("push gateway unavailable")
)
