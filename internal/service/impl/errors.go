package impl

import "errors"

var (
	ErrEmptyContent     = errors.New("title and body are required")
	ErrEmptyTargetID    = errors.New("target id is required for this target type")
	ErrEmptyToken       = errors.New("push token is required")
	ErrEmptyDeviceID    = errors.New("device id is required")
	ErrNoOperations     = errors.New("no operations submitted")
	ErrEmptyKind        = errors.New("operation kind is required")
	ErrBadUserID        = errors.New("invalid user id")
	ErrBadSessionID     = errors.New("invalid session id")
	ErrDuplicateApplier = errors.New("duplicate applier kind")
)
