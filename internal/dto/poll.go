package dto

import (
	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"

	"github.com/google/uuid"
)

// PollData is the payload of a successful poll. HasKick is derived from the
// returned batch, so it can never be true without a kick entry present.
type PollData struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unreadCount"`
	HasKick       bool                  `json:"hasKick"`
}

type MarkReadRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type MarkReadData struct {
	MarkedAsRead int64 `json:"markedAsRead"`
}
