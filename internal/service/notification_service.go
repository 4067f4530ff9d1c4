package service

import (
	"context"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
	"github.com/wagmicrew/TFX-APP-sub001/internal/store"
)

// NotificationService serves the pollable feed and publishes new
// notifications down both delivery paths: the feed (poll) and the push
// gateway.
type NotificationService interface {
	// Poll returns the session's feed window plus the unread total and the
	// kick flag derived from the returned batch.
	Poll(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, q store.PollQuery) (dto.PollData, error)

	// MarkRead stamps the given feed rows read for the calling session and
	// reports how many actually changed.
	MarkRead(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, req dto.MarkReadRequest) (dto.MarkReadData, error)

	// Publish writes feed rows for the targeted users and pushes the same
	// content through the dispatch engine. Device targets are push-only.
	Publish(ctx context.Context, req dto.DispatchRequest) (dto.DispatchResult, error)
}
