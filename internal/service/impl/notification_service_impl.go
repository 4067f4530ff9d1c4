package impl

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
	"github.com/wagmicrew/TFX-APP-sub001/internal/observability/metrics"
	"github.com/wagmicrew/TFX-APP-sub001/internal/service"
	"github.com/wagmicrew/TFX-APP-sub001/internal/store"

	"github.com/google/uuid"
)

var _ service.NotificationService = (*NotificationServiceImpl)(nil)

const (
	defaultPollLimit = 20
	maxPollLimit     = 100
)

type NotificationServiceImpl struct {
	Store    *store.Store
	Dispatch service.DispatchService
	Log      *slog.Logger

	now func() time.Time
}

func NewNotificationServiceImpl(st *store.Store, dispatch service.DispatchService, log *slog.Logger) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		Store:    st,
		Dispatch: dispatch,
		Log:      log,
		now:      time.Now,
	}
}

func (n *NotificationServiceImpl) Poll(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, q store.PollQuery) (dto.PollData, error) {
	if q.Limit <= 0 {
		q.Limit = defaultPollLimit
	}
	if q.Limit > maxPollLimit {
		q.Limit = maxPollLimit
	}

	list, err := n.Store.Notifications().ListForSession(ctx, userID, sessionID, q)
	if err != nil {
		return dto.PollData{}, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := n.Store.Notifications().UnreadCount(ctx, userID, sessionID)
	if err != nil {
		return dto.PollData{}, fmt.Errorf("count unread: %w", err)
	}

	out := dto.PollData{
		Notifications: list,
		UnreadCount:   unread,
	}
	for _, item := range list {
		if item.IsKick() && item.ReadAt == nil {
			out.HasKick = true
			break
		}
	}
	metrics.PollRequestsTotal.WithLabelValues(strconv.FormatBool(out.HasKick)).Inc()
	return out, nil
}

func (n *NotificationServiceImpl) MarkRead(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, req dto.MarkReadRequest) (dto.MarkReadData, error) {
	if len(req.IDs) == 0 {
		return dto.MarkReadData{}, nil
	}
	count, err := n.Store.Notifications().MarkRead(ctx, userID, sessionID, req.IDs, n.now().UTC())
	if err != nil {
		return dto.MarkReadData{}, fmt.Errorf("mark read: %w", err)
	}
	return dto.MarkReadData{MarkedAsRead: count}, nil
}

// Publish delivers one piece of content down both paths. The feed rows are
// written first: they are the durable source the clients poll, and must
// survive even if the push leg fails outright.
func (n *NotificationServiceImpl) Publish(ctx context.Context, req dto.DispatchRequest) (dto.DispatchResult, error) {
	if req.Title == "" || req.Body == "" {
		return dto.DispatchResult{}, ErrEmptyContent
	}
	kind := domain.TargetKind(req.TargetType)
	if !kind.IsValid() {
		return dto.DispatchResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidTarget, req.TargetType)
	}

	notifType := req.NotificationType
	if notifType == "" {
		notifType = domain.NotifyAdminBroadcast
	}

	msg := dto.PushMessage{
		Title:     req.Title,
		Body:      req.Body,
		Data:      req.Data,
		Sound:     "default",
		ChannelID: "default",
	}

	now := n.now().UTC()

	switch kind {
	case domain.TargetUser:
		userID, err := uuid.Parse(req.TargetID)
		if err != nil {
			return dto.DispatchResult{}, fmt.Errorf("%w: targetId must be a user id", domain.ErrValidation)
		}
		if err := n.Store.Notifications().Create(ctx, &domain.Notification{
			UserID: userID,
			Type:   notifType,
			Title:  req.Title,
			Body:   req.Body,
			Data:   []byte(req.Data),
			SentAt: now,
		}); err != nil {
			return dto.DispatchResult{}, fmt.Errorf("write feed row: %w", err)
		}
		return n.Dispatch.DispatchToUser(ctx, userID, msg)

	case domain.TargetDevice:
		if req.TargetID == "" {
			return dto.DispatchResult{}, ErrEmptyTargetID
		}
		// Token-addressed sends have no user context, so no feed row.
		return n.Dispatch.DispatchToDevice(ctx, req.TargetID, msg)

	case domain.TargetPlatform:
		platform := domain.Platform(req.TargetPlatform)
		if !platform.IsValid() {
			return dto.DispatchResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidPlatform, req.TargetPlatform)
		}
		if err := n.fanOutFeed(ctx, &platform, notifType, req, now); err != nil {
			return dto.DispatchResult{}, err
		}
		return n.Dispatch.DispatchToPlatform(ctx, platform, msg)

	default: // domain.TargetAll
		if err := n.fanOutFeed(ctx, nil, notifType, req, now); err != nil {
			return dto.DispatchResult{}, err
		}
		return n.Dispatch.DispatchToAll(ctx, msg)
	}
}

func (n *NotificationServiceImpl) fanOutFeed(ctx context.Context, platform *domain.Platform, notifType string, req dto.DispatchRequest, at time.Time) error {
	userIDs, err := n.Store.Sessions().ActiveUserIDs(ctx, platform, at)
	if err != nil {
		return fmt.Errorf("resolve feed audience: %w", err)
	}
	rows := make([]*domain.Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, &domain.Notification{
			UserID: uid,
			Type:   notifType,
			Title:  req.Title,
			Body:   req.Body,
			Data:   []byte(req.Data),
			SentAt: at,
		})
	}
	if err := n.Store.Notifications().CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("write feed rows: %w", err)
	}
	return nil
}
