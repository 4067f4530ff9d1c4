package impl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
	"github.com/wagmicrew/TFX-APP-sub001/internal/service"
	"github.com/wagmicrew/TFX-APP-sub001/internal/store"

	"github.com/google/uuid"
)

var _ service.SessionService = (*SessionServiceImpl)(nil)

type SessionServiceImpl struct {
	Store    *store.Store
	Dispatch service.DispatchService
	Log      *slog.Logger

	now func() time.Time
}

func NewSessionServiceImpl(st *store.Store, dispatch service.DispatchService, log *slog.Logger) *SessionServiceImpl {
	return &SessionServiceImpl{
		Store:    st,
		Dispatch: dispatch,
		Log:      log,
		now:      time.Now,
	}
}

func (s *SessionServiceImpl) Register(ctx context.Context, req dto.RegisterSessionRequest) (*domain.Session, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, ErrBadUserID
	}
	if req.DeviceID == "" {
		return nil, ErrEmptyDeviceID
	}
	platform := domain.Platform(req.Platform)
	if !platform.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPlatform, req.Platform)
	}

	now := s.now().UTC()
	sess := &domain.Session{
		UserID:       userID,
		DeviceID:     req.DeviceID,
		Platform:     platform,
		Active:       true,
		LastActiveAt: now,
		ExpiresAt:    req.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			return nil, ErrBadSessionID
		}
		sess.ID = id
	}

	if err := s.Store.Sessions().Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if req.PushToken != "" {
		if err := s.Store.Sessions().AttachPushToken(ctx, sess.ID, req.PushToken, platform); err != nil {
			return nil, fmt.Errorf("attach push token: %w", err)
		}
		sess.PushToken = &req.PushToken
	}

	s.Log.Info("session registered", "session_id", sess.ID, "user_id", userID, "platform", platform)
	return sess, nil
}

func (s *SessionServiceImpl) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return s.Store.Sessions().Get(ctx, id)
}

func (s *SessionServiceImpl) AttachPushToken(ctx context.Context, id domain.SessionID, token string, platform domain.Platform) error {
	if token == "" {
		return ErrEmptyToken
	}
	if !platform.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPlatform, platform)
	}
	sess, err := s.Store.Sessions().Get(ctx, id)
	if err != nil {
		return err
	}
	if !sess.Active || sess.Expired(s.now()) {
		return domain.ErrSessionInactive
	}
	if err := s.Store.Sessions().AttachPushToken(ctx, id, token, platform); err != nil {
		return fmt.Errorf("attach push token: %w", err)
	}
	s.Log.Info("push token attached", "session_id", id, "platform", platform)
	return nil
}

func (s *SessionServiceImpl) Logout(ctx context.Context, id domain.SessionID) error {
	if err := s.Store.Sessions().Deactivate(ctx, id); err != nil {
		return err
	}
	s.Log.Info("session logged out", "session_id", id)
	return nil
}

// Kick force-ends a session. The heads-up push goes out before the
// deactivation because an inactive session can no longer be a push target;
// the pinned feed row is what guarantees delivery via the next poll.
func (s *SessionServiceImpl) Kick(ctx context.Context, id domain.SessionID, reason string) error {
	sess, err := s.Store.Sessions().Get(ctx, id)
	if err != nil {
		return err
	}

	hasUnread, err := s.Store.Notifications().HasUnreadKick(ctx, sess.UserID, sess.ID)
	if err != nil {
		return fmt.Errorf("check pending kick: %w", err)
	}

	if !hasUnread {
		if reason == "" {
			reason = "Your session was ended by an administrator."
		}
		data, _ := json.Marshal(map[string]string{
			"sessionId": sess.ID.String(),
			"reason":    reason,
		})
		notice := &domain.Notification{
			UserID:    sess.UserID,
			SessionID: &sess.ID,
			Type:      domain.NotifySessionKicked,
			Title:     "Signed out",
			Body:      reason,
			Data:      data,
			SentAt:    s.now().UTC(),
		}
		if err := s.Store.Notifications().Create(ctx, notice); err != nil {
			return fmt.Errorf("write kick notice: %w", err)
		}

		if sess.Pushable(s.now()) {
			msg := dto.PushMessage{
				Title:     "Signed out",
				Body:      reason,
				Data:      data,
				Sound:     "default",
				ChannelID: "default",
				Priority:  "high",
			}
			if res, err := s.Dispatch.DispatchToDevice(ctx, *sess.PushToken, msg); err != nil {
				s.Log.Warn("kick push failed", "session_id", id, "error", err)
			} else if res.Failed > 0 {
				s.Log.Warn("kick push not delivered", "session_id", id, "errors", res.Errors)
			}
		}
	}

	if sess.Active {
		if err := s.Store.Sessions().Deactivate(ctx, id); err != nil {
			return fmt.Errorf("deactivate kicked session: %w", err)
		}
	}

	s.Log.Info("session kicked", "session_id", id, "user_id", sess.UserID)
	return nil
}

func (s *SessionServiceImpl) TouchActivity(ctx context.Context, id domain.SessionID) {
	if err := s.Store.Sessions().TouchActivity(ctx, id, s.now().UTC()); err != nil {
		s.Log.Debug("activity touch failed", "session_id", id, "error", err)
	}
}

func (s *SessionServiceImpl) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.Store.Sessions().ExpireStale(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	if n > 0 {
		s.Log.Info("expired sessions swept", "count", n)
	}
	return n, nil
}
