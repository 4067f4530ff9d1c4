package store

import (
	"context"
	"errors"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStore struct{ db *gorm.DB }

func (s *Store) Sessions() *SessionStore { return &SessionStore{s.DB} }

// Create inserts the session and deactivates any previous active session for
// the same (user, device) pair, so one device never holds two live logins.
func (ss *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	return ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Session{}).
			Where("user_id = ? AND device_id = ? AND active = ?", sess.UserID, sess.DeviceID, true).
			Updates(map[string]any{"active": false, "push_token": nil}).Error; err != nil {
			return err
		}
		return tx.Create(sess).Error
	})
}

func (ss *SessionStore) Get(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	var sess domain.Session
	if err := ss.db.WithContext(ctx).First(&sess, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (ss *SessionStore) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var sess domain.Session
	if err := ss.db.WithContext(ctx).First(&sess, "push_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// AttachPushToken binds a registration token to the session, stealing it
// from any other session that still holds it. A token belongs to at most
// one session at a time.
func (ss *SessionStore) AttachPushToken(ctx context.Context, id domain.SessionID, token string, platform domain.Platform) error {
	return ss.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Session{}).
			Where("push_token = ? AND id <> ?", token, id).
			Update("push_token", nil).Error; err != nil {
			return err
		}
		res := tx.Model(&domain.Session{}).
			Where("id = ?", id).
			Updates(map[string]any{"push_token": token, "platform": platform})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrSessionNotFound
		}
		return nil
	})
}

// ClearToken removes a registration token wherever it appears. Used by
// receipt reconciliation when the gateway reports the device gone; clearing
// an unknown token is a no-op, which keeps the pass idempotent.
func (ss *SessionStore) ClearToken(ctx context.Context, token string) (int64, error) {
	tx := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("push_token = ?", token).
		Update("push_token", nil)
	return tx.RowsAffected, tx.Error
}

// Deactivate ends the session: no further pushes, no further sync. The
// token is released so a future login can reuse it.
func (ss *SessionStore) Deactivate(ctx context.Context, id domain.SessionID) error {
	res := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": false, "push_token": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (ss *SessionStore) TouchActivity(ctx context.Context, id domain.SessionID, at time.Time) error {
	return ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Update("last_active_at", at).Error
}

func (ss *SessionStore) SetLastSync(ctx context.Context, id domain.SessionID, at time.Time) error {
	return ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ?", id).
		Update("last_sync_at", at).Error
}

// ExpireStale flips sessions past their expiry to inactive and releases
// their tokens. Returns how many rows were swept.
func (ss *SessionStore) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tx := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Updates(map[string]any{"active": false, "push_token": nil})
	return tx.RowsAffected, tx.Error
}

func (ss *SessionStore) pushable(now time.Time) *gorm.DB {
	return ss.db.
		Where("active = ?", true).
		Where("push_token IS NOT NULL AND push_token <> ''").
		Where("expires_at IS NULL OR expires_at > ?", now)
}

// TokensForAll returns every distinct pushable token.
func (ss *SessionStore) TokensForAll(ctx context.Context, now time.Time) ([]string, error) {
	var tokens []string
	err := ss.pushable(now).WithContext(ctx).
		Model(&domain.Session{}).
		Distinct().
		Pluck("push_token", &tokens).Error
	return tokens, err
}

func (ss *SessionStore) TokensForUser(ctx context.Context, userID domain.UserID, now time.Time) ([]string, error) {
	var tokens []string
	err := ss.pushable(now).WithContext(ctx).
		Model(&domain.Session{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("push_token", &tokens).Error
	return tokens, err
}

func (ss *SessionStore) TokensForPlatform(ctx context.Context, platform domain.Platform, now time.Time) ([]string, error) {
	var tokens []string
	err := ss.pushable(now).WithContext(ctx).
		Model(&domain.Session{}).
		Where("platform = ?", platform).
		Distinct().
		Pluck("push_token", &tokens).Error
	return tokens, err
}

// ActiveUserIDs returns the distinct users holding at least one pushable
// session, optionally narrowed to a platform. Feed fanout for broadcast
// dispatches reads from here.
func (ss *SessionStore) ActiveUserIDs(ctx context.Context, platform *domain.Platform, now time.Time) ([]domain.UserID, error) {
	q := ss.pushable(now).WithContext(ctx).Model(&domain.Session{})
	if platform != nil {
		q = q.Where("platform = ?", *platform)
	}
	var ids []domain.UserID
	err := q.Distinct().Pluck("user_id", &ids).Error
	return ids, err
}
