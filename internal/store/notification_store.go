package store

import (
	"context"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationStore struct{ db *gorm.DB }

func (s *Store) Notifications() *NotificationStore { return &NotificationStore{s.DB} }

// PollQuery narrows a feed read. Since is exclusive; zero means no lower
// bound. Limit of zero falls back to the server default.
type PollQuery struct {
	UnreadOnly bool
	Since      time.Time
	Limit      int
}

func (ns *NotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return ns.db.WithContext(ctx).Create(n).Error
}

func (ns *NotificationStore) CreateBatch(ctx context.Context, items []*domain.Notification) error {
	if len(items) == 0 {
		return nil
	}
	for _, n := range items {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
	}
	return ns.db.WithContext(ctx).CreateInBatches(items, 200).Error
}

// scoped restricts reads to rows a session may see: its user's rows that
// are either unpinned or pinned to this very session.
func (ns *NotificationStore) scoped(userID domain.UserID, sessionID domain.SessionID) *gorm.DB {
	return ns.db.
		Where("user_id = ?", userID).
		Where("session_id IS NULL OR session_id = ?", sessionID)
}

func (ns *NotificationStore) ListForSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, q PollQuery) ([]domain.Notification, error) {
	tx := ns.scoped(userID, sessionID).WithContext(ctx)
	if q.UnreadOnly {
		tx = tx.Where("read_at IS NULL")
	}
	if !q.Since.IsZero() {
		tx = tx.Where("sent_at > ?", q.Since)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var out []domain.Notification
	if err := tx.Order("sent_at desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (ns *NotificationStore) UnreadCount(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) (int64, error) {
	var n int64
	err := ns.scoped(userID, sessionID).WithContext(ctx).
		Model(&domain.Notification{}).
		Where("read_at IS NULL").
		Count(&n).Error
	return n, err
}

// MarkRead stamps the given rows read and reports how many actually
// changed. Rows already read, rows of other users and rows pinned to other
// sessions do not count.
func (ns *NotificationStore) MarkRead(ctx context.Context, userID domain.UserID, sessionID domain.SessionID, ids []domain.NotificationID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx := ns.scoped(userID, sessionID).WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id IN ? AND read_at IS NULL", ids).
		Update("read_at", at)
	return tx.RowsAffected, tx.Error
}

// HasUnreadKick reports whether a kick notice for this session is still
// unread, regardless of any poll window.
func (ns *NotificationStore) HasUnreadKick(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) (bool, error) {
	var n int64
	err := ns.scoped(userID, sessionID).WithContext(ctx).
		Model(&domain.Notification{}).
		Where("type = ? AND read_at IS NULL", domain.NotifySessionKicked).
		Count(&n).Error
	return n > 0, err
}

// PruneOlderThan deletes read rows past the retention horizon. Unread rows
// are kept so nothing disappears before the client saw it.
func (ns *NotificationStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := ns.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND sent_at < ?", cutoff).
		Delete(&domain.Notification{})
	return tx.RowsAffected, tx.Error
}
