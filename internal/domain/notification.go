package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Well-known notification types. The column is free-form text so new
// business types don't need a migration; session_kicked has reserved
// semantics in the poll path.
const (
	NotifyBookingReminder  = "booking_reminder"
	NotifyBookingConfirmed = "booking_confirmed"
	NotifyBookingCancelled = "booking_cancelled"
	NotifyPaymentReceived  = "payment_received"
	NotifyLessonFeedback   = "lesson_feedback"
	NotifyAdminBroadcast   = "admin_broadcast"
	NotifySessionKicked    = "session_kicked"
)

// Notification is one row of a user's pollable feed. SessionID nil means
// every session of the user sees it; non-nil pins it to a single session
// (kick notices must never log out a sibling device).
type Notification struct {
	ID        NotificationID `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	UserID    UserID         `gorm:"type:uuid;index:ix_notifications_user_sent" db:"user_id" json:"-"`
	SessionID *SessionID     `gorm:"type:uuid;index" db:"session_id" json:"-"`
	Type      string         `gorm:"type:text;not null" db:"type" json:"notificationType"`
	Title     string         `gorm:"type:text;not null" db:"title" json:"title"`
	Body      string         `gorm:"type:text;not null" db:"body" json:"body"`
	Data      datatypes.JSON `gorm:"type:jsonb" db:"data" json:"data,omitempty"`
	SentAt    time.Time      `gorm:"not null;index:ix_notifications_user_sent" db:"sent_at" json:"sentAt"`
	ReadAt    *time.Time     `db:"read_at" json:"readAt,omitempty"`
}

func (Notification) TableName() string { return "notifications" }

func (n Notification) IsKick() bool {
	return n.Type == NotifySessionKicked
}
