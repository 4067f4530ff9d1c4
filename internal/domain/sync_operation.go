package domain

import (
	"time"

	"gorm.io/datatypes"
)

// SyncStatus is the lifecycle state of a queued offline mutation.
//
//	pending → syncing → synced            (terminal)
//	                  → pending (retry+1) while retries remain
//	                  → failed            (terminal, retries exhausted)
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Operation kinds the mobile client may queue while offline. The processor
// resolves each kind to a registered applier; an unregistered kind fails the
// operation instead of silently succeeding.
const (
	OpBookingCreate  = "booking_create"
	OpBookingCancel  = "booking_cancel"
	OpFeedbackSubmit = "feedback_submit"
	OpLessonProgress = "lesson_progress"
	OpQuizAttempt    = "quiz_attempt"
)

// DefaultMaxRetries is applied when an operation is enqueued without an
// explicit cap.
const DefaultMaxRetries = 3

// SyncOperation is one client-queued mutation awaiting server-side replay.
type SyncOperation struct {
	ID            OperationID    `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	SessionID     SessionID      `gorm:"type:uuid;index:ix_sync_ops_session_status" db:"session_id" json:"sessionId"`
	UserID        UserID         `gorm:"type:uuid;index" db:"user_id" json:"userId"`
	Kind          string         `gorm:"type:text;not null" db:"kind" json:"kind"`
	Payload       datatypes.JSON `gorm:"type:jsonb" db:"payload" json:"payload,omitempty"`
	Status        SyncStatus     `gorm:"type:text;not null;index:ix_sync_ops_session_status" db:"status" json:"status"`
	RetryCount    int            `gorm:"not null" db:"retry_count" json:"retryCount"`
	MaxRetries    int            `gorm:"not null" db:"max_retries" json:"maxRetries"`
	LastError     *string        `gorm:"type:text" db:"last_error" json:"lastError,omitempty"`
	LastAttemptAt *time.Time     `db:"last_attempt_at" json:"lastAttemptAt,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `gorm:"not null" db:"updated_at" json:"-"`
}

func (SyncOperation) TableName() string { return "sync_operations" }

// Terminal reports whether the operation can never run again.
func (o SyncOperation) Terminal() bool {
	return o.Status == SyncSynced || o.Status == SyncFailed
}

// RetriesLeft reports whether another attempt is allowed after a failure.
// The count compares attempts already consumed against the cap, so an
// operation with MaxRetries=3 runs at most three times.
func (o SyncOperation) RetriesLeft() bool {
	return o.RetryCount+1 < o.MaxRetries
}
