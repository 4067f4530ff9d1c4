package domain

import (
	"time"

	"gorm.io/datatypes"
)

// TargetKind selects how a dispatch resolves its recipients.
type TargetKind string

const (
	TargetAll      TargetKind = "all"
	TargetUser     TargetKind = "user"
	TargetDevice   TargetKind = "device"
	TargetPlatform TargetKind = "platform"
)

func (k TargetKind) IsValid() bool {
	switch k {
	case TargetAll, TargetUser, TargetDevice, TargetPlatform:
		return true
	}
	return false
}

// DispatchStatus summarizes one dispatch invocation.
type DispatchStatus string

const (
	DispatchSent    DispatchStatus = "sent"
	DispatchPartial DispatchStatus = "partial"
	DispatchFailed  DispatchStatus = "failed"
)

// DispatchStatusFor derives the record status from the final counters.
func DispatchStatusFor(sent, failed int) DispatchStatus {
	switch {
	case sent > 0 && failed == 0:
		return DispatchSent
	case sent > 0:
		return DispatchPartial
	default:
		return DispatchFailed
	}
}

// PushRecord is the immutable audit row written once per dispatch
// invocation. Receipt reconciliation may later stamp ReceiptsCheckedAt and
// append diagnostics to ReceiptErrors; the counters and status never change
// after insert.
type PushRecord struct {
	ID                RecordID       `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	TargetKind        TargetKind     `gorm:"type:text;not null" db:"target_kind" json:"targetType"`
	TargetID          *string        `gorm:"type:text" db:"target_id" json:"targetId,omitempty"`
	Platform          *Platform      `gorm:"type:text" db:"platform" json:"targetPlatform,omitempty"`
	Title             string         `gorm:"type:text;not null" db:"title" json:"title"`
	Body              string         `gorm:"type:text;not null" db:"body" json:"body"`
	Data              datatypes.JSON `gorm:"type:jsonb" db:"data" json:"data,omitempty"`
	Recipients        int            `gorm:"not null" db:"recipients" json:"recipients"`
	Sent              int            `gorm:"not null" db:"sent" json:"sent"`
	Failed            int            `gorm:"not null" db:"failed" json:"failed"`
	Status            DispatchStatus `gorm:"type:text;not null;index" db:"status" json:"status"`
	TicketIDs         datatypes.JSON `gorm:"type:jsonb" db:"ticket_ids" json:"-"`
	Errors            datatypes.JSON `gorm:"type:jsonb" db:"errors" json:"errors,omitempty"`
	ReceiptsCheckedAt *time.Time     `gorm:"index" db:"receipts_checked_at" json:"receiptsCheckedAt,omitempty"`
	ReceiptErrors     datatypes.JSON `gorm:"type:jsonb" db:"receipt_errors" json:"receiptErrors,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;index" db:"created_at" json:"createdAt"`
}

func (PushRecord) TableName() string { return "push_records" }
