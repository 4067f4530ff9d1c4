package store

import (
	"context"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PushRecordStore struct{ db *gorm.DB }

func (s *Store) PushRecords() *PushRecordStore { return &PushRecordStore{s.DB} }

func (ps *PushRecordStore) Create(ctx context.Context, r *domain.PushRecord) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return ps.db.WithContext(ctx).Create(r).Error
}

func (ps *PushRecordStore) Get(ctx context.Context, id domain.RecordID) (*domain.PushRecord, error) {
	var r domain.PushRecord
	if err := ps.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (ps *PushRecordStore) ListRecent(ctx context.Context, limit int) ([]domain.PushRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.PushRecord
	err := ps.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DueForReceiptCheck returns unreconciled records old enough for the
// gateway to have settled their receipts but still inside the lookback
// window. Oldest first so a backlog drains in order.
func (ps *PushRecordStore) DueForReceiptCheck(ctx context.Context, settledBefore, notBefore time.Time, limit int) ([]domain.PushRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.PushRecord
	err := ps.db.WithContext(ctx).
		Where("status IN ?", []domain.DispatchStatus{domain.DispatchSent, domain.DispatchPartial}).
		Where("receipts_checked_at IS NULL").
		Where("created_at <= ? AND created_at >= ?", settledBefore, notBefore).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkReceiptsChecked stamps the reconciliation pass. Diagnostics are
// appended as a JSON blob; the dispatch counters stay untouched.
func (ps *PushRecordStore) MarkReceiptsChecked(ctx context.Context, id domain.RecordID, at time.Time, diagnostics datatypes.JSON) error {
	updates := map[string]any{"receipts_checked_at": at}
	if len(diagnostics) > 0 {
		updates["receipt_errors"] = diagnostics
	}
	return ps.db.WithContext(ctx).
		Model(&domain.PushRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}
