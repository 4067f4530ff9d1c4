package store

import (
	"context"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncStore struct{ db *gorm.DB }

func (s *Store) SyncOps() *SyncStore { return &SyncStore{s.DB} }

func (st *SyncStore) Enqueue(ctx context.Context, op *domain.SyncOperation) error {
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	if op.Status == "" {
		op.Status = domain.SyncPending
	}
	if op.MaxRetries <= 0 {
		op.MaxRetries = domain.DefaultMaxRetries
	}
	return st.db.WithContext(ctx).Create(op).Error
}

// Due returns the session's runnable operations oldest first. Rows stuck in
// syncing are included: a processor that died mid-run left them behind, and
// the next run adopts them as retryable work.
func (st *SyncStore) Due(ctx context.Context, sessionID domain.SessionID) ([]domain.SyncOperation, error) {
	var ops []domain.SyncOperation
	err := st.db.WithContext(ctx).
		Where("session_id = ? AND status IN ?", sessionID, []domain.SyncStatus{domain.SyncPending, domain.SyncSyncing}).
		Order("created_at asc").
		Find(&ops).Error
	return ops, err
}

func (st *SyncStore) MarkSyncing(ctx context.Context, id domain.OperationID, at time.Time) error {
	return st.db.WithContext(ctx).
		Model(&domain.SyncOperation{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": domain.SyncSyncing, "last_attempt_at": at}).Error
}

func (st *SyncStore) MarkSynced(ctx context.Context, id domain.OperationID, at time.Time) error {
	return st.db.WithContext(ctx).
		Model(&domain.SyncOperation{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": domain.SyncSynced, "last_error": nil, "last_attempt_at": at}).Error
}

// MarkRetry parks the operation back in pending with one more consumed
// attempt and the failure message preserved.
func (st *SyncStore) MarkRetry(ctx context.Context, id domain.OperationID, at time.Time, msg string) error {
	return st.db.WithContext(ctx).
		Model(&domain.SyncOperation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          domain.SyncPending,
			"retry_count":     gorm.Expr("retry_count + 1"),
			"last_error":      msg,
			"last_attempt_at": at,
		}).Error
}

// MarkFailed parks the operation terminally.
func (st *SyncStore) MarkFailed(ctx context.Context, id domain.OperationID, at time.Time, msg string) error {
	return st.db.WithContext(ctx).
		Model(&domain.SyncOperation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          domain.SyncFailed,
			"retry_count":     gorm.Expr("retry_count + 1"),
			"last_error":      msg,
			"last_attempt_at": at,
		}).Error
}

func (st *SyncStore) Get(ctx context.Context, id domain.OperationID) (*domain.SyncOperation, error) {
	var op domain.SyncOperation
	if err := st.db.WithContext(ctx).First(&op, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

func (st *SyncStore) CountByStatus(ctx context.Context, sessionID domain.SessionID, status domain.SyncStatus) (int64, error) {
	var n int64
	err := st.db.WithContext(ctx).
		Model(&domain.SyncOperation{}).
		Where("session_id = ? AND status = ?", sessionID, status).
		Count(&n).Error
	return n, err
}

// PruneTerminal deletes synced and failed rows past the retention horizon.
func (st *SyncStore) PruneTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := st.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []domain.SyncStatus{domain.SyncSynced, domain.SyncFailed}, cutoff).
		Delete(&domain.SyncOperation{})
	return tx.RowsAffected, tx.Error
}
