package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/store"

	"github.com/google/uuid"
)

func enqueueOp(t *testing.T, st *store.SyncStore, sessionID, userID uuid.UUID, kind string, createdAt time.Time) *domain.SyncOperation {
	t.Helper()

	op := &domain.SyncOperation{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    userID,
		Kind:      kind,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := st.Enqueue(context.Background(), op); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return op
}

func TestEnqueueAppliesDefaults(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	op := &domain.SyncOperation{
		SessionID: uuid.New(),
		UserID:    uuid.New(),
		Kind:      domain.OpBookingCreate,
	}
	if err := st.SyncOps().Enqueue(ctx, op); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := st.SyncOps().Get(ctx, op.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.SyncPending {
		t.Fatalf("expected pending status, got %s", got.Status)
	}
	if got.MaxRetries != domain.DefaultMaxRetries {
		t.Fatalf("expected default retry cap, got %d", got.MaxRetries)
	}
	if got.RetryCount != 0 {
		t.Fatalf("expected zero consumed retries, got %d", got.RetryCount)
	}
}

func TestDueReturnsOldestFirstAndAdoptsSyncing(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	sessionID := uuid.New()
	userID := uuid.New()

	second := enqueueOp(t, st.SyncOps(), sessionID, userID, domain.OpBookingCancel, base.Add(2*time.Minute))
	first := enqueueOp(t, st.SyncOps(), sessionID, userID, domain.OpBookingCreate, base.Add(1*time.Minute))
	stale := enqueueOp(t, st.SyncOps(), sessionID, userID, domain.OpFeedbackSubmit, base)
	if err := st.SyncOps().MarkSyncing(ctx, stale.ID, base.Add(30*time.Second)); err != nil {
		t.Fatalf("mark syncing: %v", err)
	}

	done := enqueueOp(t, st.SyncOps(), sessionID, userID, domain.OpQuizAttempt, base)
	if err := st.SyncOps().MarkSynced(ctx, done.ID, base.Add(time.Minute)); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	enqueueOp(t, st.SyncOps(), uuid.New(), userID, domain.OpBookingCreate, base)

	due, err := st.SyncOps().Due(ctx, sessionID)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("expected 3 runnable operations, got %d", len(due))
	}
	if due[0].ID != stale.ID || due[1].ID != first.ID || due[2].ID != second.ID {
		t.Fatalf("expected oldest-first order with the stale syncing row adopted, got %v, %v, %v",
			due[0].Kind, due[1].Kind, due[2].Kind)
	}
}

func TestMarkRetryAndFailedConsumeAttempts(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	op := enqueueOp(t, st.SyncOps(), uuid.New(), uuid.New(), domain.OpLessonProgress, now)

	if err := st.SyncOps().MarkRetry(ctx, op.ID, now, "upstream 503"); err != nil {
		t.Fatalf("mark retry: %v", err)
	}
	got, err := st.SyncOps().Get(ctx, op.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.SyncPending {
		t.Fatalf("expected pending after retry, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", got.RetryCount)
	}
	if got.LastError == nil || *got.LastError != "upstream 503" {
		t.Fatalf("expected failure message preserved, got %v", got.LastError)
	}
	if !got.RetriesLeft() {
		t.Fatalf("one consumed attempt of three should leave retries")
	}

	if err := st.SyncOps().MarkRetry(ctx, op.ID, now, "upstream 503"); err != nil {
		t.Fatalf("mark retry: %v", err)
	}
	got, err = st.SyncOps().Get(ctx, op.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RetriesLeft() {
		t.Fatalf("two consumed attempts of three must exhaust retries")
	}

	if err := st.SyncOps().MarkFailed(ctx, op.ID, now, "upstream 503"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, err = st.SyncOps().Get(ctx, op.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.SyncFailed || !got.Terminal() {
		t.Fatalf("expected terminal failed, got %s", got.Status)
	}
	if got.RetryCount != 3 {
		t.Fatalf("expected 3 consumed attempts, got %d", got.RetryCount)
	}
}

func TestCountByStatusAndPrune(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-31 * 24 * time.Hour)
	now := time.Now().UTC()

	sessionID := uuid.New()
	userID := uuid.New()

	enqueueOp(t, st.SyncOps(), sessionID, userID, domain.OpBookingCreate, now)
	done := enqueueOp(t, st.SyncOps(), sessionID, userID, domain.OpBookingCancel, old)
	if err := st.SyncOps().MarkSynced(ctx, done.ID, old); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	// Age the terminal row past the horizon.
	if err := st.DB.Model(&domain.SyncOperation{}).Where("id = ?", done.ID).Update("updated_at", old).Error; err != nil {
		t.Fatalf("age row: %v", err)
	}

	pending, err := st.SyncOps().CountByStatus(ctx, sessionID, domain.SyncPending)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if pending != 1 {
		t.Fatalf("expected 1 pending, got %d", pending)
	}

	pruned, err := st.SyncOps().PruneTerminal(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned row, got %d", pruned)
	}

	if _, err := st.SyncOps().Get(ctx, done.ID); err == nil {
		t.Fatalf("expected pruned row gone")
	}
}
