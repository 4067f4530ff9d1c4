package impl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
	"github.com/wagmicrew/TFX-APP-sub001/internal/service"
	"github.com/wagmicrew/TFX-APP-sub001/internal/store"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	st := store.New(db)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return st
}

func seedSession(t *testing.T, st *store.Store, userID uuid.UUID, deviceID, token string, platform domain.Platform, active bool) *domain.Session {
	t.Helper()

	now := time.Now().UTC()
	sess := &domain.Session{
		ID:           uuid.New(),
		UserID:       userID,
		DeviceID:     deviceID,
		Platform:     platform,
		Active:       active,
		LastActiveAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if token != "" {
		sess.PushToken = &token
	}
	if err := st.Sessions().Create(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sess
}

func seedOp(t *testing.T, st *store.Store, sess *domain.Session, kind string, createdAt time.Time) *domain.SyncOperation {
	t.Helper()

	op := &domain.SyncOperation{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Kind:      kind,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := st.SyncOps().Enqueue(context.Background(), op); err != nil {
		t.Fatalf("seed operation: %v", err)
	}
	return op
}

type stubApplier struct {
	kind    string
	err     error
	applyFn func(op domain.SyncOperation) error

	applied []domain.SyncOperation
}

func (a *stubApplier) Kind() string { return a.kind }

func (a *stubApplier) Apply(ctx context.Context, op domain.SyncOperation) error {
	a.applied = append(a.applied, op)
	if a.applyFn != nil {
		return a.applyFn(op)
	}
	return a.err
}

func newTestSync(t *testing.T, st *store.Store, appliers ...service.OperationApplier) *SyncServiceImpl {
	t.Helper()

	svc, err := NewSyncServiceImpl(st, appliers, testLogger())
	if err != nil {
		t.Fatalf("new sync service: %v", err)
	}
	return svc
}

func TestNewSyncServiceImplRejectsDuplicateAppliers(t *testing.T) {
	st := openStore(t)
	_, err := NewSyncServiceImpl(st, []service.OperationApplier{
		&stubApplier{kind: domain.OpBookingCreate},
		&stubApplier{kind: domain.OpBookingCreate},
	}, testLogger())
	if !errors.Is(err, ErrDuplicateApplier) {
		t.Fatalf("expected ErrDuplicateApplier, got %v", err)
	}
}

func TestSyncEnqueueValidations(t *testing.T) {
	st := openStore(t)
	svc := newTestSync(t, st)
	ctx := context.Background()

	sess := seedSession(t, st, uuid.New(), "device-1", "", domain.PlatformIOS, true)
	ops := []dto.SyncOperationInput{{Kind: domain.OpBookingCancel, Payload: json.RawMessage(`{"bookingId":"b-1"}`)}}

	if _, err := svc.Enqueue(ctx, sess.ID, sess.UserID, nil); !errors.Is(err, ErrNoOperations) {
		t.Fatalf("expected ErrNoOperations, got %v", err)
	}
	if _, err := svc.Enqueue(ctx, uuid.New(), sess.UserID, ops); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Enqueue(ctx, sess.ID, sess.UserID, []dto.SyncOperationInput{{Kind: ""}}); !errors.Is(err, ErrEmptyKind) {
		t.Fatalf("expected ErrEmptyKind, got %v", err)
	}

	loggedOut := seedSession(t, st, uuid.New(), "device-2", "", domain.PlatformIOS, false)
	if _, err := svc.Enqueue(ctx, loggedOut.ID, loggedOut.UserID, ops); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}

	exp := time.Now().UTC().Add(-time.Hour)
	expired := &domain.Session{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		DeviceID:     "device-3",
		Platform:     domain.PlatformAndroid,
		Active:       true,
		ExpiresAt:    &exp,
		LastActiveAt: exp,
		CreatedAt:    exp,
		UpdatedAt:    exp,
	}
	if err := st.Sessions().Create(ctx, expired); err != nil {
		t.Fatalf("seed expired session: %v", err)
	}
	if _, err := svc.Enqueue(ctx, expired.ID, expired.UserID, ops); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive for expired session, got %v", err)
	}
}

func TestSyncEnqueuePersistsOperations(t *testing.T) {
	st := openStore(t)
	svc := newTestSync(t, st)
	ctx := context.Background()

	sess := seedSession(t, st, uuid.New(), "device-1", "", domain.PlatformIOS, true)
	out, err := svc.Enqueue(ctx, sess.ID, sess.UserID, []dto.SyncOperationInput{
		{Kind: domain.OpBookingCreate, Payload: json.RawMessage(`{"lessonTypeId":"lt-1","startsAt":"2026-09-01T10:00:00Z"}`)},
		{Kind: domain.OpFeedbackSubmit, Payload: json.RawMessage(`{"bookingId":"b-1","rating":5}`), MaxRetries: 5},
	})
	if err != nil {
		t.Fatalf("enqueue returned error: %v", err)
	}
	if out.Queued != 2 || len(out.IDs) != 2 {
		t.Fatalf("got queued=%d ids=%d, want 2/2", out.Queued, len(out.IDs))
	}

	first, err := st.SyncOps().Get(ctx, out.IDs[0])
	if err != nil {
		t.Fatalf("get first op: %v", err)
	}
	if first.Status != domain.SyncPending || first.Kind != domain.OpBookingCreate {
		t.Fatalf("first op = %s/%s, want pending booking_create", first.Status, first.Kind)
	}
	if first.MaxRetries != domain.DefaultMaxRetries {
		t.Fatalf("got max retries %d, want default %d", first.MaxRetries, domain.DefaultMaxRetries)
	}
	if !strings.Contains(string(first.Payload), "lessonTypeId") {
		t.Fatalf("payload not persisted: %s", first.Payload)
	}

	second, err := st.SyncOps().Get(ctx, out.IDs[1])
	if err != nil {
		t.Fatalf("get second op: %v", err)
	}
	if second.MaxRetries != 5 {
		t.Fatalf("got max retries %d, want explicit 5", second.MaxRetries)
	}
}

func TestProcessQueueDrainsOldestFirst(t *testing.T) {
	st := openStore(t)
	ok := &stubApplier{kind: domain.OpBookingCreate}
	bad := &stubApplier{kind: domain.OpFeedbackSubmit, err: errors.New("upstream 503")}
	svc := newTestSync(t, st, ok, bad)
	ctx := context.Background()

	sess := seedSession(t, st, uuid.New(), "device-1", "", domain.PlatformIOS, true)
	base := time.Now().UTC().Add(-time.Minute)
	opOK := seedOp(t, st, sess, domain.OpBookingCreate, base)
	opRetry := seedOp(t, st, sess, domain.OpFeedbackSubmit, base.Add(time.Second))

	// Nobody registered an applier for this kind; with a single allowed
	// attempt it fails terminally on the first run.
	opUnknown := &domain.SyncOperation{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		Kind:       "mystery",
		MaxRetries: 1,
		CreatedAt:  base.Add(2 * time.Second),
		UpdatedAt:  base.Add(2 * time.Second),
	}
	if err := st.SyncOps().Enqueue(ctx, opUnknown); err != nil {
		t.Fatalf("seed unknown op: %v", err)
	}

	res, err := svc.ProcessQueue(ctx, sess.ID)
	if err != nil {
		t.Fatalf("process queue returned error: %v", err)
	}
	if res.Processed != 3 || res.Synced != 1 || res.Retried != 1 || res.Failed != 1 {
		t.Fatalf("got processed=%d synced=%d retried=%d failed=%d, want 3/1/1/1",
			res.Processed, res.Synced, res.Retried, res.Failed)
	}
	if len(res.Results) != 3 || res.Results[0].ID != opOK.ID || res.Results[1].ID != opRetry.ID || res.Results[2].ID != opUnknown.ID {
		t.Fatalf("results out of order: %+v", res.Results)
	}
	if res.Results[1].Error != "upstream 503" {
		t.Fatalf("retry result error = %q", res.Results[1].Error)
	}
	if !strings.Contains(res.Results[2].Error, "unknown sync operation kind") {
		t.Fatalf("unknown-kind result error = %q", res.Results[2].Error)
	}
	if res.SyncedAt.IsZero() {
		t.Fatal("run result is missing the sync stamp")
	}

	got, err := st.SyncOps().Get(ctx, opRetry.ID)
	if err != nil {
		t.Fatalf("get retried op: %v", err)
	}
	if got.Status != domain.SyncPending || got.RetryCount != 1 || got.LastError == nil {
		t.Fatalf("retried op = %s count=%d, want pending with one consumed attempt", got.Status, got.RetryCount)
	}

	got, err = st.SyncOps().Get(ctx, opUnknown.ID)
	if err != nil {
		t.Fatalf("get failed op: %v", err)
	}
	if got.Status != domain.SyncFailed || !got.Terminal() {
		t.Fatalf("unknown-kind op = %s, want terminal failure", got.Status)
	}

	fresh, err := st.Sessions().Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if fresh.LastSyncAt == nil {
		t.Fatal("drain must stamp the session's last sync")
	}
}

func TestProcessQueueRetriesUntilExhausted(t *testing.T) {
	st := openStore(t)
	bad := &stubApplier{kind: domain.OpBookingCancel, err: errors.New("conflict")}
	svc := newTestSync(t, st, bad)
	ctx := context.Background()

	sess := seedSession(t, st, uuid.New(), "device-1", "", domain.PlatformIOS, true)
	op := &domain.SyncOperation{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		Kind:       domain.OpBookingCancel,
		MaxRetries: 2,
		CreatedAt:  time.Now().UTC().Add(-time.Minute),
		UpdatedAt:  time.Now().UTC().Add(-time.Minute),
	}
	if err := st.SyncOps().Enqueue(ctx, op); err != nil {
		t.Fatalf("seed op: %v", err)
	}

	res, err := svc.ProcessQueue(ctx, sess.ID)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if res.Retried != 1 || res.Failed != 0 {
		t.Fatalf("first run got retried=%d failed=%d, want 1/0", res.Retried, res.Failed)
	}

	res, err = svc.ProcessQueue(ctx, sess.ID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Retried != 0 || res.Failed != 1 {
		t.Fatalf("second run got retried=%d failed=%d, want 0/1", res.Retried, res.Failed)
	}

	got, err := st.SyncOps().Get(ctx, op.ID)
	if err != nil {
		t.Fatalf("get op: %v", err)
	}
	if got.Status != domain.SyncFailed || got.RetryCount != 2 {
		t.Fatalf("op = %s count=%d, want failed after exactly two attempts", got.Status, got.RetryCount)
	}
	if len(bad.applied) != 2 {
		t.Fatalf("applier ran %d times, want 2", len(bad.applied))
	}
}

func TestProcessQueueAdoptsStaleSyncing(t *testing.T) {
	st := openStore(t)
	ok := &stubApplier{kind: domain.OpLessonProgress}
	svc := newTestSync(t, st, ok)
	ctx := context.Background()

	sess := seedSession(t, st, uuid.New(), "device-1", "", domain.PlatformIOS, true)
	past := time.Now().UTC().Add(-time.Hour)
	stale := &domain.SyncOperation{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Kind:      domain.OpLessonProgress,
		Status:    domain.SyncSyncing,
		CreatedAt: past,
		UpdatedAt: past,
	}
	if err := st.SyncOps().Enqueue(ctx, stale); err != nil {
		t.Fatalf("seed stale op: %v", err)
	}

	res, err := svc.ProcessQueue(ctx, sess.ID)
	if err != nil {
		t.Fatalf("process queue returned error: %v", err)
	}
	if res.Synced != 1 {
		t.Fatalf("got synced=%d, want the abandoned op adopted and finished", res.Synced)
	}

	got, err := st.SyncOps().Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("get op: %v", err)
	}
	if got.Status != domain.SyncSynced {
		t.Fatalf("op status = %s, want synced", got.Status)
	}
}

func TestProcessQueueSessionGate(t *testing.T) {
	st := openStore(t)
	svc := newTestSync(t, st)
	ctx := context.Background()

	if _, err := svc.ProcessQueue(ctx, uuid.New()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	loggedOut := seedSession(t, st, uuid.New(), "device-1", "", domain.PlatformIOS, false)
	if _, err := svc.ProcessQueue(ctx, loggedOut.ID); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}
}

func TestProcessQueueInterruptedMidRun(t *testing.T) {
	st := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := &stubApplier{kind: domain.OpQuizAttempt, applyFn: func(op domain.SyncOperation) error {
		cancel()
		return context.Canceled
	}}
	svc := newTestSync(t, st, interrupt)

	sess := seedSession(t, st, uuid.New(), "device-1", "", domain.PlatformIOS, true)
	base := time.Now().UTC().Add(-time.Minute)
	first := seedOp(t, st, sess, domain.OpQuizAttempt, base)
	second := seedOp(t, st, sess, domain.OpQuizAttempt, base.Add(time.Second))

	res, err := svc.ProcessQueue(ctx, sess.ID)
	if err != nil {
		t.Fatalf("process queue returned error: %v", err)
	}
	if res.Processed != 1 || res.Synced != 0 || res.Retried != 0 || res.Failed != 0 {
		t.Fatalf("got %+v, want the run cut after the first op", res)
	}
	if len(interrupt.applied) != 1 {
		t.Fatalf("applier ran %d times, want 1", len(interrupt.applied))
	}

	got, err := st.SyncOps().Get(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("get interrupted op: %v", err)
	}
	if got.Status != domain.SyncSyncing {
		t.Fatalf("interrupted op = %s, want left in syncing for the next run", got.Status)
	}

	got, err = st.SyncOps().Get(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("get untouched op: %v", err)
	}
	if got.Status != domain.SyncPending {
		t.Fatalf("untouched op = %s, want still pending", got.Status)
	}
}

func TestSyncStatusCounts(t *testing.T) {
	st := openStore(t)
	svc := newTestSync(t, st)
	ctx := context.Background()

	sess := seedSession(t, st, uuid.New(), "device-1", "", domain.PlatformIOS, true)
	base := time.Now().UTC().Add(-time.Minute)
	seedOp(t, st, sess, domain.OpBookingCreate, base)
	seedOp(t, st, sess, domain.OpBookingCreate, base.Add(time.Second))
	failed := seedOp(t, st, sess, domain.OpBookingCancel, base)
	if err := st.SyncOps().MarkFailed(ctx, failed.ID, base, "gave up"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	synced := seedOp(t, st, sess, domain.OpQuizAttempt, base)
	if err := st.SyncOps().MarkSynced(ctx, synced.ID, base); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	stat, err := svc.Status(ctx, sess.ID)
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	if stat.PendingCount != 2 || stat.FailedCount != 1 {
		t.Fatalf("got pending=%d failed=%d, want 2/1", stat.PendingCount, stat.FailedCount)
	}
	if stat.LastSyncAt != nil {
		t.Fatalf("got last sync %v, want nil before any drain", stat.LastSyncAt)
	}

	if _, err := svc.Status(ctx, uuid.New()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
