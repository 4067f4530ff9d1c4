package store_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/store"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

func seedRecord(t *testing.T, ps *store.PushRecordStore, status domain.DispatchStatus, createdAt time.Time) *domain.PushRecord {
	t.Helper()

	sent, failed := 2, 0
	switch status {
	case domain.DispatchPartial:
		sent, failed = 1, 1
	case domain.DispatchFailed:
		sent, failed = 0, 2
	}
	r := &domain.PushRecord{
		TargetKind: domain.TargetAll,
		Title:      "Schedule update",
		Body:       "Your lesson on Friday moved to 14:00.",
		Recipients: sent + failed,
		Sent:       sent,
		Failed:     failed,
		Status:     status,
		CreatedAt:  createdAt,
	}
	if err := ps.Create(context.Background(), r); err != nil {
		t.Fatalf("create push record: %v", err)
	}
	return r
}

func TestPushRecordCreateAndGet(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	ps := st.PushRecords()

	r := seedRecord(t, ps, domain.DispatchSent, time.Now().UTC())
	if r.ID == uuid.Nil {
		t.Fatal("create left record id unset")
	}

	got, err := ps.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != r.Title || got.Status != domain.DispatchSent {
		t.Fatalf("got title=%q status=%q, want title=%q status=%q", got.Title, got.Status, r.Title, domain.DispatchSent)
	}
	if got.Sent != 2 || got.Failed != 0 {
		t.Fatalf("counters sent=%d failed=%d, want 2/0", got.Sent, got.Failed)
	}
}

func TestListRecentNewestFirst(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	ps := st.PushRecords()

	base := time.Now().UTC().Add(-time.Hour)
	seedRecord(t, ps, domain.DispatchSent, base)
	middle := seedRecord(t, ps, domain.DispatchPartial, base.Add(10*time.Minute))
	newest := seedRecord(t, ps, domain.DispatchFailed, base.Add(20*time.Minute))

	rows, err := ps.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ID != newest.ID || rows[1].ID != middle.ID {
		t.Fatalf("got order [%s %s], want newest first", rows[0].ID, rows[1].ID)
	}

	all, err := ps.ListRecent(ctx, 0)
	if err != nil {
		t.Fatalf("list recent default limit: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("default limit returned %d rows, want 3", len(all))
	}
}

func TestDueForReceiptCheckWindow(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	ps := st.PushRecords()

	now := time.Now().UTC()
	settledBefore := now.Add(-15 * time.Minute)
	notBefore := now.Add(-24 * time.Hour)

	dueSent := seedRecord(t, ps, domain.DispatchSent, now.Add(-2*time.Hour))
	duePartial := seedRecord(t, ps, domain.DispatchPartial, now.Add(-time.Hour))

	// Out of scope: too fresh to have settled, past the lookback horizon,
	// failed outright so there are no receipts, and already reconciled.
	seedRecord(t, ps, domain.DispatchSent, now.Add(-5*time.Minute))
	seedRecord(t, ps, domain.DispatchSent, now.Add(-48*time.Hour))
	seedRecord(t, ps, domain.DispatchFailed, now.Add(-2*time.Hour))
	checked := seedRecord(t, ps, domain.DispatchSent, now.Add(-3*time.Hour))
	if err := ps.MarkReceiptsChecked(ctx, checked.ID, now, nil); err != nil {
		t.Fatalf("mark receipts checked: %v", err)
	}

	due, err := ps.DueForReceiptCheck(ctx, settledBefore, notBefore, 0)
	if err != nil {
		t.Fatalf("due for receipt check: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("got %d due records, want 2", len(due))
	}
	if due[0].ID != dueSent.ID || due[1].ID != duePartial.ID {
		t.Fatalf("got order [%s %s], want oldest first", due[0].ID, due[1].ID)
	}

	capped, err := ps.DueForReceiptCheck(ctx, settledBefore, notBefore, 1)
	if err != nil {
		t.Fatalf("due with limit: %v", err)
	}
	if len(capped) != 1 || capped[0].ID != dueSent.ID {
		t.Fatalf("limit 1 returned %d rows, want just the oldest", len(capped))
	}
}

func TestMarkReceiptsChecked(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	ps := st.PushRecords()

	now := time.Now().UTC()
	r := seedRecord(t, ps, domain.DispatchPartial, now.Add(-time.Hour))

	diag := datatypes.JSON(`[{"ticketId":"t-1","error":"DeviceNotRegistered"}]`)
	if err := ps.MarkReceiptsChecked(ctx, r.ID, now, diag); err != nil {
		t.Fatalf("mark receipts checked: %v", err)
	}

	got, err := ps.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReceiptsCheckedAt == nil {
		t.Fatal("receipts_checked_at not stamped")
	}
	if !strings.Contains(string(got.ReceiptErrors), "DeviceNotRegistered") {
		t.Fatalf("receipt errors = %s, want diagnostics persisted", got.ReceiptErrors)
	}
	if got.Sent != r.Sent || got.Failed != r.Failed || got.Status != r.Status {
		t.Fatalf("dispatch counters changed: sent=%d failed=%d status=%q", got.Sent, got.Failed, got.Status)
	}

	clean := seedRecord(t, ps, domain.DispatchSent, now.Add(-time.Hour))
	if err := ps.MarkReceiptsChecked(ctx, clean.ID, now, nil); err != nil {
		t.Fatalf("mark receipts checked without diagnostics: %v", err)
	}
	got, err = ps.Get(ctx, clean.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReceiptsCheckedAt == nil {
		t.Fatal("receipts_checked_at not stamped")
	}
	if len(got.ReceiptErrors) != 0 {
		t.Fatalf("receipt errors = %s, want empty", got.ReceiptErrors)
	}
}
