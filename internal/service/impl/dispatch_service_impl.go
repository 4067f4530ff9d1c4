package impl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
	"github.com/wagmicrew/TFX-APP-sub001/internal/expo"
	"github.com/wagmicrew/TFX-APP-sub001/internal/observability/metrics"
	"github.com/wagmicrew/TFX-APP-sub001/internal/service"
	"github.com/wagmicrew/TFX-APP-sub001/internal/store"
)

var _ service.DispatchService = (*DispatchServiceImpl)(nil)
var _ service.PushGateway = (*expo.Client)(nil)

// DispatchConfig carries the engine knobs. Zero values select the defaults.
type DispatchConfig struct {
	BatchSize          int           // gateway messages per request, capped at the API limit
	ReceiptSettle      time.Duration // how long tickets need before receipts are queried
	ReceiptLookback    time.Duration // how far back reconciliation looks for unchecked records
	RecordWriteTimeout time.Duration // timeout for the detached audit write
}

func (c *DispatchConfig) applyDefaults() {
	if c.BatchSize <= 0 || c.BatchSize > expo.MaxBatch {
		c.BatchSize = expo.MaxBatch
	}
	if c.ReceiptSettle <= 0 {
		c.ReceiptSettle = 15 * time.Minute
	}
	if c.ReceiptLookback <= 0 {
		c.ReceiptLookback = 24 * time.Hour
	}
	if c.RecordWriteTimeout <= 0 {
		c.RecordWriteTimeout = 5 * time.Second
	}
}

type tokenDirectory interface {
	TokensForAll(ctx context.Context, now time.Time) ([]string, error)
	TokensForUser(ctx context.Context, userID domain.UserID, now time.Time) ([]string, error)
	TokensForPlatform(ctx context.Context, platform domain.Platform, now time.Time) ([]string, error)
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	ClearToken(ctx context.Context, token string) (int64, error)
}

type recordLog interface {
	Create(ctx context.Context, r *domain.PushRecord) error
	DueForReceiptCheck(ctx context.Context, settledBefore, notBefore time.Time, limit int) ([]domain.PushRecord, error)
	MarkReceiptsChecked(ctx context.Context, id domain.RecordID, at time.Time, diagnostics []byte) error
}

type DispatchServiceImpl struct {
	Tokens  tokenDirectory
	Records recordLog
	Gateway service.PushGateway
	Log     *slog.Logger

	cfg DispatchConfig
	now func() time.Time
	wg  sync.WaitGroup
}

func NewDispatchServiceImpl(st *store.Store, gateway service.PushGateway, log *slog.Logger, cfg DispatchConfig) *DispatchServiceImpl {
	cfg.applyDefaults()
	return &DispatchServiceImpl{
		Tokens:  st.Sessions(),
		Records: recordStoreAdapter{st.PushRecords()},
		Gateway: gateway,
		Log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// recordStoreAdapter narrows the diagnostics parameter to plain bytes so
// stubs don't need the datatypes import.
type recordStoreAdapter struct{ s *store.PushRecordStore }

func (a recordStoreAdapter) Create(ctx context.Context, r *domain.PushRecord) error {
	return a.s.Create(ctx, r)
}

func (a recordStoreAdapter) DueForReceiptCheck(ctx context.Context, settledBefore, notBefore time.Time, limit int) ([]domain.PushRecord, error) {
	return a.s.DueForReceiptCheck(ctx, settledBefore, notBefore, limit)
}

func (a recordStoreAdapter) MarkReceiptsChecked(ctx context.Context, id domain.RecordID, at time.Time, diagnostics []byte) error {
	return a.s.MarkReceiptsChecked(ctx, id, at, diagnostics)
}

func (d *DispatchServiceImpl) DispatchToUser(ctx context.Context, userID domain.UserID, msg dto.PushMessage) (dto.DispatchResult, error) {
	tokens, err := d.Tokens.TokensForUser(ctx, userID, d.now())
	if err != nil {
		return dto.DispatchResult{}, fmt.Errorf("resolve user targets: %w", err)
	}
	id := userID.String()
	return d.dispatch(ctx, domain.TargetUser, &id, nil, tokens, msg), nil
}

// DispatchToDevice pushes to one raw token. A token no active session owns
// is counted as a delivery failure so dead registrations stay visible.
func (d *DispatchServiceImpl) DispatchToDevice(ctx context.Context, token string, msg dto.PushMessage) (dto.DispatchResult, error) {
	sess, err := d.Tokens.GetByToken(ctx, token)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return d.refuse(ctx, domain.TargetDevice, &token, nil, msg, "token is not registered to any session"), nil
	case err != nil:
		return dto.DispatchResult{}, fmt.Errorf("resolve device target: %w", err)
	case !sess.Pushable(d.now()):
		return d.refuse(ctx, domain.TargetDevice, &token, nil, msg, "session for token is inactive"), nil
	}
	return d.dispatch(ctx, domain.TargetDevice, &token, nil, []string{token}, msg), nil
}

func (d *DispatchServiceImpl) DispatchToAll(ctx context.Context, msg dto.PushMessage) (dto.DispatchResult, error) {
	tokens, err := d.Tokens.TokensForAll(ctx, d.now())
	if err != nil {
		return dto.DispatchResult{}, fmt.Errorf("resolve broadcast targets: %w", err)
	}
	return d.dispatch(ctx, domain.TargetAll, nil, nil, tokens, msg), nil
}

func (d *DispatchServiceImpl) DispatchToPlatform(ctx context.Context, platform domain.Platform, msg dto.PushMessage) (dto.DispatchResult, error) {
	if !platform.IsValid() {
		return dto.DispatchResult{}, domain.ErrInvalidPlatform
	}
	tokens, err := d.Tokens.TokensForPlatform(ctx, platform, d.now())
	if err != nil {
		return dto.DispatchResult{}, fmt.Errorf("resolve platform targets: %w", err)
	}
	return d.dispatch(ctx, domain.TargetPlatform, nil, &platform, tokens, msg), nil
}

// ticketRef pins an accepted ticket to the token it was issued for, so
// reconciliation can find the owner even when the receipt omits it.
type ticketRef struct {
	ID string `json:"id"`
	To string `json:"to"`
}

// refuse records a dispatch that never reached the gateway as a single
// delivery failure.
func (d *DispatchServiceImpl) refuse(ctx context.Context, kind domain.TargetKind, targetID *string, platform *domain.Platform, msg dto.PushMessage, reason string) dto.DispatchResult {
	res := dto.DispatchResult{Failed: 1, Errors: []string{reason}}
	d.finish(ctx, kind, targetID, platform, msg, 1, res, nil)
	return res
}

func (d *DispatchServiceImpl) dispatch(ctx context.Context, kind domain.TargetKind, targetID *string, platform *domain.Platform, tokens []string, msg dto.PushMessage) dto.DispatchResult {
	tokens = dedupe(tokens)

	var res dto.DispatchResult
	if len(tokens) == 0 {
		res.Errors = []string{"no active push targets"}
		d.finish(ctx, kind, targetID, platform, msg, 0, res, nil)
		return res
	}

	var tickets []ticketRef
	for start := 0; start < len(tokens); start += d.cfg.BatchSize {
		end := start + d.cfg.BatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]

		batch := make([]expo.Message, 0, len(chunk))
		for _, to := range chunk {
			batch = append(batch, expo.Message{
				To:        to,
				Title:     msg.Title,
				Body:      msg.Body,
				Data:      msg.Data,
				Sound:     msg.Sound,
				Badge:     msg.Badge,
				ChannelID: msg.ChannelID,
				Priority:  msg.Priority,
				TTL:       msg.TTL,
			})
		}

		got, err := d.Gateway.SendMessages(ctx, batch)
		if err != nil {
			// The whole chunk is lost; later chunks still get their try.
			res.Failed += len(chunk)
			res.Errors = append(res.Errors, fmt.Sprintf("batch %d-%d: %v", start, end-1, err))
			d.Log.Error("push batch failed", "target", kind, "batch_start", start, "size", len(chunk), "error", err)
			continue
		}
		for i, t := range got {
			if t.OK() {
				res.Sent++
				tickets = append(tickets, ticketRef{ID: t.ID, To: chunk[i]})
				continue
			}
			res.Failed++
			reason := t.Message
			if t.Details != nil && t.Details.Error != "" {
				reason = t.Details.Error + ": " + reason
			}
			res.Errors = append(res.Errors, reason)
		}
	}

	d.finish(ctx, kind, targetID, platform, msg, len(tokens), res, tickets)
	return res
}

// finish settles metrics and hands the audit row to the detached writer.
// The write must never block or fail the dispatch itself.
func (d *DispatchServiceImpl) finish(ctx context.Context, kind domain.TargetKind, targetID *string, platform *domain.Platform, msg dto.PushMessage, recipients int, res dto.DispatchResult, tickets []ticketRef) {
	status := domain.DispatchStatusFor(res.Sent, res.Failed)
	metrics.DispatchesTotal.WithLabelValues(string(kind), string(status)).Inc()
	metrics.PushMessagesTotal.WithLabelValues("sent").Add(float64(res.Sent))
	metrics.PushMessagesTotal.WithLabelValues("failed").Add(float64(res.Failed))

	rec := &domain.PushRecord{
		TargetKind: kind,
		TargetID:   targetID,
		Platform:   platform,
		Title:      msg.Title,
		Body:       msg.Body,
		Data:       []byte(msg.Data),
		Recipients: recipients,
		Sent:       res.Sent,
		Failed:     res.Failed,
		Status:     status,
		CreatedAt:  d.now().UTC(),
	}
	if len(tickets) > 0 {
		if b, err := json.Marshal(tickets); err == nil {
			rec.TicketIDs = b
		}
	}
	if len(res.Errors) > 0 {
		if b, err := json.Marshal(res.Errors); err == nil {
			rec.Errors = b
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		wctx, cancel := context.WithTimeout(context.Background(), d.cfg.RecordWriteTimeout)
		defer cancel()
		if err := d.Records.Create(wctx, rec); err != nil {
			d.Log.Error("push record write failed", "target", kind, "status", status, "error", err)
		}
	}()
}

// Close waits for audit writes still in flight. Call on shutdown and in
// tests before asserting on records.
func (d *DispatchServiceImpl) Close() { d.wg.Wait() }

// ReconcileReceipts resolves receipts for unchecked records. Records whose
// receipts are not all settled yet, or whose gateway call failed, stay
// unchecked for the next pass; everything it does is safe to repeat.
func (d *DispatchServiceImpl) ReconcileReceipts(ctx context.Context) (dto.ReconcileResult, error) {
	now := d.now()
	var res dto.ReconcileResult

	records, err := d.Records.DueForReceiptCheck(ctx, now.Add(-d.cfg.ReceiptSettle), now.Add(-d.cfg.ReceiptLookback), 100)
	if err != nil {
		return res, fmt.Errorf("select records for receipt check: %w", err)
	}

	for _, rec := range records {
		var refs []ticketRef
		if len(rec.TicketIDs) > 0 {
			if err := json.Unmarshal(rec.TicketIDs, &refs); err != nil {
				d.Log.Error("push record has malformed ticket ids", "record_id", rec.ID, "error", err)
				refs = nil
			}
		}
		if len(refs) == 0 {
			// Nothing was accepted by the gateway, so there is nothing to
			// reconcile; stamp it so it drops out of the queue.
			if err := d.Records.MarkReceiptsChecked(ctx, rec.ID, now, nil); err != nil {
				d.Log.Error("receipt stamp failed", "record_id", rec.ID, "error", err)
			} else {
				res.RecordsChecked++
			}
			continue
		}

		receipts, ok := d.fetchReceipts(ctx, refs)
		if !ok {
			res.Deferred++
			continue
		}

		settled := true
		var diags []receiptDiag
		for _, ref := range refs {
			rcpt, found := receipts[ref.ID]
			if !found {
				settled = false
				continue
			}
			if rcpt.OK() {
				res.ReceiptsOK++
				metrics.ReceiptChecksTotal.WithLabelValues("ok").Inc()
				continue
			}
			res.ReceiptsFailed++
			metrics.ReceiptChecksTotal.WithLabelValues("error").Inc()
			diag := receiptDiag{TicketID: ref.ID, Message: rcpt.Message}
			if rcpt.Details != nil {
				diag.Error = rcpt.Details.Error
			}
			diags = append(diags, diag)

			if rcpt.DeviceGone() {
				token := ref.To
				if rcpt.Details != nil && rcpt.Details.ExpoPushToken != "" {
					token = rcpt.Details.ExpoPushToken
				}
				cleared, err := d.Tokens.ClearToken(ctx, token)
				if err != nil {
					d.Log.Error("dead token cleanup failed", "record_id", rec.ID, "error", err)
					continue
				}
				if cleared > 0 {
					res.TokensCleared += int(cleared)
					metrics.DeadTokensClearedTotal.WithLabelValues().Add(float64(cleared))
					d.Log.Info("dead push registration cleared", "record_id", rec.ID, "sessions", cleared)
				}
			}
		}

		if !settled {
			// Some receipts are still pending at the gateway; try the whole
			// record again next pass.
			res.Deferred++
			continue
		}

		var diagJSON []byte
		if len(diags) > 0 {
			diagJSON, _ = json.Marshal(diags)
		}
		if err := d.Records.MarkReceiptsChecked(ctx, rec.ID, now, diagJSON); err != nil {
			d.Log.Error("receipt stamp failed", "record_id", rec.ID, "error", err)
			continue
		}
		res.RecordsChecked++
	}

	return res, nil
}

type receiptDiag struct {
	TicketID string `json:"ticketId"`
	Error    string `json:"error,omitempty"`
	Message  string `json:"message,omitempty"`
}

// fetchReceipts gathers receipts for every ref, chunked to the gateway cap.
// Any transport failure voids the whole fetch so the record is retried.
func (d *DispatchServiceImpl) fetchReceipts(ctx context.Context, refs []ticketRef) (map[string]expo.Receipt, bool) {
	receipts := make(map[string]expo.Receipt, len(refs))
	for start := 0; start < len(refs); start += expo.MaxBatch {
		end := start + expo.MaxBatch
		if end > len(refs) {
			end = len(refs)
		}
		ids := make([]string, 0, end-start)
		for _, ref := range refs[start:end] {
			ids = append(ids, ref.ID)
		}
		got, err := d.Gateway.GetReceipts(ctx, ids)
		if err != nil {
			d.Log.Warn("receipt fetch failed, will retry", "count", len(ids), "error", err)
			return nil, false
		}
		for id, r := range got {
			receipts[id] = r
		}
	}
	return receipts, true
}

func dedupe(tokens []string) []string {
	if len(tokens) < 2 {
		return tokens
	}
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
