package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
	"github.com/wagmicrew/TFX-APP-sub001/internal/observability/metrics"
	"github.com/wagmicrew/TFX-APP-sub001/internal/service"
	"github.com/wagmicrew/TFX-APP-sub001/internal/store"

	"github.com/google/uuid"
)

var _ service.SyncService = (*SyncServiceImpl)(nil)

type SyncServiceImpl struct {
	Store    *store.Store
	Appliers map[string]service.OperationApplier
	Log      *slog.Logger

	now func() time.Time

	mu    sync.Mutex
	locks map[domain.SessionID]*sync.Mutex
}

func NewSyncServiceImpl(st *store.Store, appliers []service.OperationApplier, log *slog.Logger) (*SyncServiceImpl, error) {
	byKind := make(map[string]service.OperationApplier, len(appliers))
	for _, a := range appliers {
		if _, dup := byKind[a.Kind()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateApplier, a.Kind())
		}
		byKind[a.Kind()] = a
	}
	return &SyncServiceImpl{
		Store:    st,
		Appliers: byKind,
		Log:      log,
		now:      time.Now,
		locks:    make(map[domain.SessionID]*sync.Mutex),
	}, nil
}

// sessionLock serializes queue runs per session. Distinct sessions drain
// concurrently.
func (s *SyncServiceImpl) sessionLock(id domain.SessionID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

func (s *SyncServiceImpl) Enqueue(ctx context.Context, sessionID domain.SessionID, userID domain.UserID, ops []dto.SyncOperationInput) (dto.EnqueueData, error) {
	if len(ops) == 0 {
		return dto.EnqueueData{}, ErrNoOperations
	}
	sess, err := s.Store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return dto.EnqueueData{}, err
	}
	if !sess.Active || sess.Expired(s.now()) {
		return dto.EnqueueData{}, domain.ErrSessionInactive
	}

	now := s.now().UTC()
	out := dto.EnqueueData{IDs: make([]uuid.UUID, 0, len(ops))}
	for _, in := range ops {
		if in.Kind == "" {
			return out, ErrEmptyKind
		}
		op := &domain.SyncOperation{
			SessionID:  sessionID,
			UserID:     userID,
			Kind:       in.Kind,
			Payload:    []byte(in.Payload),
			Status:     domain.SyncPending,
			MaxRetries: in.MaxRetries,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.Store.SyncOps().Enqueue(ctx, op); err != nil {
			return out, fmt.Errorf("enqueue %s: %w", in.Kind, err)
		}
		out.Queued++
		out.IDs = append(out.IDs, op.ID)
	}
	s.Log.Info("sync operations queued", "session_id", sessionID, "count", out.Queued)
	return out, nil
}

// ProcessQueue drains the session's queue oldest first, one operation at a
// time. A failing operation is parked for retry or terminally failed and
// never stops the drain. The session's last-sync stamp moves after every
// drain, successful or not, marking when a sync was last attempted.
func (s *SyncServiceImpl) ProcessQueue(ctx context.Context, sessionID domain.SessionID) (dto.SyncRunResult, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.Store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return dto.SyncRunResult{}, err
	}
	if !sess.Active || sess.Expired(s.now()) {
		return dto.SyncRunResult{}, domain.ErrSessionInactive
	}

	ops, err := s.Store.SyncOps().Due(ctx, sessionID)
	if err != nil {
		return dto.SyncRunResult{}, fmt.Errorf("load due operations: %w", err)
	}

	var res dto.SyncRunResult
	res.Results = make([]dto.OperationResult, 0, len(ops))

	for _, op := range ops {
		if ctx.Err() != nil {
			// The host gave up; whatever is left stays pending and the
			// current op remains syncing for the next run to adopt.
			break
		}
		startAt := s.now().UTC()
		if err := s.Store.SyncOps().MarkSyncing(ctx, op.ID, startAt); err != nil {
			return res, fmt.Errorf("mark syncing: %w", err)
		}

		applyErr := s.apply(ctx, op)
		res.Processed++

		if applyErr == nil {
			if err := s.Store.SyncOps().MarkSynced(ctx, op.ID, s.now().UTC()); err != nil {
				return res, fmt.Errorf("mark synced: %w", err)
			}
			res.Synced++
			res.Results = append(res.Results, dto.OperationResult{ID: op.ID, Kind: op.Kind, Status: string(domain.SyncSynced)})
			metrics.SyncOperationsTotal.WithLabelValues(op.Kind, "synced").Inc()
			continue
		}

		if ctx.Err() != nil && errors.Is(applyErr, ctx.Err()) {
			// Interrupted, not rejected: leave it in syncing for pickup.
			break
		}

		msg := applyErr.Error()
		if op.RetriesLeft() {
			if err := s.Store.SyncOps().MarkRetry(ctx, op.ID, s.now().UTC(), msg); err != nil {
				return res, fmt.Errorf("mark retry: %w", err)
			}
			res.Retried++
			res.Results = append(res.Results, dto.OperationResult{ID: op.ID, Kind: op.Kind, Status: string(domain.SyncPending), Error: msg})
			metrics.SyncOperationsTotal.WithLabelValues(op.Kind, "retried").Inc()
			s.Log.Warn("sync operation parked for retry", "op_id", op.ID, "kind", op.Kind, "attempt", op.RetryCount+1, "error", applyErr)
			continue
		}

		if err := s.Store.SyncOps().MarkFailed(ctx, op.ID, s.now().UTC(), msg); err != nil {
			return res, fmt.Errorf("mark failed: %w", err)
		}
		res.Failed++
		res.Results = append(res.Results, dto.OperationResult{ID: op.ID, Kind: op.Kind, Status: string(domain.SyncFailed), Error: msg})
		metrics.SyncOperationsTotal.WithLabelValues(op.Kind, "failed").Inc()
		s.Log.Error("sync operation failed terminally", "op_id", op.ID, "kind", op.Kind, "attempts", op.RetryCount+1, "error", applyErr)
	}

	syncedAt := s.now().UTC()
	if err := s.Store.Sessions().SetLastSync(ctx, sessionID, syncedAt); err != nil {
		s.Log.Error("last-sync stamp failed", "session_id", sessionID, "error", err)
	}
	res.SyncedAt = syncedAt

	return res, nil
}

func (s *SyncServiceImpl) apply(ctx context.Context, op domain.SyncOperation) error {
	applier, ok := s.Appliers[op.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownOperation, op.Kind)
	}
	return applier.Apply(ctx, op)
}

func (s *SyncServiceImpl) Status(ctx context.Context, sessionID domain.SessionID) (dto.SyncStatusData, error) {
	sess, err := s.Store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return dto.SyncStatusData{}, err
	}
	pending, err := s.Store.SyncOps().CountByStatus(ctx, sessionID, domain.SyncPending)
	if err != nil {
		return dto.SyncStatusData{}, fmt.Errorf("count pending: %w", err)
	}
	failed, err := s.Store.SyncOps().CountByStatus(ctx, sessionID, domain.SyncFailed)
	if err != nil {
		return dto.SyncStatusData{}, fmt.Errorf("count failed: %w", err)
	}
	return dto.SyncStatusData{
		PendingCount: pending,
		FailedCount:  failed,
		LastSyncAt:   sess.LastSyncAt,
	}, nil
}
