package service

import (
	"context"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
)

// SyncService accepts client-queued offline mutations and replays them in
// order. Processing for a given session is serialized; distinct sessions
// drain concurrently.
type SyncService interface {
	Enqueue(ctx context.Context, sessionID domain.SessionID, userID domain.UserID, ops []dto.SyncOperationInput) (dto.EnqueueData, error)
	ProcessQueue(ctx context.Context, sessionID domain.SessionID) (dto.SyncRunResult, error)
	Status(ctx context.Context, sessionID domain.SessionID) (dto.SyncStatusData, error)
}

// OperationApplier executes one operation kind against the platform. The
// processor resolves appliers by Kind; a kind nobody registered fails the
// operation instead of dropping it.
type OperationApplier interface {
	Kind() string
	Apply(ctx context.Context, op domain.SyncOperation) error
}
