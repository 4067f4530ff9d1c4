package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncOperationInput is one client-queued mutation submitted for replay.
type SyncOperationInput struct {
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	MaxRetries int             `json:"maxRetries,omitempty"`
}

type EnqueueRequest struct {
	Operations []SyncOperationInput `json:"operations"`
}

type EnqueueData struct {
	Queued int         `json:"queued"`
	IDs    []uuid.UUID `json:"ids"`
}

// OperationResult is the per-operation outcome of a processing run.
type OperationResult struct {
	ID     uuid.UUID `json:"id"`
	Kind   string    `json:"kind"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// SyncRunResult reports one full drain of a session's queue.
type SyncRunResult struct {
	Processed int               `json:"processed"`
	Synced    int               `json:"synced"`
	Retried   int               `json:"retried"`
	Failed    int               `json:"failed"`
	Results   []OperationResult `json:"results"`
	SyncedAt  time.Time         `json:"syncedAt"`
}

// SyncStatusData is the queue-health snapshot for a session.
type SyncStatusData struct {
	PendingCount int64      `json:"pendingCount"`
	FailedCount  int64      `json:"failedCount"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
}
