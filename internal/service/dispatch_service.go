package service

import (
	"context"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
	"github.com/wagmicrew/TFX-APP-sub001/internal/expo"
)

// PushGateway is the slice of the push provider the engine needs. The expo
// client satisfies it; tests substitute a recorder.
type PushGateway interface {
	SendMessages(ctx context.Context, msgs []expo.Message) ([]expo.Ticket, error)
	GetReceipts(ctx context.Context, ids []string) (map[string]expo.Receipt, error)
}

// DispatchService fans push messages out to registered sessions through the
// push gateway and keeps the audit trail of every invocation.
type DispatchService interface {
	DispatchToUser(ctx context.Context, userID domain.UserID, msg dto.PushMessage) (dto.DispatchResult, error)
	DispatchToDevice(ctx context.Context, token string, msg dto.PushMessage) (dto.DispatchResult, error)
	DispatchToAll(ctx context.Context, msg dto.PushMessage) (dto.DispatchResult, error)
	DispatchToPlatform(ctx context.Context, platform domain.Platform, msg dto.PushMessage) (dto.DispatchResult, error)

	// ReconcileReceipts resolves settled gateway receipts for past
	// dispatches and drops registrations the gateway reports dead. Safe to
	// run repeatedly.
	ReconcileReceipts(ctx context.Context) (dto.ReconcileResult, error)

	// Close waits for best-effort audit writes still in flight.
	Close()
}
