package service

import (
	"context"

	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/dto"
)

// SessionService owns the registry of device logins: creation at login,
// push-token binding, logout, forced kick and expiry sweeping.
type SessionService interface {
	Register(ctx context.Context, req dto.RegisterSessionRequest) (*domain.Session, error)
	Get(ctx context.Context, id domain.SessionID) (*domain.Session, error)
	AttachPushToken(ctx context.Context, id domain.SessionID, token string, platform domain.Platform) error
	Logout(ctx context.Context, id domain.SessionID) error

	// Kick force-logs-out the session: deactivates it, pins a
	// session_kicked notice to it for the next poll, and best-effort pushes
	// a heads-up to the device.
	Kick(ctx context.Context, id domain.SessionID, reason string) error

	TouchActivity(ctx context.Context, id domain.SessionID)
	ExpireStale(ctx context.Context) (int64, error)
}
