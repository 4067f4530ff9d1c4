// Package http is the service's HTTP surface: the /v1 API the mobile
// client polls and syncs against, the operator endpoints, and the health
// and metrics plumbing.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/wagmicrew/TFX-APP-sub001/internal/authz"
	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	"github.com/wagmicrew/TFX-APP-sub001/internal/service"
)

type recordLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.PushRecord, error)
}

type Handler struct {
	Tokens        authz.TokenValidator
	Sessions      service.SessionService
	Notifications service.NotificationService
	Sync          service.SyncService
	Records       recordLister

	// AdminKeyHash is the provisioned argon2id hash; empty hides the
	// operator surface.
	AdminKeyHash string

	CORSOrigins []string

	// ReadyChecks gate /readyz; each gets a short deadline.
	ReadyChecks map[string]func(context.Context) error

	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	for name, check := range h.ReadyChecks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			writeErr(w, http.StatusServiceUnavailable, "not_ready", name+" unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
