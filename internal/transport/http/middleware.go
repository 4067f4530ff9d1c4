package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wagmicrew/TFX-APP-sub001/internal/authz"
	"github.com/wagmicrew/TFX-APP-sub001/internal/domain"
	obsmw "github.com/wagmicrew/TFX-APP-sub001/internal/observability/middleware"
)

type sessionCtxKey string

const ctxKeySession sessionCtxKey = "session"

func withSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

func sessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(ctxKeySession).(*domain.Session)
	return s, ok
}

// requireSession authenticates the bearer token, loads the session it names
// and stashes both on the context. With requireActive the session must also
// be live: sync and push registration refuse kicked or expired sessions,
// while poll and mark-read stay open so a kicked client can still learn why
// it was signed out.
func (h *Handler) requireSession(requireActive bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := obsmw.RequestIDFromContext(r.Context())

			raw := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(raw), "bearer ") {
				writeErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			tokStr := strings.TrimSpace(raw[len("Bearer "):])

			identity, err := h.Tokens.Validate(tokStr)
			if err != nil {
				slog.Warn("token rejected", "error", err, "request_id", reqID)
				writeErr(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			sess, err := h.Sessions.Get(r.Context(), identity.SessionID)
			if err != nil {
				slog.Warn("token names unknown session", "session_id", identity.SessionID, "request_id", reqID)
				writeErr(w, http.StatusUnauthorized, "unauthorized", "unknown session")
				return
			}
			if sess.UserID != identity.UserID {
				slog.Warn("token subject does not own session", "session_id", identity.SessionID, "request_id", reqID)
				writeErr(w, http.StatusUnauthorized, "unauthorized", "session mismatch")
				return
			}
			if requireActive && (!sess.Active || sess.Expired(h.now())) {
				writeErr(w, http.StatusConflict, "session_inactive", "session is no longer active")
				return
			}

			h.Sessions.TouchActivity(r.Context(), sess.ID)

			ctx := authz.WithIdentity(r.Context(), identity)
			ctx = withSession(ctx, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireAdmin guards the operator surface with the provisioned API key.
// Without a provisioned hash the surface does not exist.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.AdminKeyHash == "" {
			writeErr(w, http.StatusNotFound, "not_found", "not found")
			return
		}
		key := r.Header.Get("X-Admin-Key")
		if key == "" {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "missing admin key")
			return
		}
		ok, err := authz.VerifyAPIKey(h.AdminKeyHash, key)
		if err != nil {
			slog.Error("admin key hash unusable", "error", err)
			writeErr(w, http.StatusInternalServerError, "internal_error", "internal error")
			return
		}
		if !ok {
			slog.Warn("admin key rejected", "request_id", obsmw.RequestIDFromContext(r.Context()))
			writeErr(w, http.StatusForbidden, "forbidden", "invalid admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
