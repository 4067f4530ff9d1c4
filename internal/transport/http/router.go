package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	obsmw "github.com/wagmicrew/TFX-APP-sub001/internal/observability/middleware"
)

// NewRouter assembles the full middleware chain and route table.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(httprate.LimitByIP(100, 1*time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id", "X-Admin-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(obsmw.WithRequestAndTrace)
	r.Use(obsmw.WithMetrics)

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// A kicked or expired session may still poll, acknowledge reads
		// and log out; that is how the device learns it was terminated.
		r.Group(func(r chi.Router) {
			r.Use(h.requireSession(false))
			r.Get("/notifications/poll", h.handlePoll)
			r.Post("/notifications/read", h.handleMarkRead)
			r.Post("/sessions/logout", h.handleLogout)
			r.Get("/sync/status", h.handleSyncStatus)
		})

		// Mutations require a live session.
		r.Group(func(r chi.Router) {
			r.Use(h.requireSession(true))
			r.Post("/sessions/push-token", h.handlePushToken)
			r.Post("/sync/queue", h.handleSyncQueue)
			r.Post("/sync/process", h.handleSyncProcess)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/notifications/dispatch", h.handleAdminDispatch)
			r.Post("/sessions", h.handleAdminRegisterSession)
			r.Post("/sessions/{sessionID}/kick", h.handleAdminKick)
			r.Get("/push-records", h.handleAdminPushRecords)
			r.Get("/sync/{sessionID}/status", h.handleAdminSyncStatus)
		})
	})

	return r
}
