// Package http assembles the chi router: the shared middleware chain, the
// public surface, the session-guarded back office and the operational
// endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhandler "civreg/internal/admin/handler"
	certhandler "civreg/internal/certificate/handler"
	citizenhandler "civreg/internal/citizen/handler"
	"civreg/internal/platform/metrics"
	"civreg/internal/platform/middleware"
	taxhandler "civreg/internal/tax/handler"
	verifhandler "civreg/internal/verification/handler"
)

// Handlers bundles the module handlers the router mounts.
type Handlers struct {
	Citizen      *citizenhandler.Handler
	Certificate  *certhandler.Handler
	Tax          *taxhandler.Handler
	Admin        *adminhandler.Handler
	Verification *verifhandler.Handler
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

// NewRouter wires the full HTTP surface.
func NewRouter(h Handlers, sessions middleware.SessionValidator, logger *slog.Logger, m *metrics.Metrics, health map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(m))

	r.Get("/healthz", healthHandler(health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)

		api.Group(func(public chi.Router) {
			h.Citizen.RegisterPublic(public)
			h.Certificate.RegisterPublic(public)
			h.Admin.RegisterPublic(public)
			h.Verification.RegisterPublic(public)
		})

		api.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireAdmin(sessions, logger))
			h.Citizen.RegisterAdmin(admin)
			h.Certificate.RegisterAdmin(admin)
			h.Tax.RegisterAdmin(admin)
			h.Admin.RegisterAdmin(admin)
		})
	})

	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded","failing":"` + name + `"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
