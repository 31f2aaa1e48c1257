// Package httptransport assembles the public HTTP surface. It stays thin:
// handlers delegate to services, and business logic never lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"remindly/internal/transport/http/shared"
)

// Registrar mounts a handler's routes onto the router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency; the name keys the health response.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewRouter wires all public endpoints.
func NewRouter(logger *slog.Logger, registration Registrar, checks ...HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(30 * time.Second))

	registration.Register(r)

	r.Get("/healthz", healthHandler(logger, checks))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func healthHandler(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := http.StatusOK
		result := make(map[string]string, len(checks)+1)
		result["status"] = "ok"

		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"dependency", c.Name,
					"error", err.Error(),
				)
				result[c.Name] = "unhealthy"
				result["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			result[c.Name] = "ok"
		}

		shared.WriteJSON(w, status, result)
	}
}
