// Package httptransport assembles the top-level router: the trip API plus the
// operational endpoints.
package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rihla/internal/trip/handler"
	"rihla/pkg/platform/httputil"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// NewRouter wires the trip API, /metrics, and /healthz. The ops endpoints sit
// outside the authenticated middleware chain.
func NewRouter(trips *handler.Handler, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealthz(checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	trips.Register(r)
	return r
}

func handleHealthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				deps[name] = "ok"
			}
		}

		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		httputil.WriteJSON(w, status, body)
	}
}
