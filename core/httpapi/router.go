package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// NewRouter returns a chi router with the shared middleware stack, GET /health and
// GET /metrics already mounted.
func NewRouter(onPanic PanicWriter, health HealthCheck) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Correlate)
	r.Use(Logging)
	r.Use(Metrics)
	r.Use(Recover(onPanic))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				Fail(w, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		OK(w, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
