package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civitrack/civitrack/internal/observability"
	"github.com/civitrack/civitrack/jobs"
)

// newReconcileJob builds the reconcile handler recording onto the same
// registry the worker's metrics server exposes.
func newReconcileJob(reconciler jobs.Reconciler, logger *slog.Logger) (*jobs.ReconcileJob, *observability.Metrics) {
	metrics := observability.NewMetrics()
	return jobs.NewReconcileJob(reconciler, logger, metrics.Jobs()), metrics
}

func newMetricsServer(addr string, metrics *observability.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
