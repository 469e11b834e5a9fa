package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the HTTP surface. The metrics registry is exposed
// unauthenticated, as is the health probe; everything else requires a
// bearer token.
func NewRouter(h *Handler, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", h.Healthz)
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/steps", h.ExecuteStep)
		r.Post("/gates/decision", h.DecideGate)
		r.Get("/chains/{chainID}/export", h.ExportChain)
		r.Get("/chains/{chainID}/verify", h.VerifyChain)
		r.Get("/policies/resolve", h.ResolvePolicies)
		r.Post("/policies/ingest", h.IngestPolicies)
	})

	return r
}
