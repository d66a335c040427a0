// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mindreader-tech/mindreader/internal/config"
)

// NewRouter assembles the HTTP surface: the elicitation endpoints, health
// probes, and the Prometheus scrape endpoint.
func NewRouter(handler *Handler, cfg config.APIConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.CORSOrigins))
	r.Use(RequestLogger)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", handler.Health)
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Route("/api/v1/elicitation", func(r chi.Router) {
		r.Use(RateLimit(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(PrometheusMetrics)

		r.Get("/begin", handler.Begin)
		r.Post("/feedback", handler.Feedback)
		r.Post("/finalize", handler.Finalize)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
