// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

// Package main is the entry point for the MindReader elicitation server.
//
// MindReader learns a user's movie taste through a short rating
// conversation: it shows batches of movies, people, subjects, decades, and
// studios, records likes and dislikes, and finishes with two lists of
// predicted likes and dislikes drawn from a movie knowledge graph.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings via Koanf v2 (defaults, file, env)
//  2. Movie catalog: the merged ratings CSV with popularity priors
//  3. Session store: one JSON document per session token on disk
//  4. Graph client: HTTP client for the knowledge-graph neighbor service,
//     guarded by a circuit breaker and outbound rate limit
//  5. Elicitation controller and final-probe aggregator
//  6. HTTP server: the elicitation API under a suture supervisor tree
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults. The important environment variables:
//
//	GRAPH_URL        graph neighbor service base URL
//	SESSION_PATH     session document directory
//	MOVIES_PATH      movie catalog CSV
//	MIN_QUESTIONS    rated entities needed to finish the loop
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the listener stops
// accepting connections and in-flight requests get the configured
// shutdown timeout to complete.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mindreader-tech/mindreader/internal/api"
	"github.com/mindreader-tech/mindreader/internal/config"
	"github.com/mindreader-tech/mindreader/internal/dataset"
	"github.com/mindreader-tech/mindreader/internal/elicit"
	"github.com/mindreader-tech/mindreader/internal/graph"
	"github.com/mindreader-tech/mindreader/internal/logging"
	"github.com/mindreader-tech/mindreader/internal/sampling"
	"github.com/mindreader-tech/mindreader/internal/session"
	"github.com/mindreader-tech/mindreader/internal/supervisor"
	"github.com/mindreader-tech/mindreader/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet; the default logger serves.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("graph_url", cfg.Graph.BaseURL).
		Str("sessions_path", cfg.Sessions.Path).
		Str("movies_path", cfg.Dataset.MoviesPath).
		Int("min_questions", cfg.Elicitation.MinQuestions).
		Msg("Starting MindReader elicitation server")

	catalog, err := dataset.Load(cfg.Dataset.MoviesPath, dataset.Options{
		ImageBaseURL: cfg.Dataset.ImageBaseURL,
		Seed:         cfg.Elicitation.Seed,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load movie catalog")
	}
	logging.Info().Int("movies", catalog.Len()).Msg("Movie catalog loaded")

	store, err := session.NewStore(cfg.Sessions.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open session store")
	}

	graphClient := graph.NewClient(graph.Config{
		BaseURL:        cfg.Graph.BaseURL,
		LookupTimeout:  cfg.Graph.LookupTimeout,
		RetryDelay:     cfg.Graph.RetryDelay,
		RateLimit:      cfg.Graph.RateLimit,
		CountsTTL:      cfg.Graph.CountsTTL,
		FinalCacheSize: cfg.Graph.FinalCacheSize,
		FinalCacheTTL:  cfg.Graph.FinalCacheTTL,
	})

	sampler := sampling.New(cfg.Elicitation.Seed)
	controller := elicit.NewController(graphClient, store, catalog, sampler, cfg.Elicitation)

	// Readiness means the graph service answers; the catalog and session
	// store were already verified at startup.
	ready := func(ctx context.Context) error {
		_, err := graphClient.Counts(ctx)
		return err
	}

	router := api.NewRouter(api.NewHandler(controller, ready), cfg.API)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}
