// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the elicitation server.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Sessions    SessionConfig     `koanf:"sessions"`
	Dataset     DatasetConfig     `koanf:"dataset"`
	Graph       GraphConfig       `koanf:"graph"`
	Elicitation ElicitationConfig `koanf:"elicitation"`
	API         APIConfig         `koanf:"api"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// Timeout bounds request read/write durations.
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SessionConfig holds durable session storage settings.
type SessionConfig struct {
	// Path is the directory holding one JSON document per session token.
	// Filenames encode the token verbatim; '+' is load-bearing for the
	// head/suffix split and is never sanitized.
	Path string `koanf:"path"`
}

// DatasetConfig holds base catalog settings.
type DatasetConfig struct {
	// MoviesPath is the merged movie catalog CSV.
	MoviesPath string `koanf:"movies_path"`

	// ImageBaseURL prefixes poster/profile image paths in responses.
	ImageBaseURL string `koanf:"image_base_url"`
}

// GraphConfig holds graph neighbor service client settings.
type GraphConfig struct {
	// BaseURL is the graph-query service root, e.g. "http://graph:7778".
	BaseURL string `koanf:"base_url"`

	// LookupTimeout bounds a single lookup round trip.
	LookupTimeout time.Duration `koanf:"lookup_timeout"`

	// RetryDelay is the pause before the single transient-error retry.
	RetryDelay time.Duration `koanf:"retry_delay"`

	// RateLimit caps outbound lookups per second. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`

	// CountsTTL is how long label counts are cached.
	CountsTTL time.Duration `koanf:"counts_ttl"`

	// FinalCacheSize bounds the final-batch LRU cache.
	FinalCacheSize int `koanf:"final_cache_size"`

	// FinalCacheTTL is how long final batches are cached.
	FinalCacheTTL time.Duration `koanf:"final_cache_ttl"`
}

// ElicitationConfig holds the question-loop tuning knobs. The defaults
// mirror the values the elicitation study shipped with.
type ElicitationConfig struct {
	// MinQuestions is how many rated entities end the question loop.
	MinQuestions int `koanf:"min_questions"`

	// MinimumSeedSize is how many rated entities are required before
	// graph-ranked filler replaces naive popularity filler.
	MinimumSeedSize int `koanf:"minimum_seed_size"`

	// NQuestions is the batch size shown per page while eliciting.
	NQuestions int `koanf:"n_questions"`

	// LastNQuestions is the size of each final recommendation list.
	LastNQuestions int `koanf:"last_n_questions"`

	// LastNRecQuestions is how many entries of each final list come from
	// the graph service; the rest is filler backfill.
	LastNRecQuestions int `koanf:"last_n_rec_questions"`

	// BeginSamples is the cold-start batch size for a fresh session.
	BeginSamples int `koanf:"begin_samples"`

	// MaxParallelLookups bounds concurrent graph lookups per request.
	MaxParallelLookups int `koanf:"max_parallel_lookups"`

	// Seed seeds the sampling RNG for reproducible draws. Zero picks a
	// time-based seed.
	Seed int64 `koanf:"seed"`
}

// NEntities is the per-group allocation (like, dislike, random) derived
// from the batch size.
func (e ElicitationConfig) NEntities() int {
	return e.NQuestions / 3
}

// APIConfig holds HTTP surface settings.
type APIConfig struct {
	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs is the per-IP request budget per window.
	RateLimitReqs int `koanf:"rate_limit_reqs"`

	// RateLimitWindow is the rate limit window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes file:line in log events.
	Caller bool `koanf:"caller"`
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Sessions.Path == "" {
		return fmt.Errorf("sessions.path must not be empty")
	}
	if c.Graph.BaseURL == "" {
		return fmt.Errorf("graph.base_url must not be empty")
	}
	if c.Graph.LookupTimeout <= 0 {
		return fmt.Errorf("graph.lookup_timeout must be positive")
	}

	e := c.Elicitation
	if e.NQuestions < 3 {
		return fmt.Errorf("elicitation.n_questions %d must be at least 3", e.NQuestions)
	}
	if e.MinQuestions <= 0 {
		return fmt.Errorf("elicitation.min_questions must be positive")
	}
	if e.MinimumSeedSize <= 0 || e.MinimumSeedSize > e.MinQuestions {
		return fmt.Errorf("elicitation.minimum_seed_size %d must be in (0, min_questions]", e.MinimumSeedSize)
	}
	if e.LastNRecQuestions > e.LastNQuestions {
		return fmt.Errorf("elicitation.last_n_rec_questions %d exceeds last_n_questions %d",
			e.LastNRecQuestions, e.LastNQuestions)
	}
	if e.MaxParallelLookups <= 0 {
		return fmt.Errorf("elicitation.max_parallel_lookups must be positive")
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}

	return nil
}
