// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mindreader/config.yaml",
	"/etc/mindreader/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns a Config with all default values applied. The
// elicitation constants mirror the original study deployment: 30 rated
// entities end the loop, 5 gate graph-ranked filler, batches of 9.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8571,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Sessions: SessionConfig{
			Path: "/data/sessions",
		},
		Dataset: DatasetConfig{
			MoviesPath:   "/data/movies.csv",
			ImageBaseURL: "/static",
		},
		Graph: GraphConfig{
			BaseURL:        "http://localhost:7778",
			LookupTimeout:  5 * time.Second,
			RetryDelay:     500 * time.Millisecond,
			RateLimit:      50,
			CountsTTL:      time.Hour,
			FinalCacheSize: 256,
			FinalCacheTTL:  time.Minute,
		},
		Elicitation: ElicitationConfig{
			MinQuestions:       30,
			MinimumSeedSize:    5,
			NQuestions:         9,
			LastNQuestions:     6,
			LastNRecQuestions:  3,
			BeginSamples:       5,
			MaxParallelLookups: 5,
			Seed:               0,
		},
		API: APIConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources with clear
// precedence: env vars > config file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists paths parsed as comma-separated slices when set
// through environment variables.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields splits comma-separated env values into slices for the
// known slice fields. YAML-sourced slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names onto koanf paths.
// Unmapped variables are dropped so random environment noise cannot
// pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"http_host":            "server.host",
		"http_port":            "server.port",
		"http_timeout":         "server.timeout",
		"http_shutdown_grace":  "server.shutdown_timeout",
		"session_path":         "sessions.path",
		"movies_path":          "dataset.movies_path",
		"image_base_url":       "dataset.image_base_url",
		"graph_url":            "graph.base_url",
		"graph_lookup_timeout": "graph.lookup_timeout",
		"graph_retry_delay":    "graph.retry_delay",
		"graph_rate_limit":     "graph.rate_limit",
		"graph_counts_ttl":     "graph.counts_ttl",

		"min_questions":        "elicitation.min_questions",
		"minimum_seed_size":    "elicitation.minimum_seed_size",
		"n_questions":          "elicitation.n_questions",
		"last_n_questions":     "elicitation.last_n_questions",
		"last_n_rec_questions": "elicitation.last_n_rec_questions",
		"begin_samples":        "elicitation.begin_samples",
		"sampling_seed":        "elicitation.seed",

		"cors_origins":        "api.cors_origins",
		"rate_limit_requests": "api.rate_limit_reqs",
		"rate_limit_window":   "api.rate_limit_window",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
