// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

// Package graph is the HTTP client for the knowledge-graph neighbor
// service. The service owns all graph traversal; this side only shapes
// requests, guards availability, and memoizes hot responses.
package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/mindreader-tech/mindreader/internal/cache"
	"github.com/mindreader-tech/mindreader/internal/logging"
	"github.com/mindreader-tech/mindreader/internal/metrics"
	"github.com/mindreader-tech/mindreader/internal/models"
)

// ErrUnavailable reports that the graph service cannot serve lookups right
// now (breaker open, rate limited, transport down, or 5xx after retry).
// Handlers map it to 503.
var ErrUnavailable = errors.New("graph service unavailable")

// Config tunes the client. Zero values fall back to sane defaults.
type Config struct {
	// BaseURL is the neighbor-service root, e.g. http://localhost:7778.
	BaseURL string

	// LookupTimeout bounds each HTTP attempt.
	LookupTimeout time.Duration

	// RetryDelay is the pause before the single transient-error retry.
	RetryDelay time.Duration

	// RateLimit caps outbound lookups per second.
	RateLimit float64

	// CountsTTL bounds how long label counts are memoized.
	CountsTTL time.Duration

	// FinalCacheSize and FinalCacheTTL bound the final-batch memo.
	FinalCacheSize int
	FinalCacheTTL  time.Duration
}

func (c *Config) applyDefaults() {
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = 5 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 50
	}
	if c.CountsTTL <= 0 {
		c.CountsTTL = 10 * time.Minute
	}
	if c.FinalCacheSize <= 0 {
		c.FinalCacheSize = 512
	}
	if c.FinalCacheTTL <= 0 {
		c.FinalCacheTTL = time.Minute
	}
}

// Client talks to the graph neighbor service.
type Client struct {
	baseURL string
	http    *http.Client
	cfg     Config

	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter

	counts     *cache.LRU[map[models.Category]int]
	finalBatch *cache.LRU[[]models.Entity]
}

// NewClient builds a graph client against cfg.BaseURL.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()

	settings := gobreaker.Settings{
		Name:        "graph-service",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("graph breaker state change")
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.LookupTimeout},
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)),
		counts:  cache.NewLRU[map[models.Category]int](4, cfg.CountsTTL),
		finalBatch: cache.NewLRU[[]models.Entity](
			cfg.FinalCacheSize, cfg.FinalCacheTTL),
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// neighborsRequest is the body of POST /neighbors.
type neighborsRequest struct {
	Liked    []string `json:"liked"`
	Disliked []string `json:"disliked"`
	Exclude  []string `json:"exclude"`
	Limits   limits   `json:"limits"`
}

// limits carries per-role result quotas for a neighbors lookup.
type limits struct {
	Actors    int `json:"actors"`
	Directors int `json:"directors"`
	Subjects  int `json:"subjects"`
}

// unseenRequest is the body of POST /unseen.
type unseenRequest struct {
	Seen  []string `json:"seen"`
	Limit int      `json:"limit"`
}

// finalRequest is the body of POST /final.
type finalRequest struct {
	Liked    []string `json:"liked"`
	Disliked []string `json:"disliked"`
	Seen     []string `json:"seen"`
	Limit    int      `json:"limit"`
}

// entitiesResponse is the common lookup response shape.
type entitiesResponse struct {
	Entities []models.Entity `json:"entities"`
}

// countsResponse is the body of GET /counts.
type countsResponse struct {
	Counts map[string]int `json:"counts"`
}

// NeighborLimits sets per-role quotas for RelevantNeighbors.
type NeighborLimits struct {
	Actors    int
	Directors int
	Subjects  int
}

// RelevantNeighbors returns non-movie entities adjacent to the rated seed,
// scored by the service, excluding already-seen uris.
func (c *Client) RelevantNeighbors(ctx context.Context, liked, disliked, exclude []string, lim NeighborLimits) ([]models.Entity, error) {
	body := neighborsRequest{
		Liked:    liked,
		Disliked: disliked,
		Exclude:  exclude,
		Limits:   limits{Actors: lim.Actors, Directors: lim.Directors, Subjects: lim.Subjects},
	}
	var resp entitiesResponse
	if err := c.post(ctx, "neighbors", "/neighbors", body, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// UnseenEntities returns relevance-ranked movies outside the seen set.
// Callers fold any extra exclusions (e.g. provisionally drawn filler) into
// seen before calling.
func (c *Client) UnseenEntities(ctx context.Context, seen []string, limit int) ([]models.Entity, error) {
	body := unseenRequest{Seen: seen, Limit: limit}
	var resp entitiesResponse
	if err := c.post(ctx, "unseen", "/unseen", body, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// FinalBatch returns the service's top movies for one polarity of the
// finished session, excluding everything the user was already shown.
// Responses are memoized briefly since finalization issues the same pair
// of lookups on a retried request.
func (c *Client) FinalBatch(ctx context.Context, liked, disliked, seen []string, limit int) ([]models.Entity, error) {
	key := finalCacheKey(liked, disliked, seen, limit)
	if hit, ok := c.finalBatch.Get(key); ok {
		metrics.CacheHits.WithLabelValues("final_batch").Inc()
		return hit, nil
	}
	metrics.CacheMisses.WithLabelValues("final_batch").Inc()

	body := finalRequest{Liked: liked, Disliked: disliked, Seen: seen, Limit: limit}
	var resp entitiesResponse
	if err := c.post(ctx, "final", "/final", body, &resp); err != nil {
		return nil, err
	}
	c.finalBatch.Add(key, resp.Entities)
	return resp.Entities, nil
}

func finalCacheKey(liked, disliked, seen []string, limit int) string {
	l := append([]string(nil), liked...)
	d := append([]string(nil), disliked...)
	s := append([]string(nil), seen...)
	sort.Strings(l)
	sort.Strings(d)
	sort.Strings(s)
	return fmt.Sprintf("%d|%s|%s|%s", limit, strings.Join(l, ","), strings.Join(d, ","), strings.Join(s, ","))
}

// Counts returns the per-category entity counts backing the stratified
// sampler's category weights. Counts change only when the graph is
// rebuilt, so they are cached aggressively.
func (c *Client) Counts(ctx context.Context) (map[models.Category]int, error) {
	if hit, ok := c.counts.Get("counts"); ok {
		metrics.CacheHits.WithLabelValues("counts").Inc()
		return hit, nil
	}
	metrics.CacheMisses.WithLabelValues("counts").Inc()

	raw, err := c.do(ctx, "counts", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/counts", nil)
	})
	if err != nil {
		return nil, err
	}

	var resp countsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode counts: %w", err)
	}

	out := make(map[models.Category]int, len(resp.Counts))
	for name, n := range resp.Counts {
		cat, err := models.ParseCategory(name)
		if err != nil {
			logging.Warn().Str("category", name).Msg("unknown category in graph counts")
			continue
		}
		out[cat] = n
	}
	c.counts.Add("counts", out)
	return out, nil
}

func (c *Client) post(ctx context.Context, operation, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", operation, err)
	}

	raw, err := c.do(ctx, operation, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// do executes one guarded lookup: rate limit, breaker, per-attempt timeout,
// and a single retry after a transient failure.
func (c *Client) do(ctx context.Context, operation string, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	if !c.limiter.Allow() {
		metrics.GraphLookupsTotal.WithLabelValues(operation, "rejected").Inc()
		return nil, fmt.Errorf("%w: rate limited", ErrUnavailable)
	}

	start := time.Now()
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		body, err := c.attempt(ctx, build)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// One retry after a short pause covers blips without piling
		// load onto a struggling service.
		metrics.GraphRetriesTotal.WithLabelValues(operation).Inc()
		logging.Debug().Err(err).Str("operation", operation).Msg("retrying graph lookup")
		select {
		case <-time.After(c.cfg.RetryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return c.attempt(ctx, build)
	})
	metrics.GraphLookupDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GraphLookupsTotal.WithLabelValues(operation, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, err)
	}

	metrics.GraphLookupsTotal.WithLabelValues(operation, "ok").Inc()
	return raw, nil
}

func (c *Client) attempt(ctx context.Context, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.LookupTimeout)
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph service returned %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
