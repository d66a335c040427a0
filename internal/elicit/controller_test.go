// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package elicit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mindreader-tech/mindreader/internal/config"
	"github.com/mindreader-tech/mindreader/internal/graph"
	"github.com/mindreader-tech/mindreader/internal/models"
	"github.com/mindreader-tech/mindreader/internal/sampling"
	"github.com/mindreader-tech/mindreader/internal/session"
)

// mockGraph is a scriptable GraphService. Lookups run concurrently, so
// every counter and capture is mutex-guarded.
type mockGraph struct {
	mu sync.Mutex

	neighbors []models.Entity
	unseen    []models.Entity
	final     map[string][]models.Entity // keyed by first liked uri
	counts    map[models.Category]int

	neighborCalls int
	unseenCalls   int
	finalCalls    int

	neighborSeeds [][2][]string // liked, disliked per call
	unseenSeen    []string
	finalSeen     [][]string

	err error
}

func (m *mockGraph) RelevantNeighbors(_ context.Context, liked, disliked, exclude []string, lim graph.NeighborLimits) ([]models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.neighborCalls++
	m.neighborSeeds = append(m.neighborSeeds, [2][]string{liked, disliked})
	return m.neighbors, m.err
}

func (m *mockGraph) UnseenEntities(_ context.Context, seen []string, limit int) ([]models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unseenCalls++
	m.unseenSeen = append([]string(nil), seen...)
	return m.unseen, m.err
}

func (m *mockGraph) FinalBatch(_ context.Context, liked, disliked, seen []string, limit int) ([]models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalCalls++
	m.finalSeen = append(m.finalSeen, append([]string(nil), seen...))
	if m.err != nil {
		return nil, m.err
	}
	key := ""
	if len(liked) > 0 {
		key = liked[0]
	}
	return append([]models.Entity(nil), m.final[key]...), nil
}

func (m *mockGraph) Counts(_ context.Context) (map[models.Category]int, error) {
	if m.counts == nil {
		return map[models.Category]int{
			models.CategoryMovie:  1024,
			models.CategoryPerson: 1024,
		}, m.err
	}
	return m.counts, m.err
}

// mockCatalog serves a fixed popularity-ordered movie list.
type mockCatalog struct {
	movies []models.Entity
}

func newMockCatalog(n int) *mockCatalog {
	c := &mockCatalog{}
	for i := range n {
		c.movies = append(c.movies, models.Entity{
			URI:      fmt.Sprintf("uri:cat%03d", i),
			Name:     fmt.Sprintf("Catalog Movie %03d", i),
			Category: models.CategoryMovie,
			Weight:   float64(n - i),
		})
	}
	return c
}

func (c *mockCatalog) Sample(n int, exclude map[string]struct{}) []models.Entity {
	var out []models.Entity
	for _, m := range c.movies {
		if len(out) == n {
			break
		}
		if _, skip := exclude[m.URI]; skip {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *mockCatalog) MovieByURI(uri string) (models.Entity, bool) {
	for _, m := range c.movies {
		if m.URI == uri {
			return m, true
		}
	}
	return models.Entity{}, false
}

func testConfig() config.ElicitationConfig {
	return config.ElicitationConfig{
		MinQuestions:       30,
		MinimumSeedSize:    5,
		NQuestions:         9,
		LastNQuestions:     6,
		LastNRecQuestions:  3,
		BeginSamples:       5,
		MaxParallelLookups: 5,
		Seed:               42,
	}
}

func testController(t *testing.T, g GraphService, catalog Catalog) (*Controller, *session.Store) {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	cfg := testConfig()
	return NewController(g, store, catalog, sampling.New(cfg.Seed), cfg), store
}

func mustToken(t *testing.T, raw string) models.Token {
	t.Helper()
	tok, err := models.ParseToken(raw)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func uriSet(entities []models.Entity) map[string]struct{} {
	out := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		out[e.URI] = struct{}{}
	}
	return out
}

func TestBeginSamplesAndRecords(t *testing.T) {
	c, store := testController(t, &mockGraph{}, newMockCatalog(50))
	tok := mustToken(t, "u1+a")

	res, err := c.Begin(context.Background(), tok)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if res.State != StateEliciting {
		t.Errorf("State = %s", res.State)
	}
	if len(res.Questions) != 5 {
		t.Fatalf("questions = %d, want 5", len(res.Questions))
	}

	// A second begin must not repeat any movie.
	res2, err := c.Begin(context.Background(), tok)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	first := uriSet(res.Questions)
	for _, e := range res2.Questions {
		if _, dup := first[e.URI]; dup {
			t.Errorf("movie %s re-presented", e.URI)
		}
	}

	seen, err := store.SeenEntities(tok)
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 10 {
		t.Errorf("seen = %d uris, want 10", len(seen))
	}
}

func TestFeedbackBeforeSeedUsesCatalogFiller(t *testing.T) {
	g := &mockGraph{
		neighbors: []models.Entity{
			{URI: "uri:p1", Name: "Some Actor", Category: models.CategoryPerson, Roles: []string{"Actor"}, Score: 2},
			{URI: "uri:p2", Name: "Some Director", Category: models.CategoryPerson, Roles: []string{"Director"}, Score: 1},
			{URI: "uri:s1", Name: "Heist", Category: models.CategorySubject, Score: 1},
			{URI: "uri:s2", Name: "Noir", Category: models.CategorySubject, Score: 1},
			{URI: "uri:d1", Name: "1990s", Category: models.CategoryDecade, Score: 1},
		},
	}
	c, _ := testController(t, g, newMockCatalog(50))
	tok := mustToken(t, "u1+a")

	// Two rated movies: below the seed threshold of five.
	res, err := c.SubmitFeedback(context.Background(), tok, []string{"uri:cat000"}, []string{"uri:cat001"}, nil)
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if res.State != StateEliciting {
		t.Fatalf("State = %s", res.State)
	}
	if g.unseenCalls != 0 {
		t.Errorf("graph filler used below seed threshold")
	}
	// One lookup per rated polarity, each seeded by that polarity alone.
	if g.neighborCalls != 2 {
		t.Fatalf("neighborCalls = %d, want 2", g.neighborCalls)
	}
	for _, seeds := range g.neighborSeeds {
		if len(seeds[0]) > 0 && len(seeds[1]) > 0 {
			t.Errorf("neighbor lookup mixed polarities: %v", seeds)
		}
	}
	if len(res.Questions) == 0 || len(res.Questions) > 9 {
		t.Errorf("questions = %d", len(res.Questions))
	}

	// Rated movies never reappear as questions.
	for _, e := range res.Questions {
		if e.URI == "uri:cat000" || e.URI == "uri:cat001" {
			t.Errorf("rated movie %s re-presented", e.URI)
		}
	}
}

func TestFeedbackAtSeedUsesGraphFiller(t *testing.T) {
	var unseen []models.Entity
	for i := range 20 {
		unseen = append(unseen, models.Entity{
			URI:      fmt.Sprintf("uri:un%02d", i),
			Name:     fmt.Sprintf("Related Movie %02d", i),
			Category: models.CategoryMovie,
			Score:    float64(20 - i),
		})
	}
	g := &mockGraph{unseen: unseen, neighbors: []models.Entity{
		{URI: "uri:p1", Name: "Some Actor", Category: models.CategoryPerson, Roles: []string{"Actor"}, Score: 1},
	}}
	c, store := testController(t, g, newMockCatalog(50))
	tok := mustToken(t, "u1+a")

	// Five prior ratings put the session at the seed threshold before the
	// next submission arrives.
	if _, err := store.Append(tok,
		[]string{"uri:cat000", "uri:cat001", "uri:cat002"},
		[]string{"uri:cat003", "uri:cat004"}, nil, time.Unix(1, 0), false); err != nil {
		t.Fatal(err)
	}

	res, err := c.SubmitFeedback(context.Background(), tok, []string{"uri:cat005"}, nil, nil)
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if res.State != StateEliciting {
		t.Fatalf("State = %s", res.State)
	}
	if g.unseenCalls != 1 {
		t.Errorf("unseenCalls = %d, want 1", g.unseenCalls)
	}
}

func TestSeedGateCountsRatingsBeforeSubmission(t *testing.T) {
	g := &mockGraph{neighbors: []models.Entity{
		{URI: "uri:p1", Name: "Some Actor", Category: models.CategoryPerson, Roles: []string{"Actor"}, Score: 1},
	}}
	c, store := testController(t, g, newMockCatalog(50))
	tok := mustToken(t, "u1+a")

	// Four prior ratings; the submission itself brings the total to five,
	// but trust in graph filler is judged before it lands.
	if _, err := store.Append(tok,
		[]string{"uri:cat000", "uri:cat001"},
		[]string{"uri:cat002", "uri:cat003"}, nil, time.Unix(1, 0), false); err != nil {
		t.Fatal(err)
	}

	res, err := c.SubmitFeedback(context.Background(), tok, []string{"uri:cat004"}, nil, nil)
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if g.unseenCalls != 0 {
		t.Errorf("unseenCalls = %d, want 0: filler must stay naive at four prior ratings", g.unseenCalls)
	}
	if g.neighborCalls != 1 {
		t.Errorf("neighborCalls = %d, want 1", g.neighborCalls)
	}
	if len(res.Questions) == 0 {
		t.Error("empty batch")
	}
}

func TestUnknownOnlySubmissionSkipsNeighborLookups(t *testing.T) {
	var unseen []models.Entity
	for i := range 30 {
		unseen = append(unseen, models.Entity{
			URI:      fmt.Sprintf("uri:un%02d", i),
			Name:     fmt.Sprintf("Related Movie %02d", i),
			Category: models.CategoryMovie,
			Score:    float64(30 - i),
		})
	}
	g := &mockGraph{unseen: unseen, neighbors: []models.Entity{
		{URI: "uri:p1", Name: "Some Actor", Category: models.CategoryPerson, Roles: []string{"Actor"}, Score: 1},
	}}
	c, store := testController(t, g, newMockCatalog(50))
	tok := mustToken(t, "u1+a")

	// Plenty of rating history, but this submission rates nothing.
	if _, err := store.Append(tok,
		[]string{"uri:cat000", "uri:cat001", "uri:cat002"},
		[]string{"uri:cat003", "uri:cat004"}, nil, time.Unix(1, 0), false); err != nil {
		t.Fatal(err)
	}

	res, err := c.SubmitFeedback(context.Background(), tok, nil, nil, []string{"uri:cat005"})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if g.neighborCalls != 0 {
		t.Errorf("neighborCalls = %d, want 0: related lookups follow the submission, not history", g.neighborCalls)
	}
	if len(res.Questions) != 9 {
		t.Errorf("questions = %d, want a full filler batch of 9", len(res.Questions))
	}
}

func TestRerankedFillerExcludesNaiveDraws(t *testing.T) {
	g := &mockGraph{neighbors: []models.Entity{
		{URI: "uri:p1", Name: "Some Actor", Category: models.CategoryPerson, Roles: []string{"Actor"}, Score: 1},
	}}
	c, store := testController(t, g, newMockCatalog(50))
	tok := mustToken(t, "u1+a")

	if _, err := store.Append(tok,
		[]string{"uri:cat000", "uri:cat001", "uri:cat002"},
		[]string{"uri:cat003", "uri:cat004"}, nil, time.Unix(1, 0), false); err != nil {
		t.Fatal(err)
	}

	if _, err := c.SubmitFeedback(context.Background(), tok, []string{"uri:cat005"}, nil, nil); err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if g.unseenCalls != 1 {
		t.Fatalf("unseenCalls = %d, want 1", g.unseenCalls)
	}

	// The exclusion list holds the six seen uris plus five provisional
	// catalog draws (cat006..cat010 from the deterministic mock).
	got := make(map[string]struct{}, len(g.unseenSeen))
	for _, uri := range g.unseenSeen {
		got[uri] = struct{}{}
	}
	for i := range 11 {
		uri := fmt.Sprintf("uri:cat%03d", i)
		if _, ok := got[uri]; !ok {
			t.Errorf("%s missing from the unseen exclusion list", uri)
		}
	}
}

func TestFeedbackWithNoRatingsIsAllFiller(t *testing.T) {
	g := &mockGraph{}
	c, _ := testController(t, g, newMockCatalog(50))
	tok := mustToken(t, "u1+a")

	res, err := c.SubmitFeedback(context.Background(), tok, nil, nil, []string{"uri:cat000"})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if g.neighborCalls != 0 {
		t.Errorf("neighbor lookup without any rated seed")
	}
	if len(res.Questions) != 9 {
		t.Errorf("questions = %d, want 9", len(res.Questions))
	}
}

func TestBatchHasNoDuplicates(t *testing.T) {
	// Neighbor pool shares a uri with the catalog filler.
	g := &mockGraph{neighbors: []models.Entity{
		{URI: "uri:cat010", Name: "Catalog Movie 010", Category: models.CategoryMovie, Score: 5},
		{URI: "uri:p1", Name: "Some Actor", Category: models.CategoryPerson, Roles: []string{"Actor"}, Score: 1},
	}}
	c, _ := testController(t, g, newMockCatalog(50))
	tok := mustToken(t, "u1+a")

	res, err := c.SubmitFeedback(context.Background(), tok, []string{"uri:cat000"}, nil, nil)
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	seen := make(map[string]struct{})
	for _, e := range res.Questions {
		if _, dup := seen[e.URI]; dup {
			t.Fatalf("duplicate %s in batch", e.URI)
		}
		seen[e.URI] = struct{}{}
	}
}

func TestBatchSortedByKindLabel(t *testing.T) {
	g := &mockGraph{neighbors: []models.Entity{
		{URI: "uri:s1", Name: "Heist", Category: models.CategorySubject, Score: 1},
		{URI: "uri:p1", Name: "Some Actor", Category: models.CategoryPerson, Roles: []string{"Actor"}, Score: 1},
		{URI: "uri:d1", Name: "1990s", Category: models.CategoryDecade, Score: 1},
	}}
	c, _ := testController(t, g, newMockCatalog(50))
	tok := mustToken(t, "u1+a")

	res, err := c.SubmitFeedback(context.Background(), tok, []string{"uri:cat000"}, nil, nil)
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	for i := 1; i < len(res.Questions); i++ {
		if res.Questions[i-1].Label() > res.Questions[i].Label() {
			t.Fatalf("batch not grouped by label: %s before %s",
				res.Questions[i-1].Label(), res.Questions[i].Label())
		}
	}
}

func TestDoneAfterEnoughRatings(t *testing.T) {
	g := &mockGraph{final: map[string][]models.Entity{}}
	c, store := testController(t, g, newMockCatalog(100))
	tok := mustToken(t, "u1+a")

	// Pre-load 29 ratings; the next submission crosses the threshold.
	var rated []string
	for i := range 29 {
		rated = append(rated, fmt.Sprintf("uri:cat%03d", i))
	}
	if _, err := store.Append(tok, rated, nil, nil, time.Unix(1, 0), false); err != nil {
		t.Fatal(err)
	}

	res, err := c.SubmitFeedback(context.Background(), tok, []string{"uri:cat090"}, nil, nil)
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("State = %s, want DONE", res.State)
	}
	if len(res.PredictedLikes) != 6 || len(res.PredictedDislikes) != 6 {
		t.Errorf("probe sizes = %d/%d, want 6/6",
			len(res.PredictedLikes), len(res.PredictedDislikes))
	}
	if g.finalCalls != 2 {
		t.Errorf("finalCalls = %d, want 2", g.finalCalls)
	}
}

func TestRatingsAccumulateAcrossSessions(t *testing.T) {
	g := &mockGraph{final: map[string][]models.Entity{}}
	c, store := testController(t, g, newMockCatalog(100))

	var rated []string
	for i := range 29 {
		rated = append(rated, fmt.Sprintf("uri:cat%03d", i))
	}
	// Ratings live in a sibling session of the same head.
	if _, err := store.Append(mustToken(t, "u1+earlier"), rated, nil, nil, time.Unix(1, 0), false); err != nil {
		t.Fatal(err)
	}

	res, err := c.SubmitFeedback(context.Background(), mustToken(t, "u1+now"), []string{"uri:cat090"}, nil, nil)
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("State = %s, want DONE via cross-session ratings", res.State)
	}
}

func TestFinalizeMarksSessionFinal(t *testing.T) {
	g := &mockGraph{final: map[string][]models.Entity{}}
	c, store := testController(t, g, newMockCatalog(50))
	tok := mustToken(t, "u1+a")

	res, err := c.Finalize(context.Background(), tok)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("State = %s", res.State)
	}

	sess, err := store.Load(tok)
	if err != nil {
		t.Fatal(err)
	}
	if !sess.Final {
		t.Error("session not marked final")
	}
}
