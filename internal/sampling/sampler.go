// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

// Package sampling implements the stratified candidate draw used to pick
// which entities a question batch presents.
//
// Draws happen in two stages: first a category is chosen with probability
// proportional to a size-dampened category weight, then an entity within
// that category proportional to its relevance score. Dampening keeps huge
// strata (people, movies) from drowning out small ones while still letting
// size matter, and small flat strata (decades, companies) are further
// down-weighted so batches are not dominated by low-signal picks.
package sampling

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/mindreader-tech/mindreader/internal/metrics"
	"github.com/mindreader-tech/mindreader/internal/models"
)

// categoryMultiplier dampens low-signal strata.
func categoryMultiplier(c models.Category) float64 {
	switch c {
	case models.CategoryDecade:
		return 0.25
	case models.CategoryCompany:
		return 0.5
	default:
		return 1.0
	}
}

// CategoryWeights derives the stratum weight for each category from its
// population count: log2(count) times the category multiplier. Categories
// with fewer than two members get zero weight.
func CategoryWeights(counts map[models.Category]int) map[models.Category]float64 {
	out := make(map[models.Category]float64, len(counts))
	for cat, n := range counts {
		if n < 2 {
			out[cat] = 0
			continue
		}
		out[cat] = math.Log2(float64(n)) * categoryMultiplier(cat)
	}
	return out
}

// Sampler performs stratified draws with a shared seeded RNG. Safe for
// concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a sampler. Zero seed picks a time-based one.
func New(seed int64) *Sampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sampler{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // sampling, not crypto
}

// Draw picks up to n distinct entities from pool, stratified by category.
//
// Category weights stay fixed for the whole draw; only exhausted strata
// leave the rotation. Within a stratum, entities are drawn proportional to
// SampleWeight, uniformly when all weights in the stratum are zero. A draw
// shorter than n means the pool was exhausted, which callers treat as a
// legitimate result.
func (s *Sampler) Draw(pool []models.Entity, n int, weights map[models.Category]float64) []models.Entity {
	metrics.SamplerDrawsTotal.Inc()
	if n <= 0 || len(pool) == 0 {
		return nil
	}

	strata := make(map[models.Category][]models.Entity)
	for _, e := range models.DedupeByURI(pool) {
		strata[e.Category] = append(strata[e.Category], e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Entity, 0, n)
	for len(out) < n {
		cat, ok := s.pickCategoryLocked(strata, weights)
		if !ok {
			break
		}
		idx := s.pickEntityLocked(strata[cat])
		out = append(out, strata[cat][idx])

		// Remove without replacement.
		stratum := strata[cat]
		stratum[idx] = stratum[len(stratum)-1]
		strata[cat] = stratum[:len(stratum)-1]
		if len(strata[cat]) == 0 {
			delete(strata, cat)
		}
	}

	if len(out) < n {
		metrics.SamplerShortfallTotal.Inc()
	}
	return out
}

// pickCategoryLocked draws a non-empty stratum proportional to its fixed
// weight. Strata absent from weights, or weighted zero, are reachable only
// through the uniform fallback when every populated stratum is weightless.
func (s *Sampler) pickCategoryLocked(strata map[models.Category][]models.Entity, weights map[models.Category]float64) (models.Category, bool) {
	if len(strata) == 0 {
		return 0, false
	}

	// Deterministic iteration keeps draws reproducible under a fixed seed.
	populated := make([]models.Category, 0, len(strata))
	total := 0.0
	for cat := models.CategoryMovie; cat <= models.CategoryCompany; cat++ {
		if _, ok := strata[cat]; !ok {
			continue
		}
		populated = append(populated, cat)
		total += weights[cat]
	}
	if len(populated) == 0 {
		return 0, false
	}
	if total <= 0 {
		return populated[s.rng.Intn(len(populated))], true
	}

	target := s.rng.Float64() * total
	acc := 0.0
	for _, cat := range populated {
		acc += weights[cat]
		if target < acc {
			return cat, true
		}
	}
	return populated[len(populated)-1], true
}

// pickEntityLocked draws an index into stratum proportional to sample
// weight, uniformly when the stratum carries no weight at all.
func (s *Sampler) pickEntityLocked(stratum []models.Entity) int {
	total := 0.0
	for _, e := range stratum {
		total += e.SampleWeight()
	}
	if total <= 0 {
		return s.rng.Intn(len(stratum))
	}

	target := s.rng.Float64() * total
	acc := 0.0
	for i, e := range stratum {
		acc += e.SampleWeight()
		if target < acc {
			return i
		}
	}
	return len(stratum) - 1
}

// Shuffle permutes entities in place.
func (s *Sampler) Shuffle(entities []models.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(entities), func(i, j int) {
		entities[i], entities[j] = entities[j], entities[i]
	})
}

// RoleQuotas splits a per-batch entity budget across person roles and
// subjects for a neighbors lookup: half actors, the rest split between
// directors and subjects with directors taking the remainder.
func RoleQuotas(budget int) (actors, directors, subjects int) {
	if budget <= 0 {
		return 0, 0, 0
	}
	actors = budget / 2
	subjects = (budget - actors) / 2
	directors = budget - actors - subjects
	return actors, directors, subjects
}
