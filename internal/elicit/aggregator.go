// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package elicit

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mindreader-tech/mindreader/internal/config"
	"github.com/mindreader-tech/mindreader/internal/models"
	"github.com/mindreader-tech/mindreader/internal/sampling"
)

// finalFetchLimit over-fetches each polarity's batch so truncation after
// overlap removal still has material to work with.
const finalFetchLimit = 20

// Aggregator assembles the final prediction probes: for each polarity, the
// graph's top picks padded with popular filler, shuffled so the rated-in
// picks are not identifiable by position.
type Aggregator struct {
	graph   GraphService
	store   SessionStore
	catalog Catalog
	sampler *sampling.Sampler
	cfg     config.ElicitationConfig
}

// NewAggregator wires the final-probe assembly.
func NewAggregator(g GraphService, store SessionStore, catalog Catalog, sampler *sampling.Sampler, cfg config.ElicitationConfig) *Aggregator {
	return &Aggregator{graph: g, store: store, catalog: catalog, sampler: sampler, cfg: cfg}
}

// Finalize builds the two probe lists for tok's head group.
//
// Both polarities are fetched concurrently; a movie the graph puts in both
// batches carries no signal and is dropped from both. Each surviving batch
// keeps its top picks by score, then popular filler tops the lists up,
// likes consuming the filler pool from the front and dislikes from the
// back so the two lists never share a filler movie.
func (a *Aggregator) Finalize(ctx context.Context, tok models.Token) (likes, dislikes []models.Entity, err error) {
	liked, disliked, err := a.store.RatedEntities(tok)
	if err != nil {
		return nil, nil, err
	}
	seen, err := a.store.SeenEntities(tok)
	if err != nil {
		return nil, nil, err
	}
	seenList := make([]string, 0, len(seen))
	for uri := range seen {
		seenList = append(seenList, uri)
	}
	sort.Strings(seenList)

	var likeBatch, dislikeBatch []models.Entity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		batch, err := a.graph.FinalBatch(gctx, liked, disliked, seenList, finalFetchLimit)
		if err != nil {
			return err
		}
		likeBatch = batch
		return nil
	})
	g.Go(func() error {
		batch, err := a.graph.FinalBatch(gctx, disliked, liked, seenList, finalFetchLimit)
		if err != nil {
			return err
		}
		dislikeBatch = batch
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// The service is told to exclude seen uris; drop any straggler it
	// returns regardless.
	likeBatch = dropSeen(likeBatch, seen)
	dislikeBatch = dropSeen(dislikeBatch, seen)

	likeBatch, dislikeBatch = dropOverlap(likeBatch, dislikeBatch)
	likes = a.topByScore(likeBatch, a.cfg.LastNRecQuestions)
	dislikes = a.topByScore(dislikeBatch, a.cfg.LastNRecQuestions)

	exclude := make(map[string]struct{}, len(seen)+len(likes)+len(dislikes))
	for uri := range seen {
		exclude[uri] = struct{}{}
	}
	for _, e := range likes {
		exclude[e.URI] = struct{}{}
	}
	for _, e := range dislikes {
		exclude[e.URI] = struct{}{}
	}

	filler := a.catalog.Sample(a.cfg.LastNQuestions*2, exclude)
	likes, filler = backfillFront(likes, filler, a.cfg.LastNQuestions)
	dislikes, _ = backfillBack(dislikes, filler, a.cfg.LastNQuestions)

	a.sampler.Shuffle(likes)
	a.sampler.Shuffle(dislikes)
	return likes, dislikes, nil
}

// topByScore resolves batch uris against the catalog, orders by score
// descending, and keeps the first n.
func (a *Aggregator) topByScore(batch []models.Entity, n int) []models.Entity {
	out := make([]models.Entity, 0, len(batch))
	for _, e := range batch {
		if movie, ok := a.catalog.MovieByURI(e.URI); ok {
			movie.Score = e.Score
			out = append(out, movie)
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// dropSeen filters out entities the user was already shown. Batches may
// alias the graph client's memo cache, so filtering never happens in place.
func dropSeen(batch []models.Entity, seen map[string]struct{}) []models.Entity {
	out := make([]models.Entity, 0, len(batch))
	for _, e := range batch {
		if _, shown := seen[e.URI]; !shown {
			out = append(out, e)
		}
	}
	return out
}

// dropOverlap removes every uri present in both batches from both.
func dropOverlap(a, b []models.Entity) ([]models.Entity, []models.Entity) {
	inA := make(map[string]struct{}, len(a))
	for _, e := range a {
		inA[e.URI] = struct{}{}
	}
	shared := make(map[string]struct{})
	for _, e := range b {
		if _, ok := inA[e.URI]; ok {
			shared[e.URI] = struct{}{}
		}
	}
	keep := func(in []models.Entity) []models.Entity {
		out := make([]models.Entity, 0, len(in))
		for _, e := range in {
			if _, drop := shared[e.URI]; !drop {
				out = append(out, e)
			}
		}
		return out
	}
	return keep(a), keep(b)
}

// backfillFront pads list to size from the front of pool, returning the
// unconsumed remainder.
func backfillFront(list, pool []models.Entity, size int) ([]models.Entity, []models.Entity) {
	for len(list) < size && len(pool) > 0 {
		list = append(list, pool[0])
		pool = pool[1:]
	}
	return list, pool
}

// backfillBack pads list to size from the back of pool.
func backfillBack(list, pool []models.Entity, size int) ([]models.Entity, []models.Entity) {
	for len(list) < size && len(pool) > 0 {
		list = append(list, pool[len(pool)-1])
		pool = pool[:len(pool)-1]
	}
	return list, pool
}
