// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package elicit

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mindreader-tech/mindreader/internal/config"
	"github.com/mindreader-tech/mindreader/internal/graph"
	"github.com/mindreader-tech/mindreader/internal/logging"
	"github.com/mindreader-tech/mindreader/internal/metrics"
	"github.com/mindreader-tech/mindreader/internal/models"
	"github.com/mindreader-tech/mindreader/internal/sampling"
)

// State tells the client whether to keep asking or switch to the final
// prediction probes.
type State string

const (
	// StateEliciting means more preference questions are wanted.
	StateEliciting State = "ELICITING"
	// StateDone means enough ratings were collected for final probes.
	StateDone State = "DONE"
)

// Result is the outcome of a controller operation.
type Result struct {
	// State is the controller phase after this operation.
	State State `json:"state"`

	// Questions holds the next batch of entities to rate while eliciting.
	Questions []models.Entity `json:"questions,omitempty"`

	// PredictedLikes and PredictedDislikes are the final probe lists,
	// populated once the state is DONE.
	PredictedLikes    []models.Entity `json:"predicted_likes,omitempty"`
	PredictedDislikes []models.Entity `json:"predicted_dislikes,omitempty"`
}

// GraphService is the neighbor-service surface the controller needs.
type GraphService interface {
	RelevantNeighbors(ctx context.Context, liked, disliked, exclude []string, lim graph.NeighborLimits) ([]models.Entity, error)
	UnseenEntities(ctx context.Context, seen []string, limit int) ([]models.Entity, error)
	FinalBatch(ctx context.Context, liked, disliked, seen []string, limit int) ([]models.Entity, error)
	Counts(ctx context.Context) (map[models.Category]int, error)
}

// SessionStore is the persistence surface the controller needs.
type SessionStore interface {
	Load(tok models.Token) (*models.Session, error)
	Append(tok models.Token, liked, disliked, unknown []string, at time.Time, final bool) (*models.Session, error)
	RecordSampled(tok models.Token, uris []string) error
	SeenEntities(tok models.Token) (map[string]struct{}, error)
	RatedEntities(tok models.Token) (liked, disliked []string, err error)
}

// Catalog is the movie-catalog surface the controller needs.
type Catalog interface {
	Sample(n int, exclude map[string]struct{}) []models.Entity
	MovieByURI(uri string) (models.Entity, bool)
}

// Controller drives the question loop: it records feedback, decides when
// enough has been collected, and assembles each question batch.
type Controller struct {
	graph   GraphService
	store   SessionStore
	catalog Catalog
	sampler *sampling.Sampler
	cfg     config.ElicitationConfig

	agg *Aggregator
}

// NewController wires the elicitation loop.
func NewController(g GraphService, store SessionStore, catalog Catalog, sampler *sampling.Sampler, cfg config.ElicitationConfig) *Controller {
	return &Controller{
		graph:   g,
		store:   store,
		catalog: catalog,
		sampler: sampler,
		cfg:     cfg,
		agg:     NewAggregator(g, store, catalog, sampler, cfg),
	}
}

// Begin starts (or resumes) a session: popular movies nobody in the head
// group has been shown yet, recorded so they are never re-presented.
func (c *Controller) Begin(ctx context.Context, tok models.Token) (*Result, error) {
	seen, err := c.store.SeenEntities(tok)
	if err != nil {
		return nil, err
	}

	questions := c.catalog.Sample(c.cfg.BeginSamples, seen)
	if err := c.store.RecordSampled(tok, models.URIs(questions)); err != nil {
		return nil, err
	}

	sortForPresentation(questions)
	return &Result{State: StateEliciting, Questions: questions}, nil
}

// SubmitFeedback records one feedback submission and returns either the
// next question batch or, once enough ratings exist, the final probes.
// Neighbor lookups are seeded and sized by this submission's own sets;
// the seed-trust gate for reranked filler uses the rating count as it
// stood before the submission.
func (c *Controller) SubmitFeedback(ctx context.Context, tok models.Token, liked, disliked, unknown []string) (*Result, error) {
	preLiked, preDisliked, err := c.store.RatedEntities(tok)
	if err != nil {
		return nil, err
	}
	preRated := len(preLiked) + len(preDisliked)

	if _, err := c.store.Append(tok, liked, disliked, unknown, time.Now(), false); err != nil {
		return nil, err
	}

	allLiked, allDisliked, err := c.store.RatedEntities(tok)
	if err != nil {
		return nil, err
	}
	ratedCount := len(allLiked) + len(allDisliked)

	if ratedCount >= c.cfg.MinQuestions {
		metrics.FeedbackSubmissionsTotal.WithLabelValues("done").Inc()
		likes, dislikes, err := c.agg.Finalize(ctx, tok)
		if err != nil {
			return nil, err
		}
		return &Result{State: StateDone, PredictedLikes: likes, PredictedDislikes: dislikes}, nil
	}

	metrics.FeedbackSubmissionsTotal.WithLabelValues("eliciting").Inc()
	questions, err := c.buildBatch(ctx, tok, liked, disliked, preRated)
	if err != nil {
		return nil, err
	}
	return &Result{State: StateEliciting, Questions: questions}, nil
}

// Finalize marks the session final and returns the prediction probes
// regardless of how many ratings were collected.
func (c *Controller) Finalize(ctx context.Context, tok models.Token) (*Result, error) {
	if _, err := c.store.Append(tok, nil, nil, nil, time.Now(), true); err != nil {
		return nil, err
	}
	metrics.SessionsFinalizedTotal.Inc()

	likes, dislikes, err := c.agg.Finalize(ctx, tok)
	if err != nil {
		return nil, err
	}
	return &Result{State: StateDone, PredictedLikes: likes, PredictedDislikes: dislikes}, nil
}

// polarityBudgets sizes the two neighbor lookups from the current
// submission's sets. A lone polarity absorbs half of the absent one's
// share so the batch size stays constant; the rest goes to filler.
func (c *Controller) polarityBudgets(likedCount, dislikedCount int) (likeBudget, dislikeBudget int) {
	n := c.cfg.NEntities()
	switch {
	case likedCount > 0 && dislikedCount > 0:
		return n, n
	case likedCount > 0:
		return n + n/2, 0
	case dislikedCount > 0:
		return 0, n + n/2
	default:
		return 0, 0
	}
}

// buildBatch assembles the next question batch: graph neighbors of the
// just-submitted seeds plus filler movies, deduplicated and
// presentation-sorted. One neighbor lookup is issued per non-empty
// polarity of the submission, seeded by that polarity alone; all lookups
// run concurrently. A batch shorter than the target is legitimate when
// candidates run out.
func (c *Controller) buildBatch(ctx context.Context, tok models.Token, liked, disliked []string, preRated int) ([]models.Entity, error) {
	seen, err := c.store.SeenEntities(tok)
	if err != nil {
		return nil, err
	}
	seenList := make([]string, 0, len(seen))
	for uri := range seen {
		seenList = append(seenList, uri)
	}
	sort.Strings(seenList)

	likeBudget, dislikeBudget := c.polarityBudgets(len(liked), len(disliked))
	related := likeBudget + dislikeBudget
	filler := c.cfg.NQuestions - related

	var (
		likePool    []models.Entity
		dislikePool []models.Entity
		fillerPool  []models.Entity
		weights     map[models.Category]float64
		fromCatalog bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxParallelLookups)

	if related > 0 {
		g.Go(func() error {
			counts, err := c.graph.Counts(gctx)
			if err != nil {
				return err
			}
			weights = sampling.CategoryWeights(counts)
			return nil
		})
	}
	if likeBudget > 0 {
		g.Go(func() error {
			// Over-fetch so the stratified draw has room to diversify.
			actors, directors, subjects := sampling.RoleQuotas(likeBudget * 3)
			pool, err := c.graph.RelevantNeighbors(gctx, liked, nil, seenList, graph.NeighborLimits{
				Actors:    actors,
				Directors: directors,
				Subjects:  subjects,
			})
			if err != nil {
				return err
			}
			likePool = pool
			return nil
		})
	}
	if dislikeBudget > 0 {
		g.Go(func() error {
			actors, directors, subjects := sampling.RoleQuotas(dislikeBudget * 3)
			pool, err := c.graph.RelevantNeighbors(gctx, nil, disliked, seenList, graph.NeighborLimits{
				Actors:    actors,
				Directors: directors,
				Subjects:  subjects,
			})
			if err != nil {
				return err
			}
			dislikePool = pool
			return nil
		})
	}

	if filler > 0 {
		if preRated >= c.cfg.MinimumSeedSize {
			// Rerank: the naive draws become extra exclusions and the
			// graph's ranked picks replace them outright.
			naive := c.catalog.Sample(filler, seen)
			exclude := append(append([]string{}, seenList...), models.URIs(naive)...)
			sort.Strings(exclude)
			g.Go(func() error {
				pool, err := c.graph.UnseenEntities(gctx, exclude, filler*3)
				if err != nil {
					return err
				}
				fillerPool = pool
				return nil
			})
		} else {
			// Too little signal for graph ranking; fall back to the
			// popularity prior.
			fromCatalog = true
			g.Go(func() error {
				fillerPool = c.catalog.Sample(filler, seen)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := make([]models.Entity, 0, c.cfg.NQuestions)
	if likeBudget > 0 {
		batch = append(batch, c.sampler.Draw(likePool, likeBudget, weights)...)
	}
	if dislikeBudget > 0 {
		batch = append(batch, c.sampler.Draw(dislikePool, dislikeBudget, weights)...)
	}
	if filler > 0 {
		if fromCatalog {
			batch = append(batch, fillerPool...)
		} else {
			movieWeights := map[models.Category]float64{models.CategoryMovie: 1}
			batch = append(batch, c.sampler.Draw(fillerPool, filler, movieWeights)...)
		}
	}
	batch = models.DedupeByURI(batch)

	if fromCatalog && len(fillerPool) > 0 {
		if err := c.store.RecordSampled(tok, models.URIs(fillerPool)); err != nil {
			return nil, err
		}
	}

	if len(batch) < c.cfg.NQuestions {
		logging.Debug().
			Str("token", tok.String()).
			Int("got", len(batch)).
			Int("want", c.cfg.NQuestions).
			Msg("short question batch")
	}

	sortForPresentation(batch)
	return batch, nil
}

// sortForPresentation groups a batch by entity kind label, then orders
// within a group by name with uri as the tiebreaker, so related questions
// render together and repeated requests render identically.
func sortForPresentation(entities []models.Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		li, lj := entities[i].Label(), entities[j].Label()
		if li != lj {
			return li < lj
		}
		if entities[i].Name != entities[j].Name {
			return entities[i].Name < entities[j].Name
		}
		return entities[i].URI < entities[j].URI
	})
}
