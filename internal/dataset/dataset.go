// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

// Package dataset loads the merged movie catalog and provides the base
// popularity-weighted sampler used for cold-start filler.
//
// The catalog is one CSV produced by the offline dataset pipeline, with
// columns: movieId, uri, title, year, imdbId, numRatings, summary. The
// sampling prior favors frequently rated and recent movies:
//
//	weight = numRatings * max(1, year-2000)
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mindreader-tech/mindreader/internal/models"
)

// Movie is one catalog row.
type Movie struct {
	MovieID    string
	URI        string
	Title      string
	Year       int
	IMDBID     string
	NumRatings int
	Summary    string
	Weight     float64
}

// Catalog is the loaded movie catalog. Read-only after Load; safe for
// concurrent use (the draw RNG is mutex-guarded).
type Catalog struct {
	movies []Movie
	byURI  map[string]int

	imageBaseURL string

	rng *rand.Rand
	mu  sync.Mutex
}

// Options tunes catalog loading.
type Options struct {
	// ImageBaseURL prefixes poster paths in presented entities.
	ImageBaseURL string

	// Seed seeds the sampling RNG. Zero picks a time-based seed.
	Seed int64
}

// Load reads the catalog CSV at path.
func Load(path string, opts Options) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	c, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return c, nil
}

// Read parses catalog CSV rows from r.
func Read(r io.Reader, opts Options) (*Catalog, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c := &Catalog{
		byURI:        make(map[string]int),
		imageBaseURL: strings.TrimRight(opts.ImageBaseURL, "/"),
		rng:          rand.New(rand.NewSource(seed)), //nolint:gosec // sampling, not crypto
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"movieId", "uri", "title", "year", "imdbId", "numRatings"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("catalog missing column %q", required)
		}
	}

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		line++

		m, err := rowToMovie(record, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, dup := c.byURI[m.URI]; dup {
			continue
		}
		c.byURI[m.URI] = len(c.movies)
		c.movies = append(c.movies, m)
	}

	if len(c.movies) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	return c, nil
}

func rowToMovie(record []string, col map[string]int) (Movie, error) {
	field := func(name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	uri := field("uri")
	if uri == "" {
		return Movie{}, fmt.Errorf("row has empty uri")
	}

	year, err := strconv.Atoi(field("year"))
	if err != nil {
		return Movie{}, fmt.Errorf("bad year %q: %w", field("year"), err)
	}
	numRatings, err := strconv.Atoi(field("numRatings"))
	if err != nil {
		return Movie{}, fmt.Errorf("bad numRatings %q: %w", field("numRatings"), err)
	}

	recency := year - 2000
	if recency < 1 {
		recency = 1
	}

	return Movie{
		MovieID:    field("movieId"),
		URI:        uri,
		Title:      TransformTitle(field("title")),
		Year:       year,
		IMDBID:     TransformIMDBID(field("imdbId")),
		NumRatings: numRatings,
		Summary:    field("summary"),
		Weight:     float64(numRatings * recency),
	}, nil
}

// Len returns the catalog size.
func (c *Catalog) Len() int {
	return len(c.movies)
}

// MovieByURI returns the presentable entity for a catalog uri.
func (c *Catalog) MovieByURI(uri string) (models.Entity, bool) {
	idx, ok := c.byURI[uri]
	if !ok {
		return models.Entity{}, false
	}
	return c.toEntity(c.movies[idx]), true
}

// Sample draws n distinct movies weighted by the popularity prior,
// excluding the given uris. Returns fewer than n when the catalog cannot
// satisfy the request; callers treat short results as legitimate.
func (c *Catalog) Sample(n int, exclude map[string]struct{}) []models.Entity {
	if n <= 0 {
		return nil
	}

	candidates := make([]int, 0, len(c.movies))
	total := 0.0
	for i, m := range c.movies {
		if _, skip := exclude[m.URI]; skip {
			continue
		}
		candidates = append(candidates, i)
		total += m.Weight
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Entity, 0, n)
	for len(out) < n && len(candidates) > 0 {
		pick := c.weightedPickLocked(candidates, total)
		m := c.movies[candidates[pick]]
		out = append(out, c.toEntity(m))

		total -= m.Weight
		candidates[pick] = candidates[len(candidates)-1]
		candidates = candidates[:len(candidates)-1]
	}
	return out
}

// weightedPickLocked draws an index into candidates proportional to movie
// weight, falling back to uniform when weights sum to zero.
func (c *Catalog) weightedPickLocked(candidates []int, total float64) int {
	if total <= 0 {
		return c.rng.Intn(len(candidates))
	}
	target := c.rng.Float64() * total
	acc := 0.0
	for i, idx := range candidates {
		acc += c.movies[idx].Weight
		if target < acc {
			return i
		}
	}
	return len(candidates) - 1
}

func (c *Catalog) toEntity(m Movie) models.Entity {
	image := ""
	if m.IMDBID != "" && c.imageBaseURL != "" {
		image = fmt.Sprintf("%s/movie/%s", c.imageBaseURL, m.IMDBID)
	}
	return models.Entity{
		URI:      m.URI,
		Name:     fmt.Sprintf("%s (%d)", m.Title, m.Year),
		Category: models.CategoryMovie,
		IMDBID:   m.IMDBID,
		Summary:  m.Summary,
		Image:    image,
		Weight:   m.Weight,
	}
}

var parenRe = regexp.MustCompile(`\(.*\)`)

// leadingArticles are the articles the upstream ratings dump moves to a
// trailing ", X" suffix; TransformTitle moves them back to the front.
var leadingArticles = []string{
	"The", "A", "Les", "Le", "La", "El", "Die", "Der", "Das", "Il", "Los", "Las", "An",
}

// TransformTitle normalizes a ratings-dump title: strips parenthesized
// qualifiers and restores trailing articles ("Matrix, The" -> "The Matrix").
func TransformTitle(title string) string {
	title = strings.TrimSpace(parenRe.ReplaceAllString(title, ""))
	for _, article := range leadingArticles {
		suffix := ", " + article
		if strings.HasSuffix(title, suffix) {
			title = article + " " + strings.TrimSuffix(title, suffix)
			break
		}
	}
	return strings.TrimSpace(title)
}

// TransformIMDBID zero-pads a numeric IMDb id to the canonical tt-prefixed
// form. Already-prefixed ids pass through.
func TransformIMDBID(id string) string {
	if id == "" || strings.HasPrefix(id, "tt") {
		return id
	}
	return fmt.Sprintf("tt%07s", id)
}
