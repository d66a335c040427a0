// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package models

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Category classifies a ratable entity. Every entity carries exactly one
// category; person roles (actor, director) are kept separately in
// Entity.Roles since a person can hold several.
type Category int

const (
	// CategoryMovie is a feature film.
	CategoryMovie Category = iota
	// CategoryPerson is an actor, director, or other film person.
	CategoryPerson
	// CategorySubject is a subject/genre-like topic node.
	CategorySubject
	// CategoryDecade is a release-decade bucket (e.g. "1990s").
	CategoryDecade
	// CategoryCompany is a production company or studio.
	CategoryCompany
)

// categoryNames maps categories to their wire/display names.
var categoryNames = map[Category]string{
	CategoryMovie:   "movie",
	CategoryPerson:  "person",
	CategorySubject: "subject",
	CategoryDecade:  "decade",
	CategoryCompany: "company",
}

// String returns the lowercase wire name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCategory converts a wire name into a Category.
func ParseCategory(s string) (Category, error) {
	for cat, name := range categoryNames {
		if name == strings.ToLower(s) {
			return cat, nil
		}
	}
	return CategoryMovie, fmt.Errorf("unknown entity category %q", s)
}

// MarshalJSON encodes the category as its wire name.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a category from its wire name.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Entity is any ratable or recommendable node: a movie, a film person, a
// subject, a decade bucket, or a production company.
//
// URI is the only identity key; set membership and deduplication compare
// URIs and nothing else.
type Entity struct {
	// URI is the globally stable identifier. Never empty.
	URI string `json:"uri"`

	// Name is the display name, e.g. "Heat (1995)" or "Michael Mann".
	Name string `json:"name"`

	// Category is the entity kind.
	Category Category `json:"category"`

	// Roles lists person roles for display ("Actor", "Director").
	// Empty for non-person entities.
	Roles []string `json:"roles,omitempty"`

	// IMDBID is the zero-padded IMDb identifier (tt0113277), if known.
	IMDBID string `json:"imdb_id,omitempty"`

	// Summary is an optional plot or biography blurb.
	Summary string `json:"summary,omitempty"`

	// Image is an optional poster or profile image URL.
	Image string `json:"image,omitempty"`

	// Movies lists a few representative movie titles for context when the
	// entity itself is not a movie.
	Movies []string `json:"movies,omitempty"`

	// Score is the source-dependent relevance weight. For graph results it
	// is the connectivity score; zero when the source assigns none.
	Score float64 `json:"score,omitempty"`

	// Weight is the static popularity prior, used for sampling when Score
	// is absent.
	Weight float64 `json:"weight,omitempty"`
}

// Label returns the human-readable kind description used as the stable
// presentation sort key, e.g. "Actor, Director" or "Movie".
func (e Entity) Label() string {
	if e.Category == CategoryPerson && len(e.Roles) > 0 {
		return strings.Join(e.Roles, ", ")
	}
	switch e.Category {
	case CategoryMovie:
		return "Movie"
	case CategoryPerson:
		return "Person"
	case CategorySubject:
		return "Subject"
	case CategoryDecade:
		return "Decade"
	case CategoryCompany:
		return "Company"
	}
	return "Unknown"
}

// SampleWeight returns the weight to use for score-proportional draws:
// Score when present, otherwise the popularity prior.
func (e Entity) SampleWeight() float64 {
	if e.Score > 0 {
		return e.Score
	}
	return e.Weight
}

// URIs extracts the URI of every entity, preserving order.
func URIs(entities []Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.URI
	}
	return out
}

// DedupeByURI removes duplicate URIs keeping the first occurrence.
func DedupeByURI(entities []Entity) []Entity {
	seen := make(map[string]struct{}, len(entities))
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if _, dup := seen[e.URI]; dup {
			continue
		}
		seen[e.URI] = struct{}{}
		out = append(out, e)
	}
	return out
}
