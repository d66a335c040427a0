// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package dataset

import (
	"strings"
	"testing"

	"github.com/mindreader-tech/mindreader/internal/models"
)

const testCSV = `movieId,uri,title,year,imdbId,numRatings,summary
1,uri:m1,"Matrix, The (1999)",1999,133093,50000,A hacker learns the truth.
2,uri:m2,"Amelie (Fabuleux destin d'Amélie Poulain, Le) (2001)",2001,211915,30000,A whimsical Parisian tale.
3,uri:m3,Inception (2010),2010,tt1375666,40000,Dreams within dreams.
4,uri:m4,Obscure Short (1921),1921,12349,3,Forgotten.
`

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Read(strings.NewReader(testCSV), Options{
		ImageBaseURL: "https://img.example.com/",
		Seed:         42,
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return c
}

func TestTransformTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Matrix, The (1999)", "The Matrix"},
		{"Fabuleux destin d'Amélie Poulain, Le (2001)", "Le Fabuleux destin d'Amélie Poulain"},
		{"Inception (2010)", "Inception"},
		{"City of Lost Children, The (Cité des enfants perdus, La) (1995)", "The City of Lost Children"},
		{"Léon: The Professional (1994)", "Léon: The Professional"},
	}
	for _, tt := range tests {
		if got := TransformTitle(tt.in); got != tt.want {
			t.Errorf("TransformTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTransformIMDBID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"133093", "tt0133093"},
		{"1375666", "tt1375666"},
		{"tt1375666", "tt1375666"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TransformIMDBID(tt.in); got != tt.want {
			t.Errorf("TransformIMDBID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadCatalog(t *testing.T) {
	c := testCatalog(t)

	if c.Len() != 4 {
		t.Fatalf("Len = %d, want 4", c.Len())
	}

	e, ok := c.MovieByURI("uri:m1")
	if !ok {
		t.Fatal("uri:m1 not found")
	}
	if e.Name != "The Matrix (1999)" {
		t.Errorf("Name = %q", e.Name)
	}
	if e.Category != models.CategoryMovie {
		t.Errorf("Category = %v", e.Category)
	}
	if e.IMDBID != "tt0133093" {
		t.Errorf("IMDBID = %q", e.IMDBID)
	}
	if e.Image != "https://img.example.com/movie/tt0133093" {
		t.Errorf("Image = %q", e.Image)
	}
}

func TestWeightComputation(t *testing.T) {
	c := testCatalog(t)

	// 2010 movie with 40000 ratings: 40000 * 10.
	if e, _ := c.MovieByURI("uri:m3"); e.Weight != 400000 {
		t.Errorf("uri:m3 weight = %v, want 400000", e.Weight)
	}
	// Pre-2000 movie clamps the recency factor to 1.
	if e, _ := c.MovieByURI("uri:m4"); e.Weight != 3 {
		t.Errorf("uri:m4 weight = %v, want 3", e.Weight)
	}
}

func TestSampleRespectsExclusions(t *testing.T) {
	c := testCatalog(t)

	exclude := map[string]struct{}{"uri:m1": {}, "uri:m3": {}}
	got := c.Sample(10, exclude)

	if len(got) != 2 {
		t.Fatalf("Sample returned %d entities, want 2", len(got))
	}
	for _, e := range got {
		if _, bad := exclude[e.URI]; bad {
			t.Errorf("excluded uri %s sampled", e.URI)
		}
	}
}

func TestSampleDistinct(t *testing.T) {
	c := testCatalog(t)

	for range 20 {
		got := c.Sample(4, nil)
		seen := make(map[string]struct{}, len(got))
		for _, e := range got {
			if _, dup := seen[e.URI]; dup {
				t.Fatalf("duplicate uri %s in draw", e.URI)
			}
			seen[e.URI] = struct{}{}
		}
	}
}

func TestSampleFavorsPopular(t *testing.T) {
	c := testCatalog(t)

	// First pick over many single draws should land on the heavy entries
	// far more often than the near-zero-weight one.
	hits := 0
	for range 200 {
		got := c.Sample(1, nil)
		if len(got) == 1 && got[0].URI == "uri:m4" {
			hits++
		}
	}
	if hits > 10 {
		t.Errorf("near-zero-weight movie drawn %d/200 times", hits)
	}
}

func TestReadRejectsMissingColumns(t *testing.T) {
	_, err := Read(strings.NewReader("uri,title\nuri:x,X\n"), Options{Seed: 1})
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestReadRejectsEmptyCatalog(t *testing.T) {
	_, err := Read(strings.NewReader("movieId,uri,title,year,imdbId,numRatings,summary\n"), Options{Seed: 1})
	if err == nil {
		t.Fatal("expected error for empty catalog")
	}
}
