// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package models

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

func TestCategoryJSONRoundTrip(t *testing.T) {
	for _, cat := range []Category{CategoryMovie, CategoryPerson, CategorySubject, CategoryDecade, CategoryCompany} {
		data, err := json.Marshal(cat)
		if err != nil {
			t.Fatalf("marshal %v: %v", cat, err)
		}
		var got Category
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got != cat {
			t.Errorf("round trip %v = %v", cat, got)
		}
	}
}

func TestParseCategoryUnknown(t *testing.T) {
	if _, err := ParseCategory("starship"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestEntityLabel(t *testing.T) {
	tests := []struct {
		name   string
		entity Entity
		want   string
	}{
		{"movie", Entity{Category: CategoryMovie}, "Movie"},
		{"person with roles", Entity{Category: CategoryPerson, Roles: []string{"Actor", "Director"}}, "Actor, Director"},
		{"person without roles", Entity{Category: CategoryPerson}, "Person"},
		{"decade", Entity{Category: CategoryDecade}, "Decade"},
		{"company", Entity{Category: CategoryCompany}, "Company"},
		{"subject", Entity{Category: CategorySubject}, "Subject"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entity.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDedupeByURIKeepsFirst(t *testing.T) {
	in := []Entity{
		{URI: "a", Name: "first"},
		{URI: "b"},
		{URI: "a", Name: "second"},
	}
	out := DedupeByURI(in)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Name != "first" {
		t.Errorf("first occurrence did not win: %q", out[0].Name)
	}
}

func TestURIs(t *testing.T) {
	got := URIs([]Entity{{URI: "a"}, {URI: "b"}})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("URIs = %v", got)
	}
}

func TestSampleWeightPrefersScore(t *testing.T) {
	e := Entity{Score: 2.5, Weight: 10}
	if e.SampleWeight() != 2.5 {
		t.Errorf("SampleWeight = %v, want score", e.SampleWeight())
	}
	e.Score = 0
	if e.SampleWeight() != 10 {
		t.Errorf("SampleWeight = %v, want weight fallback", e.SampleWeight())
	}
}
