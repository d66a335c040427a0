// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package models

import (
	"errors"
	"strings"
	"time"
)

// SchemaVersion is stamped into every newly created session. Versioning is
// by month and year, matching the cadence of elicitation algorithm changes.
const SchemaVersion = "august-2026"

// Polarity names one of the three feedback sets of a session.
type Polarity string

const (
	// Liked marks entities the user gave positive feedback on.
	Liked Polarity = "liked"
	// Disliked marks entities the user gave negative feedback on.
	Disliked Polarity = "disliked"
	// Unknown marks entities the user did not recognize.
	Unknown Polarity = "unknown"
)

// ErrEmptyToken is returned for blank session tokens.
var ErrEmptyToken = errors.New("empty session token")

// Token is a compound session identifier of the form "<head>+<suffix>".
// The head identifies a logical user across concurrent sessions (tabs,
// devices); the suffix distinguishes one session instance. A token without
// a '+' is its own head.
type Token struct {
	Head   string
	Suffix string
}

// ParseToken splits a raw token into head and suffix on the first '+'.
func ParseToken(raw string) (Token, error) {
	if strings.TrimSpace(raw) == "" {
		return Token{}, ErrEmptyToken
	}
	head, suffix, _ := strings.Cut(raw, "+")
	return Token{Head: head, Suffix: suffix}, nil
}

// String reassembles the verbatim token. Tokens containing '+' are
// load-bearing for the head/suffix split and are never sanitized.
func (t Token) String() string {
	if t.Suffix == "" {
		return t.Head
	}
	return t.Head + "+" + t.Suffix
}

// Session is one user's elicitation history under one session token.
//
// The zero value is not usable; construct with NewSession so the schema
// version is stamped and the JSON document always serializes its lists as
// arrays rather than null.
type Session struct {
	Liked    []string `json:"liked"`
	Disliked []string `json:"disliked"`
	Unknown  []string `json:"unknown"`

	// PopularitySampled records filler entities shown to the user that
	// have not been rated yet.
	PopularitySampled []string `json:"popularity_sampled"`

	// Timestamps holds one epoch-seconds entry per feedback submission.
	Timestamps []float64 `json:"timestamps"`

	// Final is set exactly once by the terminal feedback action. It is
	// monotonic unless a later finalize call explicitly overwrites it.
	Final bool `json:"final"`

	// Version is the schema/algorithm version at session creation.
	Version string `json:"version"`
}

// NewSession returns an empty session stamped with the current schema version.
func NewSession() *Session {
	return &Session{
		Liked:             []string{},
		Disliked:          []string{},
		Unknown:           []string{},
		PopularitySampled: []string{},
		Timestamps:        []float64{},
		Version:           SchemaVersion,
	}
}

// Set returns the named feedback set.
func (s *Session) Set(p Polarity) []string {
	switch p {
	case Liked:
		return s.Liked
	case Disliked:
		return s.Disliked
	case Unknown:
		return s.Unknown
	}
	return nil
}

// Apply merges one feedback submission into the session and appends a
// timestamp. A later classification wins: each incoming uri is first
// removed from every other set it previously occupied, so no uri ever
// lives in two polarity sets at once.
func (s *Session) Apply(liked, disliked, unknown []string, at time.Time) {
	s.reclassify(liked, &s.Liked, &s.Disliked, &s.Unknown)
	s.reclassify(disliked, &s.Disliked, &s.Liked, &s.Unknown)
	s.reclassify(unknown, &s.Unknown, &s.Liked, &s.Disliked)
	s.Timestamps = append(s.Timestamps, float64(at.UnixNano())/1e9)
}

// reclassify moves each uri into target, evicting it from the other sets.
func (s *Session) reclassify(uris []string, target, otherA, otherB *[]string) {
	for _, uri := range uris {
		*otherA = remove(*otherA, uri)
		*otherB = remove(*otherB, uri)
		if !contains(*target, uri) {
			*target = append(*target, uri)
		}
	}
}

// AddPopularitySampled records filler uris shown to the user, skipping ones
// already recorded or already rated.
func (s *Session) AddPopularitySampled(uris []string) {
	for _, uri := range uris {
		if contains(s.PopularitySampled, uri) ||
			contains(s.Liked, uri) || contains(s.Disliked, uri) || contains(s.Unknown, uri) {
			continue
		}
		s.PopularitySampled = append(s.PopularitySampled, uri)
	}
}

// Rated returns liked and disliked uris, in first-seen order.
func (s *Session) Rated() []string {
	out := make([]string, 0, len(s.Liked)+len(s.Disliked))
	out = append(out, s.Liked...)
	out = append(out, s.Disliked...)
	return out
}

// Seen returns every uri the user has responded to in any way.
func (s *Session) Seen() []string {
	out := make([]string, 0, len(s.Liked)+len(s.Disliked)+len(s.Unknown))
	out = append(out, s.Liked...)
	out = append(out, s.Disliked...)
	out = append(out, s.Unknown...)
	return out
}

// IsEmpty reports whether the session carries no feedback at all.
func (s *Session) IsEmpty() bool {
	return len(s.Liked) == 0 && len(s.Disliked) == 0 && len(s.Unknown) == 0
}

// Normalize backfills nil slices after JSON decoding of hand-edited or
// legacy documents. A corrupt record is handled upstream; this only repairs
// shape, not content.
func (s *Session) Normalize() {
	if s.Liked == nil {
		s.Liked = []string{}
	}
	if s.Disliked == nil {
		s.Disliked = []string{}
	}
	if s.Unknown == nil {
		s.Unknown = []string{}
	}
	if s.PopularitySampled == nil {
		s.PopularitySampled = []string{}
	}
	if s.Timestamps == nil {
		s.Timestamps = []float64{}
	}
	if s.Version == "" {
		s.Version = SchemaVersion
	}
}

func contains(list []string, uri string) bool {
	for _, v := range list {
		if v == uri {
			return true
		}
	}
	return false
}

func remove(list []string, uri string) []string {
	out := list[:0]
	for _, v := range list {
		if v != uri {
			out = append(out, v)
		}
	}
	return out
}
