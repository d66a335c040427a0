// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

// Package session persists elicitation sessions as one JSON document per
// token and merges preference history across sessions that share a token
// head.
//
// A token "u1+abc" names the session document "u1+abc.json"; every session
// whose token starts with head "u1" belongs to the same head group and
// contributes to cross-session seeds.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/mindreader-tech/mindreader/internal/logging"
	"github.com/mindreader-tech/mindreader/internal/metrics"
	"github.com/mindreader-tech/mindreader/internal/models"
)

// headGroup caches every session sharing one token head. Its mutex
// serializes all operations within the group; groups for different heads
// run fully in parallel.
type headGroup struct {
	mu sync.Mutex

	scanned bool
	// sessions caches decoded documents by full token string.
	sessions map[string]*models.Session
	// keys lists every known full token in the group.
	keys []string
}

// Store is the file-backed session store. Safe for concurrent use; the
// store-wide lock only guards the head-group table, everything else is
// per-head.
type Store struct {
	dir string

	mu     sync.Mutex
	groups map[string]*headGroup
}

// NewStore opens (creating if needed) the session directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &Store{
		dir:    dir,
		groups: make(map[string]*headGroup),
	}, nil
}

// group returns head's group, creating it on first use.
func (s *Store) group(head string) *headGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[head]
	if !ok {
		g = &headGroup{sessions: make(map[string]*models.Session)}
		s.groups[head] = g
	}
	return g
}

// Load returns the session for tok, creating an empty one if none exists.
// A document that fails to read or decode is replaced by a fresh empty
// session rather than failing the request; the next write overwrites it.
func (s *Store) Load(tok models.Token) (*models.Session, error) {
	g := s.group(tok.Head)
	g.mu.Lock()
	defer g.mu.Unlock()
	return s.loadLocked(g, tok), nil
}

func (s *Store) loadLocked(g *headGroup, tok models.Token) *models.Session {
	key := tok.String()
	if sess, ok := g.sessions[key]; ok {
		return sess
	}

	s.scanLocked(g, tok.Head)

	sess := s.readDocument(key)
	g.sessions[key] = sess
	addKeyLocked(g, key)
	return sess
}

// readDocument reads one session document from disk. Missing files yield a
// fresh session; corrupt or unreadable files are logged, counted, and
// replaced. Losing one submission's history beats refusing the request.
func (s *Store) readDocument(key string) *models.Session {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		metrics.SessionStoreReads.WithLabelValues("miss").Inc()
		return models.NewSession()
	}
	if err != nil {
		metrics.SessionStoreReads.WithLabelValues("unreadable").Inc()
		logging.Warn().Err(err).Str("token", key).Msg("unreadable session document, starting fresh")
		return models.NewSession()
	}

	sess := &models.Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		metrics.SessionStoreReads.WithLabelValues("corrupt").Inc()
		logging.Warn().Err(err).Str("token", key).Msg("corrupt session document, starting fresh")
		return models.NewSession()
	}
	sess.Normalize()
	metrics.SessionStoreReads.WithLabelValues("hit").Inc()
	return sess
}

// scanLocked indexes every on-disk session sharing the group's head. A
// failed scan fails open with an empty sibling list and is retried on the
// next load.
func (s *Store) scanLocked(g *headGroup, head string) {
	if g.scanned {
		return
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logging.Warn().Err(err).Str("head", head).Msg("session dir scan failed, siblings unavailable")
		return
	}
	g.scanned = true

	prefix := head + "+"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || !strings.HasPrefix(name, prefix) {
			continue
		}
		addKeyLocked(g, strings.TrimSuffix(name, ".json"))
	}
	metrics.SessionHeadGroupSize.Observe(float64(len(g.keys)))
}

func addKeyLocked(g *headGroup, key string) {
	for _, existing := range g.keys {
		if existing == key {
			return
		}
	}
	g.keys = append(g.keys, key)
}

// Append records one feedback submission: each uri moves to its stated set
// (later classification wins) and the session is persisted. Marks the
// session final when final is true.
func (s *Store) Append(tok models.Token, liked, disliked, unknown []string, at time.Time, final bool) (*models.Session, error) {
	g := s.group(tok.Head)
	g.mu.Lock()
	defer g.mu.Unlock()

	sess := s.loadLocked(g, tok)
	sess.Apply(liked, disliked, unknown, at)
	if final {
		sess.Final = true
	}
	if err := s.persist(tok, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// RecordSampled adds popularity-sampled uris to the session so the base
// sampler never re-presents them, and persists.
func (s *Store) RecordSampled(tok models.Token, uris []string) error {
	g := s.group(tok.Head)
	g.mu.Lock()
	defer g.mu.Unlock()

	sess := s.loadLocked(g, tok)
	sess.AddPopularitySampled(uris)
	return s.persist(tok, sess)
}

func (s *Store) persist(tok models.Token, sess *models.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	key := tok.String()
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write session %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("replace session %s: %w", key, err)
	}
	metrics.SessionStoreWrites.Inc()
	return nil
}

// CrossSessionEntities merges one polarity's uris across every session in
// tok's head group. The requested session contributes first in its own
// recording order; sibling sessions follow in sorted token order.
// Duplicates keep their first occurrence.
func (s *Store) CrossSessionEntities(tok models.Token, p models.Polarity) ([]string, error) {
	g := s.group(tok.Head)
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, sess := range s.headGroupLocked(g, tok) {
		for _, uri := range sess.Set(p) {
			if _, dup := seen[uri]; dup {
				continue
			}
			seen[uri] = struct{}{}
			out = append(out, uri)
		}
	}
	return out, nil
}

// SeenEntities returns every uri ever presented to tok's head group:
// rated, explicitly unknown, or popularity-sampled.
func (s *Store) SeenEntities(tok models.Token) (map[string]struct{}, error) {
	g := s.group(tok.Head)
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]struct{})
	for _, sess := range s.headGroupLocked(g, tok) {
		for _, uri := range sess.Seen() {
			seen[uri] = struct{}{}
		}
		for _, uri := range sess.PopularitySampled {
			seen[uri] = struct{}{}
		}
	}
	return seen, nil
}

// RatedEntities returns the uris the head group has classified as liked or
// disliked.
func (s *Store) RatedEntities(tok models.Token) (liked, disliked []string, err error) {
	liked, err = s.CrossSessionEntities(tok, models.Liked)
	if err != nil {
		return nil, nil, err
	}
	disliked, err = s.CrossSessionEntities(tok, models.Disliked)
	if err != nil {
		return nil, nil, err
	}
	return liked, disliked, nil
}

// headGroupLocked loads every session in tok's head group, the requested
// session first and siblings in sorted token order.
func (s *Store) headGroupLocked(g *headGroup, tok models.Token) []*models.Session {
	own := s.loadLocked(g, tok)

	key := tok.String()
	siblings := make([]string, 0, len(g.keys))
	for _, other := range g.keys {
		if other != key {
			siblings = append(siblings, other)
		}
	}
	sort.Strings(siblings)

	group := []*models.Session{own}
	for _, other := range siblings {
		otherTok, err := models.ParseToken(other)
		if err != nil {
			continue
		}
		group = append(group, s.loadLocked(g, otherTok))
	}
	return group
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
