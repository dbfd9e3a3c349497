// Package memory is an in-memory document store used by tests and local
// development runs without remote credentials.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pocketbook/internal/remote"
)

type Store struct {
	mu   sync.Mutex
	docs map[string]map[string]remote.Doc

	// FailCommits makes that many subsequent Commit calls fail, for
	// exercising push-failure paths.
	FailCommits int
	commits     int
}

func New() *Store {
	return &Store{docs: make(map[string]map[string]remote.Doc)}
}

// Commit applies the batch under one lock so a concurrent ListAll never
// observes a half-applied batch.
func (s *Store) Commit(_ context.Context, writes []remote.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCommits > 0 {
		s.FailCommits--
		return fmt.Errorf("memory store: injected commit failure")
	}
	s.commits++

	for _, w := range writes {
		col := s.docs[w.Collection]
		if col == nil {
			col = make(map[string]remote.Doc)
			s.docs[w.Collection] = col
		}
		if w.Delete {
			delete(col, w.ID)
			continue
		}
		col[w.ID] = remote.Doc{ID: w.ID, Data: append([]byte(nil), w.Data...)}
	}
	return nil
}

func (s *Store) ListAll(_ context.Context, collection string) ([]remote.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.docs[collection]
	out := make([]remote.Doc, 0, len(col))
	for _, d := range col {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Commits reports how many batches have been applied.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Seed replaces a collection's contents, for arranging pull-phase fixtures.
func (s *Store) Seed(collection string, docs []remote.Doc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := make(map[string]remote.Doc, len(docs))
	for _, d := range docs {
		col[d.ID] = d
	}
	s.docs[collection] = col
}
