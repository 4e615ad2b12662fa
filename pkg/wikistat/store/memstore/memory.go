package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/cognicore/wikistat/pkg/wikistat/internalerr"
	"github.com/cognicore/wikistat/pkg/wikistat/page"
	"github.com/cognicore/wikistat/pkg/wikistat/store"
)

// Store is an in-memory implementation of store.Store for tests. Besides the
// keyed view it keeps every write in arrival order.
type Store struct {
	mu         sync.RWMutex
	runs       map[string]store.Run
	titleIndex map[string]int
	pages      []page.Record
	writes     []page.Record
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:       make(map[string]store.Run),
		titleIndex: make(map[string]int),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// StartRun implements store.Store.
func (s *Store) StartRun(ctx context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	return nil
}

// FinishRun implements store.Store.
func (s *Store) FinishRun(ctx context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.runs[r.ID]
	if !ok {
		return fmt.Errorf("run %s: %w", r.ID, internalerr.ErrNotFound)
	}
	existing.FinishedAt = r.FinishedAt
	existing.Status = r.Status
	existing.PagesRead = r.PagesRead
	existing.PagesWritten = r.PagesWritten
	existing.Issues = r.Issues
	s.runs[r.ID] = existing
	return nil
}

// GetRun implements store.Store.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok, nil
}

// WritePage stores a copy of rec, replacing any page with the same title.
func (s *Store) WritePage(ctx context.Context, runID string, rec page.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID != "" {
		if _, ok := s.runs[runID]; !ok {
			return fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
		}
	}

	rec = copyRecord(rec)
	s.writes = append(s.writes, rec)
	if rec.Title != "" {
		if i, ok := s.titleIndex[rec.Title]; ok {
			s.pages[i] = rec
			return nil
		}
		s.titleIndex[rec.Title] = len(s.pages)
	}
	s.pages = append(s.pages, rec)
	return nil
}

// GetPage implements store.Store.
func (s *Store) GetPage(ctx context.Context, title string) (page.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.titleIndex[title]
	if !ok {
		return page.Record{}, false, nil
	}
	return copyRecord(s.pages[i]), true, nil
}

// CountPages implements store.Store.
func (s *Store) CountPages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.pages)), nil
}

// Writes returns every record written, in arrival order.
func (s *Store) Writes() []page.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]page.Record, len(s.writes))
	for i, rec := range s.writes {
		out[i] = copyRecord(rec)
	}
	return out
}

func copyRecord(r page.Record) page.Record {
	out := r
	if r.Links != nil {
		out.Links = append([]string(nil), r.Links...)
	}
	if r.TopWords != nil {
		out.TopWords = append([]string(nil), r.TopWords...)
	}
	return out
}

var _ store.Store = (*Store)(nil)
