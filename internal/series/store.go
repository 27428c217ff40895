// Package series owns the base price series for one symbol view. The store
// is the single source of truth for the chart's x/y domain.
package series

import "stockwatch/internal/model"

// Store holds exactly one base Series at a time. It is confined to the
// session loop goroutine, so no locking is needed. Replace is the only
// mutator: the series is swapped wholesale, never edited in place.
type Store struct {
	series  model.Series
	version uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a freshly fetched series. Each swap bumps the version so
// downstream caches (the default viewport range) know to recompute.
func (s *Store) Replace(ns model.Series) {
	s.series = ns
	s.version++
}

// Current returns the held series. Callers must treat it as read-only.
func (s *Store) Current() model.Series {
	return s.series
}

// Empty reports whether no history has been loaded yet.
func (s *Store) Empty() bool {
	return len(s.series.Points) == 0
}

// Version returns the replace counter.
func (s *Store) Version() uint64 {
	return s.version
}
