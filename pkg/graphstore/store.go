// Package graphstore holds the dataset list and the currently loaded graph.
package graphstore

import (
	"sync"

	"github.com/ritzau/community-explorer/pkg/model"
)

// Store is the session's graph data holder. Elements are replaced wholesale
// on every load; readers always get copies.
type Store struct {
	mu       sync.RWMutex
	datasets []model.Dataset
	graphID  string
	elements model.GraphElements
	index    *Index
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		datasets: []model.Dataset{},
		elements: model.GraphElements{},
		index:    BuildIndex(nil),
	}
}

// SetDatasets replaces the dataset list
func (s *Store) SetDatasets(datasets []model.Dataset) {
	next := make([]model.Dataset, len(datasets))
	copy(next, datasets)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets = next
}

// Datasets returns a copy of the dataset list
func (s *Store) Datasets() []model.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Dataset, len(s.datasets))
	copy(out, s.datasets)
	return out
}

// HasDataset reports whether id is in the current listing
func (s *Store) HasDataset(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.datasets {
		if d.ID == id {
			return true
		}
	}
	return false
}

// SetGraph replaces the loaded graph and rebuilds its index
func (s *Store) SetGraph(graphID string, elements model.GraphElements) Summary {
	next := make(model.GraphElements, len(elements))
	copy(next, elements)
	index := BuildIndex(next)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphID = graphID
	s.elements = next
	s.index = index
	return index.Summary()
}

// GraphID returns the id of the loaded graph, empty if none
func (s *Store) GraphID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graphID
}

// Elements returns a copy of the loaded element set
func (s *Store) Elements() model.GraphElements {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(model.GraphElements, len(s.elements))
	copy(out, s.elements)
	return out
}

// Index returns the index of the loaded graph. Indexes are immutable once built.
func (s *Store) Index() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}
