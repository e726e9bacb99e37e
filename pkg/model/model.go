package model

import (
	"errors"
	"fmt"
)

// ErrUnknownAlgorithm is returned when an algorithm identifier is not one of the supported set
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// Dataset describes a graph the backend can serve
type Dataset struct {
	ID   string `json:"id"`   // Backend identifier (e.g., "karate.gml")
	Name string `json:"name"` // Human-readable name
}

// Algorithm identifies a community detection algorithm offered by the backend
type Algorithm string

const (
	AlgorithmLabelPropagation  Algorithm = "label_propagation"
	AlgorithmModularityExact   Algorithm = "modularity_exact"
	AlgorithmCliquePercolation Algorithm = "clique_percolation"
	AlgorithmLouvainBaseline   Algorithm = "louvain_baseline"
)

// DefaultAlgorithm is selected at session start
const DefaultAlgorithm = AlgorithmLabelPropagation

var displayNames = map[Algorithm]string{
	AlgorithmLabelPropagation:  "Label Propagation (LPA)",
	AlgorithmModularityExact:   "Modularity Exact (ASP)",
	AlgorithmCliquePercolation: "Clique Percolation (ASP)",
	AlgorithmLouvainBaseline:   "Louvain Baseline (NX)",
}

// Algorithms returns the supported algorithms in menu order
func Algorithms() []Algorithm {
	return []Algorithm{
		AlgorithmLabelPropagation,
		AlgorithmModularityExact,
		AlgorithmCliquePercolation,
		AlgorithmLouvainBaseline,
	}
}

// ParseAlgorithm validates an algorithm identifier
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(s)
	if _, ok := displayNames[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
	return a, nil
}

// DisplayName returns the menu label for the algorithm, or the raw identifier if unknown
func (a Algorithm) DisplayName() string {
	if name, ok := displayNames[a]; ok {
		return name
	}
	return string(a)
}

func (a Algorithm) String() string {
	return string(a)
}

// RunRecord captures one analysis outcome for cross-run comparison.
// Records are values and are never modified after creation.
type RunRecord struct {
	Algorithm      Algorithm `json:"algorithm"`
	Modularity     float64   `json:"modularity"`
	NumCommunities int       `json:"numCommunities"`
}
