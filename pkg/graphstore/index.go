package graphstore

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/ritzau/community-explorer/pkg/model"
)

// Index is an undirected gonum graph over the node descriptors of a GraphElements set
type Index struct {
	graph *simple.UndirectedGraph
	ids   map[model.NodeID]int64 // node id -> graph id
	nodes []model.NodeID         // graph id -> node id, in element order
	skips int                    // malformed or dangling descriptors
}

// BuildIndex indexes elements. Malformed descriptors, self loops and edges
// with an unknown endpoint are skipped and counted.
func BuildIndex(elements model.GraphElements) *Index {
	idx := &Index{
		graph: simple.NewUndirectedGraph(),
		ids:   make(map[model.NodeID]int64),
	}

	// Nodes first so edges listed before their endpoints still resolve
	for _, e := range elements {
		if !e.IsNode() {
			continue
		}
		if _, exists := idx.ids[e.Data.ID]; exists {
			idx.skips++
			continue
		}
		id := int64(len(idx.nodes))
		idx.ids[e.Data.ID] = id
		idx.nodes = append(idx.nodes, e.Data.ID)
		idx.graph.AddNode(simple.Node(id))
	}

	for _, e := range elements {
		switch {
		case e.IsNode():
			continue
		case !e.IsEdge():
			idx.skips++
			continue
		}

		from, okFrom := idx.ids[e.Data.Source]
		to, okTo := idx.ids[e.Data.Target]
		if !okFrom || !okTo || from == to {
			idx.skips++
			continue
		}
		if !idx.graph.HasEdgeBetween(from, to) {
			idx.graph.SetEdge(idx.graph.NewEdge(simple.Node(from), simple.Node(to)))
		}
	}

	return idx
}

// Graph returns the underlying undirected graph
func (idx *Index) Graph() *simple.UndirectedGraph {
	return idx.graph
}

// GraphID returns the gonum id of a node
func (idx *Index) GraphID(id model.NodeID) (int64, bool) {
	gid, ok := idx.ids[id]
	return gid, ok
}

// Summary describes an indexed graph
type Summary struct {
	Nodes    int `json:"nodes"`
	Edges    int `json:"edges"`
	Isolated int `json:"isolated"`
	Skipped  int `json:"skipped"`
}

// Summary counts nodes, distinct edges, isolated nodes and skipped descriptors
func (idx *Index) Summary() Summary {
	s := Summary{
		Nodes:   idx.graph.Nodes().Len(),
		Edges:   idx.graph.Edges().Len(),
		Skipped: idx.skips,
	}
	for gid := range idx.nodes {
		if idx.graph.From(int64(gid)).Len() == 0 {
			s.Isolated++
		}
	}
	return s
}
