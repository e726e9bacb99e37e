package graphstore

import (
	"testing"

	"github.com/ritzau/community-explorer/pkg/model"
)

func TestBuildIndex(t *testing.T) {
	elements := model.GraphElements{
		model.EdgeElement("1", "2"), // listed before its endpoints
		model.NodeElement("1", "1"),
		model.NodeElement("2", "2"),
		model.NodeElement("3", "3"),
		model.EdgeElement("2", "1"), // duplicate in the other direction
		model.EdgeElement("2", "2"), // self loop
		model.EdgeElement("2", "9"), // dangling
		{},                          // malformed
	}

	idx := BuildIndex(elements)
	s := idx.Summary()

	if s.Nodes != 3 {
		t.Errorf("Expected 3 nodes, got %d", s.Nodes)
	}
	if s.Edges != 1 {
		t.Errorf("Expected 1 edge, got %d", s.Edges)
	}
	if s.Isolated != 1 {
		t.Errorf("Expected 1 isolated node, got %d", s.Isolated)
	}
	if s.Skipped != 3 {
		t.Errorf("Expected 3 skipped descriptors, got %d", s.Skipped)
	}
	if _, ok := idx.GraphID("9"); ok {
		t.Error("dangling endpoint should not be indexed")
	}

	gid, ok := idx.GraphID("2")
	if !ok {
		t.Fatal("Expected graph id for node 2")
	}
	if n := idx.Graph().From(gid).Len(); n != 1 {
		t.Errorf("Expected degree 1 for node 2, got %d", n)
	}
}

func TestStore_SetGraphReplacesWholesale(t *testing.T) {
	s := NewStore()
	s.SetGraph("a", model.GraphElements{model.NodeElement("1", "1"), model.NodeElement("2", "2")})
	summary := s.SetGraph("b", model.GraphElements{model.NodeElement("x", "x")})

	if s.GraphID() != "b" {
		t.Errorf("GraphID = %q, want b", s.GraphID())
	}
	if summary.Nodes != 1 || len(s.Elements()) != 1 {
		t.Errorf("expected only graph b's element, got %v", s.Elements())
	}
	if _, ok := s.Index().GraphID("1"); ok {
		t.Error("index still contains a node from the previous graph")
	}
}

func TestStore_ElementsIsACopy(t *testing.T) {
	s := NewStore()
	s.SetGraph("a", model.GraphElements{model.NodeElement("1", "1")})

	elements := s.Elements()
	elements[0].Data.ID = "mutated"

	if s.Elements()[0].Data.ID != "1" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestStore_Datasets(t *testing.T) {
	s := NewStore()
	s.SetDatasets([]model.Dataset{{ID: "karate", Name: "Karate Club"}})

	if !s.HasDataset("karate") || s.HasDataset("dolphins") {
		t.Error("HasDataset disagrees with listing")
	}
	s.SetDatasets([]model.Dataset{{ID: "dolphins", Name: "Dolphins"}})
	if s.HasDataset("karate") {
		t.Error("listing should be replaced, not merged")
	}
}
