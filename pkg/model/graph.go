package model

// ElementData holds the fields of a node or edge descriptor.
// Nodes carry ID (and optionally Label); edges carry Source and Target.
type ElementData struct {
	ID     NodeID `json:"id,omitempty"`
	Label  string `json:"label,omitempty"`
	Source NodeID `json:"source,omitempty"`
	Target NodeID `json:"target,omitempty"`
}

// Element is a graph element in the shape served by the backend:
// {"data": {"id": "1", "label": "1"}} for nodes and
// {"data": {"source": "1", "target": "2"}} for edges.
type Element struct {
	Data ElementData `json:"data"`
}

// NodeElement builds a node descriptor
func NodeElement(id, label string) Element {
	return Element{Data: ElementData{ID: NodeID(id), Label: label}}
}

// EdgeElement builds an edge descriptor
func EdgeElement(source, target string) Element {
	return Element{Data: ElementData{Source: NodeID(source), Target: NodeID(target)}}
}

// IsEdge reports whether the element describes an edge
func (e Element) IsEdge() bool {
	return e.Data.Source != "" && e.Data.Target != ""
}

// IsNode reports whether the element describes a node
func (e Element) IsNode() bool {
	return e.Data.ID != "" && e.Data.Source == "" && e.Data.Target == ""
}

// GraphElements is the ordered element set of a loaded graph.
// It is replaced wholesale on every load and never mutated in place.
type GraphElements []Element

// Counts returns the number of node and edge descriptors; malformed elements are not counted
func (g GraphElements) Counts() (nodes, edges int) {
	for _, e := range g {
		switch {
		case e.IsNode():
			nodes++
		case e.IsEdge():
			edges++
		}
	}
	return nodes, edges
}
