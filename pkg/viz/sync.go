// Package viz reconciles a community assignment with the rendered graph.
package viz

import (
	"github.com/ritzau/community-explorer/pkg/logging"
	"github.com/ritzau/community-explorer/pkg/model"
)

// Renderer is the contract of the rendering collaborator
type Renderer interface {
	// Clear removes every rendered element
	Clear()
	// Add renders elements; malformed descriptors are ignored
	Add(elements model.GraphElements)
	// NodeIDs lists rendered node ids in render order
	NodeIDs() []model.NodeID
	// SetNodeCommunity tags a rendered node and sets its fill color
	SetNodeCommunity(id model.NodeID, community model.CommunityID, color string)
	// RunLayout starts one force-directed layout pass. A new call supersedes
	// any pass still running.
	RunLayout()
}

// Sync keeps a Renderer consistent with the session's graph and assignment
type Sync struct {
	renderer Renderer
}

// NewSync creates a visualization sync for renderer
func NewSync(renderer Renderer) *Sync {
	return &Sync{renderer: renderer}
}

// Result summarizes one reconciliation
type Result struct {
	Nodes     int // rendered nodes
	Colored   int // nodes matched to an assignment entry
	Unmatched int // assignment entries with no rendered node
}

// Apply re-renders the whole element set and colors nodes by community.
// The graph is cleared and re-added on every call rather than diffed, so no
// node or edge from a previous dataset can survive a switch.
func (s *Sync) Apply(elements model.GraphElements, assignment model.CommunityAssignment) Result {
	s.renderer.Clear()
	s.renderer.Add(elements)

	nodes := s.renderer.NodeIDs()
	result := Result{Nodes: len(nodes)}

	if len(assignment) > 0 {
		index := assignment.ByNode()
		for _, id := range nodes {
			entry, ok := index[id]
			if !ok {
				continue
			}
			s.renderer.SetNodeCommunity(id, entry.Community, ColorFor(entry.Community))
			result.Colored++
		}
		// Entries for unknown nodes are stale, not errors
		result.Unmatched = len(index) - result.Colored
	}

	s.renderer.RunLayout()

	logging.Debug("visualization synced",
		"nodes", result.Nodes,
		"colored", result.Colored,
		"unmatched", result.Unmatched,
	)
	return result
}
