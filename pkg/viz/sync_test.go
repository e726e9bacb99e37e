package viz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/ritzau/community-explorer/pkg/model"
)

// fakeRenderer records what Sync asks of it
type fakeRenderer struct {
	nodes   []model.NodeID
	colors  map[model.NodeID]string
	clears  int
	layouts int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{colors: map[model.NodeID]string{}}
}

func (f *fakeRenderer) Clear() {
	f.clears++
	f.nodes = nil
	f.colors = map[model.NodeID]string{}
}

func (f *fakeRenderer) Add(elements model.GraphElements) {
	for _, e := range elements {
		if e.IsNode() {
			f.nodes = append(f.nodes, e.Data.ID)
			f.colors[e.Data.ID] = NeutralColor
		}
	}
}

func (f *fakeRenderer) NodeIDs() []model.NodeID { return f.nodes }

func (f *fakeRenderer) SetNodeCommunity(id model.NodeID, community model.CommunityID, color string) {
	f.colors[id] = color
}

func (f *fakeRenderer) RunLayout() { f.layouts++ }

var karate = model.GraphElements{
	model.NodeElement("1", "1"),
	model.NodeElement("2", "2"),
	model.NodeElement("3", "3"),
	model.NodeElement("4", "4"),
	model.EdgeElement("1", "2"),
	model.EdgeElement("2", "3"),
}

func TestApply_ColorsMatchedNodesAndNeutralOthers(t *testing.T) {
	r := newFakeRenderer()
	s := NewSync(r)

	assignment := model.CommunityAssignment{
		{Node: "1", Community: model.IntCommunityID(1)},
		{Node: "2", Community: model.NewCommunityID("1")},
		{Node: "3", Community: model.IntCommunityID(2)},
		{Node: "99", Community: model.IntCommunityID(3)},
	}

	res := s.Apply(karate, assignment)

	assert.Equal(t, Result{Nodes: 4, Colored: 3, Unmatched: 1}, res)
	assert.Equal(t, Palette[1], r.colors["1"])
	assert.Equal(t, Palette[1], r.colors["2"])
	assert.Equal(t, Palette[2], r.colors["3"])
	assert.Equal(t, NeutralColor, r.colors["4"])
	assert.Equal(t, 1, r.layouts)
}

func TestApply_FullReplaceOnEveryCall(t *testing.T) {
	r := newFakeRenderer()
	s := NewSync(r)

	s.Apply(karate, nil)
	s.Apply(model.GraphElements{model.NodeElement("a", "a")}, nil)

	assert.Equal(t, 2, r.clears)
	assert.Equal(t, []model.NodeID{"a"}, r.nodes, "no node from the previous graph survives")
	assert.Equal(t, 2, r.layouts)
}

func TestApply_EmptyAssignmentLeavesNeutral(t *testing.T) {
	r := newFakeRenderer()
	NewSync(r).Apply(karate, model.CommunityAssignment{})

	for _, id := range r.nodes {
		assert.Equal(t, NeutralColor, r.colors[id])
	}
}

func TestColorFor(t *testing.T) {
	tests := []struct {
		name string
		id   model.CommunityID
		want string
	}{
		{"absent", model.CommunityID{}, NeutralColor},
		{"zero", model.IntCommunityID(0), Palette[0]},
		{"string zero", model.NewCommunityID("0"), Palette[0]},
		{"wraps", model.IntCommunityID(12), Palette[2]},
		{"negative", model.IntCommunityID(-1), Palette[9]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ColorFor(tt.id))
		})
	}
}

func TestColorFor_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int64().Draw(t, "n")
		id := model.IntCommunityID(n)

		// pure: same id, same color
		if ColorFor(id) != ColorFor(model.IntCommunityID(n)) {
			t.Fatalf("color for %d is not stable", n)
		}
		// ids a palette length apart collide
		if n < 1<<62 && ColorFor(id) != ColorFor(model.IntCommunityID(n+int64(len(Palette)))) {
			t.Fatalf("ids %d and %d should share a color", n, n+int64(len(Palette)))
		}
	})

	rapid.Check(t, func(t *rapid.T) {
		key := rapid.StringMatching(`[a-z]{1,12}`).Draw(t, "key")
		c := ColorFor(model.NewCommunityID(key))
		if c == NeutralColor || c != ColorFor(model.NewCommunityID(key)) {
			t.Fatalf("string id %q got unstable or neutral color %q", key, c)
		}
	})
}
