// Package canvas is the server-side scene behind the browser view. It keeps
// the rendered nodes and edges, runs force-directed layout passes with gonum
// and publishes the resulting frames to subscribed views.
package canvas

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/graph/layout"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ritzau/community-explorer/pkg/graphstore"
	"github.com/ritzau/community-explorer/pkg/logging"
	"github.com/ritzau/community-explorer/pkg/model"
	"github.com/ritzau/community-explorer/pkg/pubsub"
	"github.com/ritzau/community-explorer/pkg/viz"
)

// Frame event types
const (
	EventLayoutStep = "layout_step"
	EventLayoutDone = "layout_done"
)

// Node is a rendered node
type Node struct {
	ID        model.NodeID `json:"id"`
	Label     string       `json:"label"`
	Community string       `json:"community,omitempty"`
	Color     string       `json:"color"`
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
}

// Edge is a rendered edge
type Edge struct {
	Source model.NodeID `json:"source"`
	Target model.NodeID `json:"target"`
}

// Frame is a snapshot of the scene
type Frame struct {
	Pass  uint64 `json:"pass"`
	Step  int    `json:"step"`
	Final bool   `json:"final"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// LayoutObserver receives one call per finished or superseded layout pass
type LayoutObserver interface {
	ObserveLayout(outcome string, steps int)
}

// Options tunes the layout pass
type Options struct {
	Iterations int     // Eades updates per pass
	FrameEvery int     // publish an intermediate frame every N updates; 0 publishes only the final frame
	Repulsion  float64 // Eades repulsion constant
	Rate       float64 // Eades learning rate
	Theta      float64 // Barnes-Hut approximation threshold
	Observer   LayoutObserver
}

// DefaultOptions returns the options used by the UI
func DefaultOptions() Options {
	return Options{
		Iterations: 60,
		FrameEvery: 10,
		Repulsion:  1,
		Rate:       0.05,
		Theta:      0.2,
	}
}

// Canvas implements viz.Renderer
type Canvas struct {
	mu        sync.Mutex
	nodes     []*Node
	byID      map[model.NodeID]*Node
	edges     []Edge
	pass      uint64
	cancel    context.CancelFunc
	publisher pubsub.Publisher
	opts      Options
	wg        sync.WaitGroup
}

var _ viz.Renderer = (*Canvas)(nil)

// New creates an empty canvas publishing frames on publisher
func New(publisher pubsub.Publisher, opts Options) *Canvas {
	if publisher == nil {
		publisher = pubsub.Discard
	}
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultOptions().Iterations
	}
	return &Canvas{
		byID:      make(map[model.NodeID]*Node),
		publisher: publisher,
		opts:      opts,
	}
}

// Clear removes every node and edge and stops a running layout pass
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.nodes = nil
	c.edges = nil
	c.byID = make(map[model.NodeID]*Node)
}

// Add renders elements. Malformed descriptors, duplicate nodes and edges
// with a missing endpoint are ignored.
func (c *Canvas) Add(elements model.GraphElements) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ignored := 0
	for _, e := range elements {
		if !e.IsNode() {
			continue
		}
		if _, exists := c.byID[e.Data.ID]; exists {
			ignored++
			continue
		}
		label := e.Data.Label
		if label == "" {
			label = string(e.Data.ID)
		}
		n := &Node{ID: e.Data.ID, Label: label, Color: viz.NeutralColor}
		c.nodes = append(c.nodes, n)
		c.byID[n.ID] = n
	}

	for _, e := range elements {
		if e.IsNode() {
			continue
		}
		if !e.IsEdge() {
			ignored++
			continue
		}
		_, okSource := c.byID[e.Data.Source]
		_, okTarget := c.byID[e.Data.Target]
		if !okSource || !okTarget {
			ignored++
			continue
		}
		c.edges = append(c.edges, Edge{Source: e.Data.Source, Target: e.Data.Target})
	}

	if ignored > 0 {
		logging.Debug("canvas ignored elements", "count", ignored)
	}
}

// NodeIDs lists node ids in render order
func (c *Canvas) NodeIDs() []model.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]model.NodeID, len(c.nodes))
	for i, n := range c.nodes {
		ids[i] = n.ID
	}
	return ids
}

// SetNodeCommunity tags a node with its community and fill color
func (c *Canvas) SetNodeCommunity(id model.NodeID, community model.CommunityID, color string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.byID[id]
	if !ok {
		return
	}
	n.Community = community.Key()
	n.Color = color
}

// RunLayout starts a layout pass in the background. A pass still running
// is cancelled and never publishes again.
func (c *Canvas) RunLayout() {
	c.mu.Lock()
	c.stopLocked()
	c.pass++
	pass := c.pass
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	index := graphstore.BuildIndex(c.elementsLocked())
	c.wg.Add(1)
	c.mu.Unlock()

	go c.runLayout(ctx, pass, index)
}

// Frame returns the current scene
func (c *Canvas) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameLocked(0, false)
}

// Wait blocks until no layout pass is running
func (c *Canvas) Wait() {
	c.wg.Wait()
}

// Close stops a running layout pass and waits for it
func (c *Canvas) Close() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Canvas) runLayout(ctx context.Context, pass uint64, index *graphstore.Index) {
	defer c.wg.Done()

	eades := layout.EadesR2{
		Updates:   c.opts.Iterations,
		Repulsion: c.opts.Repulsion,
		Rate:      c.opts.Rate,
		Theta:     c.opts.Theta,
	}

	g := index.Graph()
	if g.Nodes().Len() == 0 {
		c.commit(ctx, pass, index, nil, 0, true)
		c.observe("empty", 0)
		return
	}

	optimizer := layout.NewOptimizerR2(g, eades.Update)
	step := 0
	for optimizer.Update() {
		step++
		if ctx.Err() != nil {
			logging.Trace("layout pass superseded", "pass", pass, "step", step)
			c.observe("superseded", step)
			return
		}
		if c.opts.FrameEvery > 0 && step%c.opts.FrameEvery == 0 {
			c.commit(ctx, pass, index, optimizer.Coord2, step, false)
		}
	}

	if !c.commit(ctx, pass, index, optimizer.Coord2, step, true) {
		c.observe("superseded", step)
		return
	}
	logging.Debug("layout pass done", "pass", pass, "steps", step, "nodes", g.Nodes().Len())
	c.observe("done", step)
}

// commit writes positions back and publishes a frame if pass is still current
func (c *Canvas) commit(ctx context.Context, pass uint64, index *graphstore.Index, coord func(int64) r2.Vec, step int, final bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pass != c.pass || ctx.Err() != nil {
		return false
	}

	if coord != nil {
		for _, n := range c.nodes {
			gid, ok := index.GraphID(n.ID)
			if !ok {
				continue
			}
			v := coord(gid)
			n.X, n.Y = v.X, v.Y
		}
	}

	eventType := EventLayoutStep
	if final {
		eventType = EventLayoutDone
	}
	// Published under the lock so frames of consecutive passes cannot interleave
	if err := c.publisher.Publish(pubsub.TopicRenderFrame, eventType, c.frameLocked(step, final)); err != nil {
		logging.Debug("render frame not published", "error", err)
	}
	return true
}

func (c *Canvas) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Canvas) elementsLocked() model.GraphElements {
	elements := make(model.GraphElements, 0, len(c.nodes)+len(c.edges))
	for _, n := range c.nodes {
		elements = append(elements, model.NodeElement(string(n.ID), n.Label))
	}
	for _, e := range c.edges {
		elements = append(elements, model.EdgeElement(string(e.Source), string(e.Target)))
	}
	return elements
}

func (c *Canvas) frameLocked(step int, final bool) Frame {
	f := Frame{
		Pass:  c.pass,
		Step:  step,
		Final: final,
		Nodes: make([]Node, len(c.nodes)),
		Edges: make([]Edge, len(c.edges)),
	}
	for i, n := range c.nodes {
		f.Nodes[i] = *n
	}
	copy(f.Edges, c.edges)
	return f
}

func (c *Canvas) observe(outcome string, steps int) {
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveLayout(outcome, steps)
	}
}
