// Package view owns the graph a session is looking at and decides when it
// gets laid out.
//
// Structural changes (a different set of nodes or edges) lead to a new
// layout unless the snapshot already carries a spread layout. Filter
// changes only change what is visible. Every applied layout and every drag
// is handed to the position sink.
package view

import (
	"context"
	"errors"
	"sync"

	"github.com/localwebb/backend/internal/metrics"
	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/community"
	"github.com/localwebb/backend/pkg/layout"
	"github.com/localwebb/backend/pkg/logger"
	"github.com/localwebb/backend/pkg/render"
	"github.com/localwebb/backend/pkg/scheduler"
	"github.com/localwebb/backend/pkg/tier"
)

var ErrUnknownNode = errors.New("unknown node")

// Persister is the position sink as seen by the controller.
type Persister interface {
	Persist(updates ...common.PositionUpdate)
	PersistOne(id string, x, y float64)
}

// Policy is the relayout policy.
type Policy struct {
	// RespectSavedLayout adopts positions from a snapshot that already has a
	// spread layout instead of simulating again.
	RespectSavedLayout bool `json:"respect_saved_layout"`
	// RelayoutOnFilter lays out the visible subgraph after a filter change.
	RelayoutOnFilter bool `json:"relayout_on_filter"`
}

func DefaultPolicy() Policy {
	return Policy{RespectSavedLayout: true, RelayoutOnFilter: false}
}

// Decision is what Load did with a snapshot.
type Decision string

const (
	// Kept means the structure was unchanged and current positions stayed.
	Kept Decision = "kept"
	// Saved means the snapshot's own positions were adopted.
	Saved Decision = "saved"
	// Scheduled means a layout run was started.
	Scheduled Decision = "scheduled"
)

// Status summarises the most recent layout run.
type Status struct {
	Token    uint64 `json:"token"`
	Pending  bool   `json:"pending"`
	Fallback bool   `json:"fallback"`
	Error    string `json:"error,omitempty"`
}

type Controller struct {
	sched  *scheduler.Scheduler
	sink   Persister
	policy Policy
	render render.Config

	mu          sync.Mutex
	nodes       []common.GraphNode
	edges       []common.GraphEdge
	communities []common.Community
	fingerprint string
	filter      Filter
	last        *scheduler.Run

	// stored is what the store held at the last load; moved holds drags not
	// yet seen there.
	stored map[string]common.Position
	moved  map[string]common.Position
}

// New creates a controller and subscribes it to the scheduler's results.
func New(sched *scheduler.Scheduler, sink Persister, policy Policy, cfg render.Config) *Controller {
	c := &Controller{
		sched:  sched,
		sink:   sink,
		policy: policy,
		render: cfg,
		moved:  make(map[string]common.Position),
	}
	sched.OnApply(c.applied)
	return c
}

func (c *Controller) Policy() Policy {
	return c.policy
}

// Load replaces the session graph with snap.
func (c *Controller) Load(ctx context.Context, snap common.Snapshot) (Decision, *scheduler.Run) {
	nodes := common.CloneNodes(snap.Nodes)
	edges := common.CloneEdges(snap.Edges)
	normalize(nodes, edges)
	if dropped := layout.ApplyDegrees(nodes, edges); dropped > 0 {
		logger.Warn("[View] snapshot contains dangling edges", "count", dropped)
	}
	if len(snap.Communities) > 0 {
		community.Assign(nodes, snap.Communities)
	}
	fp := layout.Fingerprint(nodes, edges)
	c.observe(nodes, edges)

	c.mu.Lock()
	external := c.reconcile(nodes)
	if fp == c.fingerprint && len(c.nodes) > 0 {
		if c.last != nil && c.last.Pending() {
			external = nil
		}
		current := make(map[string]common.Position, len(c.nodes))
		for _, n := range c.nodes {
			current[n.ID] = n.Position
		}
		for i := range nodes {
			if _, ok := external[nodes[i].ID]; ok {
				continue
			}
			if p, ok := current[nodes[i].ID]; ok {
				nodes[i].Position = p
			}
		}
		c.replace(nodes, edges, snap.Communities, fp)
		c.mu.Unlock()

		if len(external) > 0 {
			c.sched.Remember(positionsOf(nodes, external)...)
			logger.Debug("[View] adopting positions written elsewhere", "nodes", len(external))
		}
		return Kept, nil
	}
	unrelated := !sharesNode(c.nodes, nodes)
	c.mu.Unlock()

	// The scheduler lock is taken by every scheduler call and the apply hook
	// takes c.mu, so c.mu must not be held across them.
	if unrelated {
		c.sched.Forget()
	}

	if c.policy.RespectSavedLayout && layout.HasSpreadLayout(nodes, layout.MinSpreadNodes) {
		c.sched.Invalidate()
		c.sched.Remember(common.PositionUpdates(nodes)...)

		c.mu.Lock()
		c.replace(nodes, edges, snap.Communities, fp)
		c.last = nil
		c.mu.Unlock()
		logger.Debug("[View] adopting saved layout", "nodes", len(nodes))
		return Saved, nil
	}

	if !layout.HasSpreadLayout(nodes, layout.MinSpreadNodes) {
		// show the seed while an asynchronous run is pending
		layout.ApplyResult(nodes, layout.SeedResult(nodes, edges, c.sched.Params()))
	}
	c.mu.Lock()
	c.replace(nodes, edges, snap.Communities, fp)
	c.mu.Unlock()

	run := c.sched.RunLayout(ctx, common.CloneNodes(nodes), edges)
	c.mu.Lock()
	c.last = run
	c.mu.Unlock()
	logger.Debug("[View] scheduled layout", "token", run.Token, "nodes", len(nodes), "async", run.Async)
	return Scheduled, run
}

// reconcile records the positions the store holds for nodes and returns the
// ids whose stored position changed since the previous load without this
// controller having caused it, e.g. a layout written by the queue worker.
// Nodes dragged here and not yet seen in the store never count, and neither
// does a snapshot without a spread layout. Callers hold c.mu.
func (c *Controller) reconcile(nodes []common.GraphNode) map[string]struct{} {
	isSpread := layout.HasSpreadLayout(nodes, layout.MinSpreadNodes)
	stored := make(map[string]common.Position, len(nodes))
	var external map[string]struct{}
	for _, n := range nodes {
		p := n.Position
		if !p.IsFinite() {
			continue
		}
		stored[n.ID] = p
		if dragged, ok := c.moved[n.ID]; ok {
			if dragged == p {
				delete(c.moved, n.ID)
			}
			continue
		}
		if prev, seen := c.stored[n.ID]; !isSpread || !seen || prev == p {
			continue
		}
		if external == nil {
			external = make(map[string]struct{})
		}
		external[n.ID] = struct{}{}
	}
	c.stored = stored
	return external
}

func positionsOf(nodes []common.GraphNode, ids map[string]struct{}) []common.PositionUpdate {
	out := make([]common.PositionUpdate, 0, len(ids))
	for _, n := range nodes {
		if _, ok := ids[n.ID]; ok {
			out = append(out, common.PositionUpdate{ID: n.ID, X: n.Position.X, Y: n.Position.Y})
		}
	}
	return out
}

// normalize maps free-form enum values from upstream snapshots onto the
// known entity types and confidences.
func normalize(nodes []common.GraphNode, edges []common.GraphEdge) {
	for i := range nodes {
		nodes[i].EntityType = common.ParseEntityType(string(nodes[i].EntityType))
	}
	for i := range edges {
		edges[i].Confidence = common.ParseConfidence(string(edges[i].Confidence))
	}
}

// Relayout forces a new layout of the whole graph.
func (c *Controller) Relayout(ctx context.Context) *scheduler.Run {
	c.mu.Lock()
	nodes := common.CloneNodes(c.nodes)
	edges := common.CloneEdges(c.edges)
	c.mu.Unlock()

	run := c.sched.RunLayout(ctx, nodes, edges)
	c.mu.Lock()
	c.last = run
	c.mu.Unlock()
	return run
}

// sharesNode reports whether any id of next also appears in prev.
func sharesNode(prev, next []common.GraphNode) bool {
	ids := make(map[string]struct{}, len(prev))
	for _, n := range prev {
		ids[n.ID] = struct{}{}
	}
	for _, n := range next {
		if _, ok := ids[n.ID]; ok {
			return true
		}
	}
	return false
}

func (c *Controller) replace(nodes []common.GraphNode, edges []common.GraphEdge, comms []common.Community, fp string) {
	c.nodes = nodes
	c.edges = edges
	c.communities = comms
	c.fingerprint = fp
}

// Move places nodes where the user dropped them and persists the new
// positions. Unknown ids are skipped; ErrUnknownNode is returned if any were.
func (c *Controller) Move(updates ...common.PositionUpdate) (int, error) {
	c.mu.Lock()
	index := make(map[string]int, len(c.nodes))
	for i, n := range c.nodes {
		index[n.ID] = i
	}
	moved := make([]common.PositionUpdate, 0, len(updates))
	unknown := 0
	for _, u := range updates {
		i, ok := index[u.ID]
		p := common.Position{X: u.X, Y: u.Y}
		if !ok {
			unknown++
			continue
		}
		if !p.IsFinite() {
			continue
		}
		c.nodes[i].Position = p
		c.moved[u.ID] = p
		moved = append(moved, u)
	}
	c.mu.Unlock()

	c.sched.Remember(moved...)
	switch len(moved) {
	case 0:
	case 1:
		c.sink.PersistOne(moved[0].ID, moved[0].X, moved[0].Y)
	default:
		c.sink.Persist(moved...)
	}
	if unknown > 0 {
		return len(moved), ErrUnknownNode
	}
	return len(moved), nil
}

// SetFilter changes the visible time window. By policy this does not move
// any node; with RelayoutOnFilter the visible subgraph is laid out again.
func (c *Controller) SetFilter(ctx context.Context, f Filter) *scheduler.Run {
	c.mu.Lock()
	c.filter = f
	if !c.policy.RelayoutOnFilter {
		c.mu.Unlock()
		return nil
	}
	nodes, edges := f.Apply(c.nodes, c.edges)
	nodes = common.CloneNodes(nodes)
	edges = common.CloneEdges(edges)
	c.mu.Unlock()

	run := c.sched.RunLayout(ctx, nodes, edges)
	c.mu.Lock()
	c.last = run
	c.mu.Unlock()
	return run
}

func (c *Controller) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetCommunities annotates the current graph.
func (c *Controller) SetCommunities(comms []common.Community) {
	c.mu.Lock()
	defer c.mu.Unlock()
	community.Assign(c.nodes, comms)
	c.communities = comms
}

// Snapshot returns a copy of the full, unfiltered session graph.
func (c *Controller) Snapshot() common.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.Snapshot{
		Nodes:       common.CloneNodes(c.nodes),
		Edges:       common.CloneEdges(c.edges),
		Communities: append([]common.Community(nil), c.communities...),
	}
}

// View renders the visible graph for the given zoom. It never schedules
// a layout.
func (c *Controller) View(zoom float64, prefs render.Prefs) (render.Graph, Status) {
	c.mu.Lock()
	nodes, edges := c.filter.Apply(c.nodes, c.edges)
	g := c.render.Annotate(common.CloneNodes(nodes), edges, zoom, prefs)
	g.Communities = append([]common.Community(nil), c.communities...)
	last := c.last
	c.mu.Unlock()

	return g, statusOf(last)
}

// Status reports on the most recent layout run.
func (c *Controller) Status() Status {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	return statusOf(last)
}

func statusOf(run *scheduler.Run) Status {
	if run == nil {
		return Status{}
	}
	st := Status{Token: run.Token, Pending: run.Pending()}
	if st.Pending {
		return st
	}
	st.Fallback = run.Fallback()
	if err := run.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// applied merges a scheduler result into the session graph. It runs under
// the scheduler lock, so it must stay short and must not call back into it.
func (c *Controller) applied(a scheduler.Applied) {
	c.mu.Lock()
	n := layout.ApplyResult(c.nodes, a.Result)
	if !a.Fallback {
		for _, p := range a.Result.Positions {
			delete(c.moved, p.ID)
		}
	}
	c.mu.Unlock()

	if a.Fallback {
		logger.Warn("[View] showing fallback positions", "token", a.Token, "nodes", n)
		return
	}
	c.sink.Persist(a.Result.Positions...)
	logger.Debug("[View] applied layout", "token", a.Token, "nodes", n, "iterations", a.Result.Iterations)
}

func (c *Controller) observe(nodes []common.GraphNode, edges []common.GraphEdge) {
	counts := map[tier.Tier]int{}
	for _, n := range nodes {
		counts[c.render.Tiers.Classify(n.Degree)]++
	}
	for _, t := range []tier.Tier{tier.Hub, tier.Medium, tier.Leaf} {
		metrics.GraphNodeCount.WithLabelValues(t.String()).Set(float64(counts[t]))
	}
	metrics.GraphEdgeCount.Set(float64(len(layout.ValidEdges(nodes, edges))))
}
