package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/layout"
	"github.com/localwebb/backend/pkg/render"
	"github.com/localwebb/backend/pkg/scheduler"
)

type recordingSink struct {
	mu      sync.Mutex
	batches [][]common.PositionUpdate
	singles []common.PositionUpdate
}

func (r *recordingSink) Persist(updates ...common.PositionUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, append([]common.PositionUpdate(nil), updates...))
}

func (r *recordingSink) PersistOne(id string, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.singles = append(r.singles, common.PositionUpdate{ID: id, X: x, Y: y})
}

func (r *recordingSink) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches), len(r.singles)
}

// blockingWorker never answers until release is closed, then computes normally.
type blockingWorker struct {
	release chan struct{}
}

func (w blockingWorker) Start(ctx context.Context, req scheduler.Request) <-chan scheduler.Response {
	return scheduler.WorkerFunc(func(ctx context.Context, req scheduler.Request) (layout.Result, error) {
		<-w.release
		return layout.Compute(ctx, req.Nodes, req.Edges, req.Params)
	}).Start(ctx, req)
}

func newController(t *testing.T, policy Policy, threshold int, w scheduler.Worker) (*Controller, *recordingSink) {
	t.Helper()
	cfg := scheduler.DefaultConfig()
	cfg.Threshold = threshold
	cfg.Params.Iterations = 30
	sink := &recordingSink{}
	return New(scheduler.New(cfg, w), sink, policy, render.DefaultConfig()), sink
}

func chain(n int) common.Snapshot {
	var snap common.Snapshot
	for i := range n {
		snap.Nodes = append(snap.Nodes, common.GraphNode{ID: fmt.Sprintf("n%d", i), Label: fmt.Sprintf("Node %d", i)})
		if i > 0 {
			snap.Edges = append(snap.Edges, common.GraphEdge{
				ID:     fmt.Sprintf("e%d", i),
				Source: fmt.Sprintf("n%d", i-1),
				Target: fmt.Sprintf("n%d", i),
			})
		}
	}
	return snap
}

func spread(snap common.Snapshot) common.Snapshot {
	for i := range snap.Nodes {
		snap.Nodes[i].Position = common.Position{X: float64(i * 100), Y: float64(i * 37)}
	}
	return snap
}

func TestLoad_SchedulesWhenNoSpreadLayout(t *testing.T) {
	c, sink := newController(t, DefaultPolicy(), 500, nil)

	decision, run := c.Load(context.Background(), chain(5))
	if decision != Scheduled || run == nil {
		t.Fatalf("expected a scheduled run, got %s", decision)
	}
	if _, err := run.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g, status := c.View(1, render.DefaultPrefs())
	if status.Pending || status.Token != run.Token {
		t.Fatalf("unexpected status %+v", status)
	}
	if !layout.HasSpreadLayout(toNodes(g), layout.MinSpreadNodes) {
		t.Fatal("expected the laid-out graph to be spread")
	}
	if batches, _ := sink.counts(); batches != 1 {
		t.Fatalf("expected one persisted batch, got %d", batches)
	}
	if g.Nodes[1].Degree != 2 {
		t.Fatalf("expected derived degree 2 for n1, got %d", g.Nodes[1].Degree)
	}
}

func TestLoad_RespectsSavedLayout(t *testing.T) {
	c, sink := newController(t, DefaultPolicy(), 500, nil)
	snap := spread(chain(5))

	decision, run := c.Load(context.Background(), snap)
	if decision != Saved || run != nil {
		t.Fatalf("expected the saved layout to be adopted, got %s", decision)
	}
	g, _ := c.View(1, render.DefaultPrefs())
	for i, n := range g.Nodes {
		if n.Position != snap.Nodes[i].Position {
			t.Fatalf("node %s moved from %+v to %+v", n.ID, snap.Nodes[i].Position, n.Position)
		}
	}
	if batches, singles := sink.counts(); batches+singles != 0 {
		t.Fatal("did not expect any writes for an adopted layout")
	}
}

func TestLoad_PolicyCanIgnoreSavedLayout(t *testing.T) {
	c, _ := newController(t, Policy{RespectSavedLayout: false}, 500, nil)
	if decision, _ := c.Load(context.Background(), spread(chain(5))); decision != Scheduled {
		t.Fatalf("expected a layout run, got %s", decision)
	}
}

func TestLoad_SameStructureKeepsPositions(t *testing.T) {
	c, _ := newController(t, DefaultPolicy(), 500, nil)
	c.Load(context.Background(), spread(chain(4)))
	if _, err := c.Move(common.PositionUpdate{ID: "n2", X: -500, Y: 42}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again := chain(4)
	again.Nodes[0].Label = "Renamed"
	decision, run := c.Load(context.Background(), again)
	if decision != Kept || run != nil {
		t.Fatalf("expected current positions to be kept, got %s", decision)
	}
	snap := c.Snapshot()
	if snap.Nodes[2].Position != (common.Position{X: -500, Y: 42}) {
		t.Fatalf("expected the dragged position to survive, got %+v", snap.Nodes[2].Position)
	}
	if snap.Nodes[0].Label != "Renamed" {
		t.Fatal("expected metadata from the new snapshot")
	}
}

func TestMove(t *testing.T) {
	c, sink := newController(t, DefaultPolicy(), 500, nil)
	c.Load(context.Background(), spread(chain(4)))

	n, err := c.Move(common.PositionUpdate{ID: "n1", X: 1, Y: 2})
	if err != nil || n != 1 {
		t.Fatalf("expected one move, got %d (%v)", n, err)
	}
	if _, singles := sink.counts(); singles != 1 {
		t.Fatalf("expected a single-node write, got %d", singles)
	}

	n, err = c.Move(
		common.PositionUpdate{ID: "n0", X: 5, Y: 5},
		common.PositionUpdate{ID: "n3", X: 6, Y: 6},
		common.PositionUpdate{ID: "ghost", X: 7, Y: 7},
	)
	if !errors.Is(err, ErrUnknownNode) || n != 2 {
		t.Fatalf("expected 2 moves and ErrUnknownNode, got %d (%v)", n, err)
	}
	if batches, _ := sink.counts(); batches != 1 {
		t.Fatalf("expected one batch write, got %d", batches)
	}
}

func TestSetFilter_DoesNotMoveNodesByDefault(t *testing.T) {
	c, _ := newController(t, DefaultPolicy(), 500, nil)
	snap := spread(chain(4))
	snap.Edges[0].DateMentioned = "2021-03-01"
	snap.Edges[1].DateMentioned = "2023-07-15"
	c.Load(context.Background(), snap)
	before := c.Snapshot()

	f, err := ParseFilter("2023-01-01", "2023-12-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run := c.SetFilter(context.Background(), f); run != nil {
		t.Fatal("did not expect a layout run for a filter change")
	}

	g, _ := c.View(1, render.DefaultPrefs())
	for _, e := range g.Edges {
		if e.ID == "e1" {
			t.Fatal("expected the 2021 edge to be filtered out")
		}
	}
	after := c.Snapshot()
	for i := range before.Nodes {
		if before.Nodes[i].Position != after.Nodes[i].Position {
			t.Fatalf("filter moved %s", before.Nodes[i].ID)
		}
	}
}

func TestSetFilter_RelayoutPolicy(t *testing.T) {
	c, _ := newController(t, Policy{RespectSavedLayout: true, RelayoutOnFilter: true}, 500, nil)
	c.Load(context.Background(), spread(chain(4)))

	run := c.SetFilter(context.Background(), Filter{From: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)})
	if run == nil {
		t.Fatal("expected a layout run")
	}
	if _, err := run.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_StaleAsyncRunNeverOverwritesNewerGraph(t *testing.T) {
	release := make(chan struct{})
	c, _ := newController(t, DefaultPolicy(), 10, blockingWorker{release: release})

	_, slow := c.Load(context.Background(), chain(20))
	if slow == nil || !slow.Async {
		t.Fatal("expected the large graph to go to the worker")
	}
	_, fast := c.Load(context.Background(), chain(3))
	if fast.Async {
		t.Fatal("expected the small graph to be laid out synchronously")
	}
	fastPositions := c.Snapshot().Nodes

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := slow.Wait(ctx); !errors.Is(err, scheduler.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}

	now := c.Snapshot().Nodes
	if len(now) != 3 {
		t.Fatalf("expected the small graph to stay loaded, got %d nodes", len(now))
	}
	for i := range now {
		if now[i].Position != fastPositions[i].Position {
			t.Fatalf("stale run moved %s", now[i].ID)
		}
	}
}

func TestLoad_AsyncShowsSeedWhilePending(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c, _ := newController(t, DefaultPolicy(), 10, blockingWorker{release: release})

	_, run := c.Load(context.Background(), chain(20))
	g, status := c.View(1, render.DefaultPrefs())
	if !status.Pending || status.Token != run.Token {
		t.Fatalf("expected a pending status, got %+v", status)
	}
	if !layout.HasSpreadLayout(toNodes(g), layout.MinSpreadNodes) {
		t.Fatal("expected seeded positions while the worker runs")
	}
}

func toNodes(g render.Graph) []common.GraphNode {
	out := make([]common.GraphNode, len(g.Nodes))
	for i, n := range g.Nodes {
		out[i] = n.GraphNode
	}
	return out
}

func shifted(snap common.Snapshot, dx float64) common.Snapshot {
	snap = spread(snap)
	for i := range snap.Nodes {
		snap.Nodes[i].Position.X += dx
	}
	return snap
}

func TestLoad_AdoptsPositionsWrittenElsewhere(t *testing.T) {
	c, _ := newController(t, DefaultPolicy(), 500, nil)
	ctx := context.Background()

	if decision, _ := c.Load(ctx, chain(5)); decision != Scheduled {
		t.Fatalf("expected a scheduled run, got %s", decision)
	}
	laidOut := c.Snapshot().Nodes

	// the store has not caught up with the layout yet
	if decision, _ := c.Load(ctx, chain(5)); decision != Kept {
		t.Fatalf("expected kept, got %s", decision)
	}
	for i, n := range c.Snapshot().Nodes {
		if n.Position != laidOut[i].Position {
			t.Fatalf("lagging store moved %s to %+v", n.ID, n.Position)
		}
	}

	// another process wrote a full layout
	written := shifted(chain(5), 1000)
	if decision, _ := c.Load(ctx, written); decision != Kept {
		t.Fatalf("expected kept, got %s", decision)
	}
	for i, n := range c.Snapshot().Nodes {
		if n.Position != written.Nodes[i].Position {
			t.Fatalf("expected %s at the stored %+v, got %+v", n.ID, written.Nodes[i].Position, n.Position)
		}
	}
}

func TestLoad_LocalDragWinsOverStoredPosition(t *testing.T) {
	c, _ := newController(t, DefaultPolicy(), 500, nil)
	ctx := context.Background()
	c.Load(ctx, spread(chain(4)))

	if _, err := c.Move(common.PositionUpdate{ID: "n1", X: -7, Y: -7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	written := shifted(chain(4), 500)
	c.Load(ctx, written)

	nodes := c.Snapshot().Nodes
	if nodes[1].Position != (common.Position{X: -7, Y: -7}) {
		t.Fatalf("expected the drag to survive, got %+v", nodes[1].Position)
	}
	if nodes[2].Position != written.Nodes[2].Position {
		t.Fatalf("expected n2 at the stored %+v, got %+v", written.Nodes[2].Position, nodes[2].Position)
	}
}

func TestLoad_SavedLayoutSupersedesPendingRun(t *testing.T) {
	release := make(chan struct{})
	c, sink := newController(t, DefaultPolicy(), 10, blockingWorker{release: release})
	ctx := context.Background()

	_, slow := c.Load(ctx, chain(20))
	saved := spread(chain(5))
	if decision, _ := c.Load(ctx, saved); decision != Saved {
		t.Fatalf("expected the saved layout to be adopted, got %s", decision)
	}

	close(release)
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := slow.Wait(waitCtx); !errors.Is(err, scheduler.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	for i, n := range c.Snapshot().Nodes {
		if n.Position != saved.Nodes[i].Position {
			t.Fatalf("node %s moved from its saved position", n.ID)
		}
	}
	if batches, singles := sink.counts(); batches+singles != 0 {
		t.Fatal("did not expect any writes")
	}
}

func TestLoad_NormalizesEnums(t *testing.T) {
	c, _ := newController(t, DefaultPolicy(), 500, nil)
	snap := chain(3)
	snap.Nodes[0].EntityType = "person"
	snap.Nodes[1].EntityType = ""
	snap.Edges[0].Confidence = "inferred"
	c.Load(context.Background(), snap)

	got := c.Snapshot()
	if got.Nodes[0].EntityType != common.EntityPerson || got.Nodes[1].EntityType != common.EntityUnknown {
		t.Fatalf("unexpected entity types %q, %q", got.Nodes[0].EntityType, got.Nodes[1].EntityType)
	}
	if got.Edges[0].Confidence != common.ConfidenceInferred || got.Edges[1].Confidence != common.ConfidenceStated {
		t.Fatalf("unexpected confidences %q, %q", got.Edges[0].Confidence, got.Edges[1].Confidence)
	}
}
