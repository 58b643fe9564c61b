package layout

import (
	"context"
	"math"

	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/tier"
)

// State is the lifecycle of a simulation: seeded -> stepping -> settled.
type State int

const (
	Seeded State = iota
	Stepping
	Settled
)

func (s State) String() string {
	switch s {
	case Stepping:
		return "stepping"
	case Settled:
		return "settled"
	default:
		return "seeded"
	}
}

// Simulation is the physics-only projection of a graph. It is owned by a
// single run and discarded once its positions have been copied out.
type Simulation struct {
	params Params

	ids    []string
	degree []int
	tiers  []tier.Tier
	x, y   []float64
	vx, vy []float64
	radius []float64
	ring   []float64
	frozen []bool
	links  []link

	alpha      float64
	alphaDecay float64
	step       int
	state      State
	dropped    int
}

// Result is the outcome of a finished run.
type Result struct {
	// Positions holds one rendering anchor per input node id, in input order.
	Positions []common.PositionUpdate `json:"positions"`
	// Frozen lists nodes whose coordinates went non-finite and were held at
	// their last good position.
	Frozen []string `json:"frozen,omitempty"`
	// DroppedEdges counts edges that referenced unknown node ids.
	DroppedEdges int `json:"dropped_edges"`
	Iterations   int `json:"iterations"`
}

// PositionMap indexes the result by node id.
func (r Result) PositionMap() map[string]common.Position {
	out := make(map[string]common.Position, len(r.Positions))
	for _, p := range r.Positions {
		out[p.ID] = common.Position{X: p.X, Y: p.Y}
	}
	return out
}

// NewSimulation builds a seeded simulation. Duplicate node ids keep their
// first occurrence, dangling edges are dropped and self loops count towards
// degree but exert no link force.
func NewSimulation(nodes []common.GraphNode, edges []common.GraphEdge, p Params) *Simulation {
	p = p.Normalize()

	unique := make([]common.GraphNode, 0, len(nodes))
	index := make(map[string]int, len(nodes))
	for _, n := range nodes {
		if _, dup := index[n.ID]; dup {
			continue
		}
		index[n.ID] = len(unique)
		unique = append(unique, n)
	}

	valid := ValidEdges(unique, edges)
	degrees := DegreeIndex(valid)
	seeds := Seed(unique, degrees, p)

	n := len(unique)
	s := &Simulation{
		params:  p,
		ids:     make([]string, n),
		degree:  make([]int, n),
		tiers:   make([]tier.Tier, n),
		x:       make([]float64, n),
		y:       make([]float64, n),
		vx:      make([]float64, n),
		vy:      make([]float64, n),
		radius:  make([]float64, n),
		ring:    make([]float64, n),
		frozen:  make([]bool, n),
		alpha:   1,
		state:   Seeded,
		dropped: len(edges) - len(valid),
	}
	s.alphaDecay = 1 - math.Pow(p.AlphaMin, 1/float64(p.Iterations))

	for i, node := range unique {
		s.ids[i] = node.ID
		s.degree[i] = degrees[node.ID]
		s.tiers[i] = p.Tiers.Classify(s.degree[i])
		s.radius[i] = p.Radii.For(s.tiers[i])
		s.x[i] = seeds[i].X
		s.y[i] = seeds[i].Y
	}

	maxD := maxDegree(s.degree)
	base := BaseRadius(n, p)
	for i := range s.ring {
		s.ring[i] = RingRadius(s.degree[i], maxD, base)
	}

	count := make([]int, n)
	for _, e := range valid {
		if e.Source == e.Target {
			continue
		}
		src, tgt := index[e.Source], index[e.Target]
		count[src]++
		count[tgt]++
		s.links = append(s.links, link{source: src, target: tgt})
	}
	for i := range s.links {
		l := &s.links[i]
		l.bias = float64(count[l.source]) / float64(count[l.source]+count[l.target])
	}

	return s
}

// State reports where the simulation is in its lifecycle.
func (s *Simulation) State() State { return s.state }

// Alpha is the current cooling factor.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Steps is the number of steps taken so far.
func (s *Simulation) Steps() int { return s.step }

// Step advances the simulation by one time step. It is a no-op once settled.
func (s *Simulation) Step() {
	if s.state == Settled {
		return
	}
	s.state = Stepping

	s.alpha += -s.alpha * s.alphaDecay
	alpha := s.alpha

	prevX := append([]float64(nil), s.x...)
	prevY := append([]float64(nil), s.y...)

	s.applyLink(alpha)
	s.applyCharge(alpha)
	// The seed is centred on the origin and the radial rings are measured from
	// it, so the center force pulls toward the origin too.
	s.applyCenter(alpha)
	s.applyRadial(alpha)
	s.applyCollision()

	keep := 1 - s.params.VelocityDecay
	for i := range s.x {
		if s.frozen[i] {
			s.vx[i], s.vy[i] = 0, 0
			continue
		}
		s.vx[i] *= keep
		s.vy[i] *= keep
		s.x[i] += s.vx[i]
		s.y[i] += s.vy[i]
		if !finite(s.x[i]) || !finite(s.y[i]) {
			s.x[i], s.y[i] = prevX[i], prevY[i]
			s.vx[i], s.vy[i] = 0, 0
			s.frozen[i] = true
		}
	}

	s.step++
	if s.step >= s.params.Iterations {
		s.state = Settled
	}
}

// Run steps until the iteration budget is spent. The context is checked
// between steps so a superseded run can be abandoned early.
func (s *Simulation) Run(ctx context.Context) (Result, error) {
	for s.state != Settled {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		s.Step()
	}
	return s.Result(), nil
}

// Centers returns the current physical centers in input order.
func (s *Simulation) Centers() []common.Position {
	out := make([]common.Position, len(s.x))
	for i := range s.x {
		out[i] = common.Position{X: s.x[i], Y: s.y[i]}
	}
	return out
}

// Result converts centers into rendering anchors by subtracting half of
// each node's display box.
func (s *Simulation) Result() Result {
	r := Result{
		Positions:    make([]common.PositionUpdate, len(s.x)),
		DroppedEdges: s.dropped,
		Iterations:   s.step,
	}
	for i := range s.x {
		size := s.params.Sizes.For(s.tiers[i])
		r.Positions[i] = common.PositionUpdate{
			ID: s.ids[i],
			X:  s.x[i] - size.Width/2,
			Y:  s.y[i] - size.Height/2,
		}
		if s.frozen[i] {
			r.Frozen = append(r.Frozen, s.ids[i])
		}
	}
	return r
}

// Compute seeds and runs a full simulation.
func Compute(ctx context.Context, nodes []common.GraphNode, edges []common.GraphEdge, p Params) (Result, error) {
	return NewSimulation(nodes, edges, p).Run(ctx)
}

// SeedResult returns the Initial Placement as anchors without stepping.
// Schedulers fall back to it when a run fails and nothing better is known.
func SeedResult(nodes []common.GraphNode, edges []common.GraphEdge, p Params) Result {
	return NewSimulation(nodes, edges, p).Result()
}

// ApplyResult copies positions from r onto the matching nodes and returns
// how many nodes were updated. Nodes missing from r keep their position.
func ApplyResult(nodes []common.GraphNode, r Result) int {
	positions := r.PositionMap()
	updated := 0
	for i := range nodes {
		if p, ok := positions[nodes[i].ID]; ok && p.IsFinite() {
			nodes[i].Position = p
			updated++
		}
	}
	return updated
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
