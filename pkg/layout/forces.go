package layout

import "math"

type link struct {
	source, target int
	bias           float64
}

// applyLink pulls connected pairs toward LinkDistance. The correction is
// split by degree so that hubs move less than their leaves.
func (s *Simulation) applyLink(alpha float64) {
	strength := s.params.LinkStrength
	if strength == 0 {
		return
	}
	for _, l := range s.links {
		src, tgt := l.source, l.target
		x := s.x[tgt] + s.vx[tgt] - s.x[src] - s.vx[src]
		y := s.y[tgt] + s.vy[tgt] - s.y[src] - s.vy[src]
		if x == 0 {
			x = jiggle(src, tgt)
		}
		if y == 0 {
			y = jiggle(tgt, src)
		}
		d := math.Sqrt(x*x + y*y)
		k := (d - s.params.LinkDistance) / d * alpha * strength
		x *= k
		y *= k
		s.vx[tgt] -= x * l.bias
		s.vy[tgt] -= y * l.bias
		s.vx[src] += x * (1 - l.bias)
		s.vy[src] += y * (1 - l.bias)
	}
}

// applyCharge repels every node from every other node. Above the
// Barnes-Hut threshold the far field is approximated with a quadtree.
func (s *Simulation) applyCharge(alpha float64) {
	strength := s.params.ChargeStrength
	n := len(s.x)
	if strength == 0 || n < 2 {
		return
	}
	distMax2 := s.params.ChargeDistanceMax * s.params.ChargeDistanceMax
	k := strength * alpha

	if n >= s.params.BarnesHutThreshold {
		tree := buildQuadTree(s.x, s.y)
		theta2 := s.params.Theta * s.params.Theta
		fx := make([]float64, n)
		fy := make([]float64, n)
		for i := range n {
			fx[i], fy[i] = tree.field(i, theta2, distMax2)
		}
		for i := range n {
			s.vx[i] += fx[i] * k
			s.vy[i] += fy[i] * k
		}
		return
	}

	for i := range n {
		for j := i + 1; j < n; j++ {
			ax, ay := pairField(i, j, s.x[j]-s.x[i], s.y[j]-s.y[i], 1, distMax2)
			s.vx[i] += ax * k
			s.vy[i] += ay * k
			s.vx[j] -= ax * k
			s.vy[j] -= ay * k
		}
	}
}

// applyCenter weakly pulls every node toward the layout origin.
func (s *Simulation) applyCenter(alpha float64) {
	k := s.params.CenterStrength * alpha
	if k == 0 {
		return
	}
	for i := range s.x {
		s.vx[i] -= s.x[i] * k
		s.vy[i] -= s.y[i] * k
	}
}

// applyRadial pulls each node toward the ring its degree rank belongs to.
func (s *Simulation) applyRadial(alpha float64) {
	strength := s.params.RadialStrength
	if strength == 0 {
		return
	}
	for i := range s.x {
		dx, dy := s.x[i], s.y[i]
		r := math.Sqrt(dx*dx + dy*dy)
		if r == 0 {
			r = 1e-6
		}
		k := (s.ring[i] - r) * strength * alpha / r
		s.vx[i] += dx * k
		s.vy[i] += dy * k
	}
}

type cell struct{ cx, cy int }

// applyCollision pushes apart overlapping pairs using predicted positions.
// Candidate pairs come from a uniform grid whose cells are as wide as the
// largest combined radius, so only neighbouring cells need to be checked.
func (s *Simulation) applyCollision() {
	strength := s.params.CollisionStrength
	n := len(s.x)
	if strength == 0 || n < 2 {
		return
	}

	maxR := 0.0
	for _, r := range s.radius {
		maxR = math.Max(maxR, r)
	}
	cellSize := 2*maxR + s.params.CollisionPadding
	if cellSize <= 0 {
		return
	}

	px := make([]float64, n)
	py := make([]float64, n)
	grid := make(map[cell][]int, n)
	for i := range n {
		px[i] = s.x[i] + s.vx[i]
		py[i] = s.y[i] + s.vy[i]
		if !finite(px[i]) || !finite(py[i]) {
			continue
		}
		c := cell{int(math.Floor(px[i] / cellSize)), int(math.Floor(py[i] / cellSize))}
		grid[c] = append(grid[c], i)
	}

	for i := range n {
		if !finite(px[i]) || !finite(py[i]) {
			continue
		}
		ci := cell{int(math.Floor(px[i] / cellSize)), int(math.Floor(py[i] / cellSize))}
		ri := s.radius[i]
		ri2 := ri * ri
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for _, j := range grid[cell{ci.cx + dx, ci.cy + dy}] {
					if j <= i {
						continue
					}
					rj := s.radius[j]
					r := ri + rj + s.params.CollisionPadding
					x := px[i] - px[j]
					y := py[i] - py[j]
					l := x*x + y*y
					if l >= r*r {
						continue
					}
					if x == 0 {
						x = jiggle(i, j)
					}
					if y == 0 {
						y = jiggle(j, i)
					}
					l = math.Sqrt(x*x + y*y)
					k := (r - l) / l * strength
					x *= k
					y *= k
					rj2 := rj * rj
					w := rj2 / (ri2 + rj2)
					s.vx[i] += x * w
					s.vy[i] += y * w
					s.vx[j] -= x * (1 - w)
					s.vy[j] -= y * (1 - w)
				}
			}
		}
	}
}
