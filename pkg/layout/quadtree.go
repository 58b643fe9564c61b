package layout

import "math"

// maxQuadDepth bounds subdivision; coincident bodies share a leaf below it.
const maxQuadDepth = 24

// quadNode is one cell of the Barnes-Hut tree. Leaves hold body indices,
// internal cells only hold the aggregated center of mass.
type quadNode struct {
	x0, y0, size float64
	cx, cy       float64
	mass         float64
	bodies       []int
	children     [4]*quadNode
	leaf         bool
}

type quadTree struct {
	xs, ys []float64
	root   *quadNode
}

// buildQuadTree indexes every body. The root cell is square and padded by 10%
// of its extent.
func buildQuadTree(xs, ys []float64) *quadTree {
	t := &quadTree{xs: xs, ys: ys}
	if len(xs) == 0 {
		return t
	}

	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := 1; i < len(xs); i++ {
		minX = math.Min(minX, xs[i])
		maxX = math.Max(maxX, xs[i])
		minY = math.Min(minY, ys[i])
		maxY = math.Max(maxY, ys[i])
	}
	size := math.Max(maxX-minX, maxY-minY)
	if size == 0 {
		size = 1
	}
	pad := size * 0.1
	size += 2 * pad
	// center the shorter axis inside the square
	x0 := (minX+maxX)/2 - size/2
	y0 := (minY+maxY)/2 - size/2

	t.root = &quadNode{x0: x0, y0: y0, size: size, leaf: true}
	for i := range xs {
		t.insert(t.root, i, 0)
	}
	return t
}

func (t *quadTree) insert(q *quadNode, i int, depth int) {
	px, py := t.xs[i], t.ys[i]
	total := q.mass + 1
	q.cx = (q.cx*q.mass + px) / total
	q.cy = (q.cy*q.mass + py) / total
	q.mass = total

	if q.leaf {
		if len(q.bodies) == 0 || depth >= maxQuadDepth {
			q.bodies = append(q.bodies, i)
			return
		}
		old := q.bodies
		q.bodies = nil
		q.leaf = false
		for _, b := range old {
			t.insert(t.child(q, t.xs[b], t.ys[b]), b, depth+1)
		}
	}
	t.insert(t.child(q, px, py), i, depth+1)
}

func (t *quadTree) child(q *quadNode, px, py float64) *quadNode {
	half := q.size / 2
	idx := 0
	x0, y0 := q.x0, q.y0
	if px >= q.x0+half {
		idx |= 1
		x0 += half
	}
	if py >= q.y0+half {
		idx |= 2
		y0 += half
	}
	if q.children[idx] == nil {
		q.children[idx] = &quadNode{x0: x0, y0: y0, size: half, leaf: true}
	}
	return q.children[idx]
}

// field sums dx*mass/l² over all bodies (or approximating cells) as seen
// from body i. Multiplying by strength*alpha yields the charge velocity.
func (t *quadTree) field(i int, theta2, distMax2 float64) (float64, float64) {
	if t.root == nil {
		return 0, 0
	}
	return t.visit(t.root, i, t.xs[i], t.ys[i], theta2, distMax2)
}

func (t *quadTree) visit(q *quadNode, i int, px, py, theta2, distMax2 float64) (float64, float64) {
	if q == nil || q.mass == 0 {
		return 0, 0
	}

	if q.leaf {
		var fx, fy float64
		for _, b := range q.bodies {
			if b == i {
				continue
			}
			dx, dy := t.xs[b]-px, t.ys[b]-py
			ax, ay := pairField(i, b, dx, dy, 1, distMax2)
			fx += ax
			fy += ay
		}
		return fx, fy
	}

	dx, dy := q.cx-px, q.cy-py
	l2 := dx*dx + dy*dy
	if q.size*q.size/theta2 < l2 {
		if l2 >= distMax2 {
			return 0, 0
		}
		return pairField(i, -1, dx, dy, q.mass, distMax2)
	}

	var fx, fy float64
	for _, c := range q.children {
		ax, ay := t.visit(c, i, px, py, theta2, distMax2)
		fx += ax
		fy += ay
	}
	return fx, fy
}

// pairField is the inverse-square contribution of mass at offset (dx, dy).
// Coincident points get a small deterministic offset instead of a random one.
func pairField(i, j int, dx, dy, mass, distMax2 float64) (float64, float64) {
	if dx == 0 {
		dx = jiggle(i, j)
	}
	if dy == 0 {
		dy = jiggle(j, i)
	}
	l2 := dx*dx + dy*dy
	if l2 >= distMax2 {
		return 0, 0
	}
	if l2 < 1 {
		l2 = math.Sqrt(l2)
	}
	return dx * mass / l2, dy * mass / l2
}

func jiggle(i, j int) float64 {
	m := (i*31 + j*17) % 11
	if m < 0 {
		m = -m
	}
	v := float64(m+1) * 1e-6
	if i < j {
		return -v
	}
	return v
}
