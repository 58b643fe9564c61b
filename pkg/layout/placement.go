package layout

import (
	"math"

	"github.com/localwebb/backend/pkg/common"
)

// goldenAngle is π(3 − √5) radians.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// BaseRadius grows with sqrt(n) so node density stays roughly constant.
func BaseRadius(n int, p Params) float64 {
	return math.Max(p.MinBaseRadius, p.RadiusPerSqrtNode*math.Sqrt(float64(n)))
}

// RingRadius maps a node's degree rank onto a ring between 0.1*base (the
// highest degree) and 1.0*base (degree zero).
func RingRadius(degree, maxDegree int, base float64) float64 {
	rank := 0.0
	if maxDegree > 0 {
		rank = float64(degree) / float64(maxDegree)
	}
	return base * (0.1 + 0.9*(1-rank))
}

// Seed assigns starting centers on concentric rings, angle advanced by the
// golden angle per ordinal index. The result is deterministic for a fixed
// node order and degree map, and no two nodes share a coordinate.
func Seed(nodes []common.GraphNode, degrees map[string]int, p Params) []common.Position {
	p = p.Normalize()
	out := make([]common.Position, len(nodes))
	if len(nodes) == 0 {
		return out
	}

	ds := make([]int, len(nodes))
	for i, n := range nodes {
		ds[i] = degrees[n.ID]
	}
	maxD := maxDegree(ds)
	base := BaseRadius(len(nodes), p)

	taken := make(map[common.Position]struct{}, len(nodes))
	for i := range nodes {
		r := RingRadius(ds[i], maxD, base)
		angle := float64(i) * goldenAngle
		pos := common.Position{X: r * math.Cos(angle), Y: r * math.Sin(angle)}
		for {
			if _, dup := taken[pos]; !dup {
				break
			}
			r++
			pos = common.Position{X: r * math.Cos(angle), Y: r * math.Sin(angle)}
		}
		taken[pos] = struct{}{}
		out[i] = pos
	}
	return out
}
