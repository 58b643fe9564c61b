// Package community groups densely connected entities with Louvain
// modularity optimisation and colours each group from a fixed palette.
//
// Communities are a read-only annotation. Nothing here touches positions.
package community

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/layout"
)

// Palette is cycled through in community order.
var Palette = []string{
	"#3b82f6", "#ef4444", "#10b981", "#f59e0b", "#8b5cf6",
	"#ec4899", "#06b6d4", "#f97316", "#84cc16", "#6366f1",
	"#14b8a6", "#e11d48", "#0ea5e9", "#a855f7", "#22c55e",
}

// seed fixes the Louvain visiting order so equal input yields equal output.
const seed = 42

type Result struct {
	Communities []common.Community `json:"communities"`
	Modularity  float64            `json:"modularity"`
}

// Detect partitions the graph. Parallel edges add weight, self loops and
// dangling edges are ignored. Communities are ordered by size (largest
// first, ties by earliest member) and numbered from zero in that order.
// Graphs with fewer than two nodes have no communities.
func Detect(nodes []common.GraphNode, edges []common.GraphEdge) Result {
	if len(nodes) < 2 {
		return Result{}
	}

	index := make(map[string]int, len(nodes))
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if _, dup := index[n.ID]; dup {
			continue
		}
		index[n.ID] = len(ids)
		ids = append(ids, n.ID)
	}

	weights := make(map[[2]int]float64)
	for _, e := range layout.ValidEdges(nodes, edges) {
		a, b := index[e.Source], index[e.Target]
		if a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		weights[[2]int{a, b}]++
	}

	var groups [][]int
	modularity := 0.0
	if len(weights) == 0 {
		for i := range ids {
			groups = append(groups, []int{i})
		}
	} else {
		g := simple.NewWeightedUndirectedGraph(0, 0)
		for i := range ids {
			g.AddNode(simple.Node(i))
		}
		for pair, w := range weights {
			g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(pair[0]), T: simple.Node(pair[1]), W: w})
		}
		reduced := community.Modularize(g, 1, rand.NewPCG(seed, seed))
		found := reduced.Communities()
		modularity = community.Q(g, found, 1)
		for _, members := range found {
			group := make([]int, 0, len(members))
			for _, m := range members {
				group = append(group, int(m.ID()))
			}
			groups = append(groups, group)
		}
	}

	for _, g := range groups {
		slices.Sort(g)
	}
	slices.SortFunc(groups, func(a, b []int) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return cmp.Compare(a[0], b[0])
	})

	res := Result{Modularity: modularity}
	for i, g := range groups {
		members := make([]string, len(g))
		for j, idx := range g {
			members[j] = ids[idx]
		}
		res.Communities = append(res.Communities, common.Community{
			ID:      i,
			Color:   Palette[i%len(Palette)],
			Members: members,
			Size:    len(members),
		})
	}
	return res
}

// Assign writes community id and colour onto every member node and returns
// the number of nodes annotated. Nodes outside every community are cleared.
func Assign(nodes []common.GraphNode, communities []common.Community) int {
	byNode := make(map[string]common.Community)
	for _, c := range communities {
		for _, m := range c.Members {
			byNode[m] = c
		}
	}
	assigned := 0
	for i := range nodes {
		c, ok := byNode[nodes[i].ID]
		if !ok {
			nodes[i].CommunityID = nil
			nodes[i].CommunityColor = ""
			continue
		}
		id := c.ID
		nodes[i].CommunityID = &id
		nodes[i].CommunityColor = c.Color
		assigned++
	}
	return assigned
}
