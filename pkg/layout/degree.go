package layout

import "github.com/localwebb/backend/pkg/common"

// DegreeIndex counts, for every node id that appears in edges, the number of
// edges touching it. The graph is treated as undirected: an edge adds one to
// its source and one to its target. Ids that never appear have degree 0.
func DegreeIndex(edges []common.GraphEdge) map[string]int {
	degrees := make(map[string]int, len(edges))
	for _, e := range edges {
		degrees[e.Source]++
		degrees[e.Target]++
	}
	return degrees
}

// ValidEdges returns the edges whose endpoints are both present in nodes.
// Dangling references are dropped, never treated as an error.
func ValidEdges(nodes []common.GraphNode, edges []common.GraphEdge) []common.GraphEdge {
	known := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		known[n.ID] = struct{}{}
	}
	out := make([]common.GraphEdge, 0, len(edges))
	for _, e := range edges {
		if _, ok := known[e.Source]; !ok {
			continue
		}
		if _, ok := known[e.Target]; !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ApplyDegrees recomputes Degree on every node from the valid edges and
// returns the number of dropped (dangling) edges.
func ApplyDegrees(nodes []common.GraphNode, edges []common.GraphEdge) int {
	valid := ValidEdges(nodes, edges)
	degrees := DegreeIndex(valid)
	for i := range nodes {
		nodes[i].Degree = degrees[nodes[i].ID]
	}
	return len(edges) - len(valid)
}

func maxDegree(degrees []int) int {
	m := 0
	for _, d := range degrees {
		if d > m {
			m = d
		}
	}
	return m
}
