// Package render annotates a laid-out graph for the client renderer.
//
// Everything here is a pure function of the node and edge arrays plus the
// viewport. Nothing in this package moves a node or starts a simulation.
package render

import (
	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/layout"
	"github.com/localwebb/backend/pkg/tier"
)

// Node is a graph node plus its visual annotations.
type Node struct {
	common.GraphNode
	Tier                tier.Tier `json:"tier"`
	Scale               float64   `json:"scale"`
	ShowDescription     bool      `json:"showDescription"`
	ShowConnectionCount bool      `json:"showConnectionCount"`
}

// Graph is the payload handed to the renderer.
type Graph struct {
	Nodes       []Node             `json:"nodes"`
	Edges       []common.GraphEdge `json:"edges"`
	Communities []common.Community `json:"communities,omitempty"`
	Detail      Detail             `json:"detail"`
}

// Config bundles the thresholds used for annotation.
type Config struct {
	Tiers  tier.Thresholds  `json:"tiers"`
	Detail DetailThresholds `json:"detail"`
}

func DefaultConfig() Config {
	return Config{
		Tiers:  tier.DefaultThresholds(),
		Detail: DefaultDetailThresholds(),
	}
}

// Annotate uses DefaultConfig.
func Annotate(nodes []common.GraphNode, edges []common.GraphEdge, zoom float64, prefs Prefs) Graph {
	return DefaultConfig().Annotate(nodes, edges, zoom, prefs)
}

// Annotate classifies every node and evaluates the viewport detail flags.
// Edges with unknown endpoints are left out of the payload.
func (c Config) Annotate(nodes []common.GraphNode, edges []common.GraphEdge, zoom float64, prefs Prefs) Graph {
	valid := layout.ValidEdges(nodes, edges)
	g := Graph{
		Nodes: make([]Node, len(nodes)),
		Edges: valid,
		Detail: DetailFor(Viewport{
			Zoom:      zoom,
			NodeCount: len(nodes),
			EdgeCount: len(valid),
		}, prefs, c.Detail),
	}
	for i, n := range nodes {
		g.Nodes[i] = c.node(n)
	}
	return g
}

func (c Config) node(n common.GraphNode) Node {
	t := c.Tiers.Classify(n.Degree)
	return Node{
		GraphNode:           n,
		Tier:                t,
		Scale:               tier.Scale(n.Degree, t),
		ShowDescription:     t == tier.Hub && n.Description != "",
		ShowConnectionCount: t != tier.Leaf,
	}
}
