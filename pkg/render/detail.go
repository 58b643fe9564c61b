package render

// Viewport is the part of the camera state the detail predicates depend on.
type Viewport struct {
	Zoom      float64 `json:"zoom"`
	NodeCount int     `json:"node_count"`
	EdgeCount int     `json:"edge_count"`
}

// Prefs are caller preferences that can only ever reduce detail.
type Prefs struct {
	EdgeLabels bool `json:"edge_labels"`
}

// DefaultPrefs shows edge labels whenever the graph is small enough.
func DefaultPrefs() Prefs {
	return Prefs{EdgeLabels: true}
}

// DetailThresholds are the cost-control cut-offs of the viewport.
type DetailThresholds struct {
	// MinEdgeZoom hides all edges when the zoom factor is below it.
	MinEdgeZoom float64 `json:"min_edge_zoom"`
	// MaxLabelledEdges suppresses edge labels above this edge count, at any zoom.
	MaxLabelledEdges int `json:"max_labelled_edges"`
	// MaxMinimapNodes suppresses the minimap above this node count.
	MaxMinimapNodes int `json:"max_minimap_nodes"`
}

func DefaultDetailThresholds() DetailThresholds {
	return DetailThresholds{
		MinEdgeZoom:      0.3,
		MaxLabelledEdges: 400,
		MaxMinimapNodes:  1500,
	}
}

// Detail tells the renderer which layers to draw.
type Detail struct {
	ShowEdges      bool `json:"show_edges"`
	ShowEdgeLabels bool `json:"show_edge_labels"`
	ShowMinimap    bool `json:"show_minimap"`
}

// ShowEdges reports whether edges are drawn at zoom z.
func (th DetailThresholds) ShowEdges(z float64) bool {
	return z >= th.MinEdgeZoom
}

// ShowEdgeLabels reports whether edge labels are drawn. Labels never appear
// when the edges themselves are hidden.
func (th DetailThresholds) ShowEdgeLabels(vp Viewport, prefs Prefs) bool {
	return prefs.EdgeLabels && th.ShowEdges(vp.Zoom) && vp.EdgeCount <= th.MaxLabelledEdges
}

// ShowMinimap reports whether the minimap overlay is drawn.
func (th DetailThresholds) ShowMinimap(nodeCount int) bool {
	return nodeCount <= th.MaxMinimapNodes
}

// DetailFor evaluates all viewport predicates. It is cheap enough to run on
// every zoom or pan event and never touches positions.
func DetailFor(vp Viewport, prefs Prefs, th DetailThresholds) Detail {
	return Detail{
		ShowEdges:      th.ShowEdges(vp.Zoom),
		ShowEdgeLabels: th.ShowEdgeLabels(vp, prefs),
		ShowMinimap:    th.ShowMinimap(vp.NodeCount),
	}
}
