package render

import "testing"

func TestDetailFor(t *testing.T) {
	th := DefaultDetailThresholds()
	tests := []struct {
		name  string
		vp    Viewport
		prefs Prefs
		want  Detail
	}{
		{
			name:  "small_graph_close_zoom",
			vp:    Viewport{Zoom: 1, NodeCount: 20, EdgeCount: 30},
			prefs: DefaultPrefs(),
			want:  Detail{ShowEdges: true, ShowEdgeLabels: true, ShowMinimap: true},
		},
		{
			name:  "zoomed_out_hides_edges_and_labels",
			vp:    Viewport{Zoom: 0.2, NodeCount: 20, EdgeCount: 30},
			prefs: DefaultPrefs(),
			want:  Detail{ShowEdges: false, ShowEdgeLabels: false, ShowMinimap: true},
		},
		{
			name:  "edge_zoom_boundary_is_inclusive",
			vp:    Viewport{Zoom: 0.3, NodeCount: 20, EdgeCount: 30},
			prefs: DefaultPrefs(),
			want:  Detail{ShowEdges: true, ShowEdgeLabels: true, ShowMinimap: true},
		},
		{
			name:  "many_edges_suppress_labels_at_any_zoom",
			vp:    Viewport{Zoom: 4, NodeCount: 200, EdgeCount: 401},
			prefs: DefaultPrefs(),
			want:  Detail{ShowEdges: true, ShowEdgeLabels: false, ShowMinimap: true},
		},
		{
			name:  "caller_disables_labels",
			vp:    Viewport{Zoom: 1, NodeCount: 20, EdgeCount: 30},
			prefs: Prefs{EdgeLabels: false},
			want:  Detail{ShowEdges: true, ShowEdgeLabels: false, ShowMinimap: true},
		},
		{
			name:  "large_graph_suppresses_minimap",
			vp:    Viewport{Zoom: 1, NodeCount: 1501, EdgeCount: 100},
			prefs: DefaultPrefs(),
			want:  Detail{ShowEdges: true, ShowEdgeLabels: true, ShowMinimap: false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetailFor(tc.vp, tc.prefs, th); got != tc.want {
				t.Fatalf("DetailFor = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDetailFor_LabelsNeverWithoutEdges(t *testing.T) {
	th := DefaultDetailThresholds()
	for _, zoom := range []float64{0, 0.1, 0.29, 0.3, 1, 10} {
		for _, edges := range []int{0, 10, 400, 401, 5000} {
			d := DetailFor(Viewport{Zoom: zoom, EdgeCount: edges}, DefaultPrefs(), th)
			if d.ShowEdgeLabels && !d.ShowEdges {
				t.Fatalf("labels shown without edges at zoom %f with %d edges", zoom, edges)
			}
		}
	}
}
