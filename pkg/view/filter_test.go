package view

import (
	"testing"

	"github.com/localwebb/backend/pkg/common"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		active  bool
		wantErr bool
	}{
		{name: "open", active: false},
		{name: "iso_dates", from: "2023-01-01", to: "2023-12-31", active: true},
		{name: "only_start", from: "March 5, 2022", active: true},
		{name: "inverted", from: "2024-01-01", to: "2023-01-01", wantErr: true},
		{name: "garbage", from: "not a date", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseFilter(tc.from, tc.to)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && f.Active() != tc.active {
				t.Fatalf("Active = %v, want %v", f.Active(), tc.active)
			}
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	f, err := ParseFilter("2023-01-01", "2023-12-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nodes := []common.GraphNode{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "isolated"}}
	edges := []common.GraphEdge{
		{ID: "in", Source: "a", Target: "b", DateMentioned: "2023-06-01"},
		{ID: "out", Source: "b", Target: "c", DateMentioned: "2019-06-01"},
		{ID: "undated", Source: "d", Target: "a"},
	}

	keptNodes, keptEdges := f.Apply(nodes, edges)
	if len(keptEdges) != 2 || keptEdges[0].ID != "in" || keptEdges[1].ID != "undated" {
		t.Fatalf("unexpected edges %+v", keptEdges)
	}
	ids := map[string]bool{}
	for _, n := range keptNodes {
		ids[n.ID] = true
	}
	if ids["c"] {
		t.Fatal("expected c to disappear with its only edge")
	}
	for _, id := range []string{"a", "b", "d", "isolated"} {
		if !ids[id] {
			t.Fatalf("expected %s to stay visible", id)
		}
	}
}

func TestFilter_InactiveKeepsEverything(t *testing.T) {
	nodes := []common.GraphNode{{ID: "a"}, {ID: "b"}}
	edges := []common.GraphEdge{{ID: "e", Source: "a", Target: "b", DateMentioned: "1999-01-01"}}
	keptNodes, keptEdges := Filter{}.Apply(nodes, edges)
	if len(keptNodes) != 2 || len(keptEdges) != 1 {
		t.Fatal("expected an inactive filter to keep everything")
	}
}
