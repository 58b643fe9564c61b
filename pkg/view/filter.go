package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/localwebb/backend/pkg/common"
)

// Filter is a time window over edge dates. A zero bound is open.
type Filter struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ParseFilter accepts any date format dateparse understands. Empty strings
// leave the corresponding bound open.
func ParseFilter(from, to string) (Filter, error) {
	var f Filter
	var err error
	if s := strings.TrimSpace(from); s != "" {
		if f.From, err = dateparse.ParseAny(s); err != nil {
			return Filter{}, fmt.Errorf("parse filter start %q: %w", s, err)
		}
	}
	if s := strings.TrimSpace(to); s != "" {
		if f.To, err = dateparse.ParseAny(s); err != nil {
			return Filter{}, fmt.Errorf("parse filter end %q: %w", s, err)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return Filter{}, fmt.Errorf("filter end %s is before start %s", f.To.Format(time.DateOnly), f.From.Format(time.DateOnly))
	}
	return f, nil
}

func (f Filter) Active() bool {
	return !f.From.IsZero() || !f.To.IsZero()
}

// Keeps reports whether e is visible under the filter. Edges without a
// parseable date are always kept.
func (f Filter) Keeps(e common.GraphEdge) bool {
	if !f.Active() || strings.TrimSpace(e.DateMentioned) == "" {
		return true
	}
	t, err := dateparse.ParseAny(e.DateMentioned)
	if err != nil {
		return true
	}
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.After(f.To) {
		return false
	}
	return true
}

// Apply returns the visible subgraph. Nodes stay visible while they keep at
// least one visible edge, and nodes that never had an edge always stay.
func (f Filter) Apply(nodes []common.GraphNode, edges []common.GraphEdge) ([]common.GraphNode, []common.GraphEdge) {
	if !f.Active() {
		return nodes, edges
	}

	touched := make(map[string]bool, len(nodes))
	visible := make(map[string]bool, len(nodes))
	var keptEdges []common.GraphEdge
	for _, e := range edges {
		touched[e.Source] = true
		touched[e.Target] = true
		if f.Keeps(e) {
			keptEdges = append(keptEdges, e)
			visible[e.Source] = true
			visible[e.Target] = true
		}
	}

	keptNodes := make([]common.GraphNode, 0, len(nodes))
	for _, n := range nodes {
		if visible[n.ID] || !touched[n.ID] {
			keptNodes = append(keptNodes, n)
		}
	}
	return keptNodes, keptEdges
}
