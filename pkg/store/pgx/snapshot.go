package pgx

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/logger"
	"github.com/localwebb/backend/pkg/store"
)

const selectNodesSQL = `
SELECT id, label, entity_type, description, aliases, x, y, community_id, community_color
FROM nodes
WHERE graph_id = $1
ORDER BY created_at, id;
`

const selectEdgesSQL = `
SELECT id, source, target, predicate, label, confidence, evidence_text,
       source_filename, source_page, date_mentioned
FROM edges
WHERE graph_id = $1
ORDER BY created_at, id;
`

type nodeRow struct {
	ID             string
	Label          string
	EntityType     string
	Description    *string
	Aliases        []string
	X, Y           *float64
	CommunityID    *int32
	CommunityColor *string
}

func (r nodeRow) node() common.GraphNode {
	n := common.GraphNode{
		ID:             r.ID,
		Label:          r.Label,
		EntityType:     common.ParseEntityType(r.EntityType),
		Description:    deref(r.Description),
		Aliases:        store.DedupeStrings(r.Aliases),
		CommunityColor: deref(r.CommunityColor),
	}
	if r.X != nil && r.Y != nil {
		n.Position = common.Position{X: *r.X, Y: *r.Y}
	}
	if r.CommunityID != nil {
		id := int(*r.CommunityID)
		n.CommunityID = &id
	}
	return n
}

type edgeRow struct {
	ID             string
	Source         string
	Target         string
	Predicate      string
	Label          *string
	Confidence     *string
	EvidenceText   *string
	SourceFilename *string
	SourcePage     *int32
	DateMentioned  *string
}

func (r edgeRow) edge() common.GraphEdge {
	e := common.GraphEdge{
		ID:            r.ID,
		Source:        r.Source,
		Target:        r.Target,
		Predicate:     r.Predicate,
		Label:         deref(r.Label),
		Confidence:    common.ParseConfidence(deref(r.Confidence)),
		EvidenceText:  deref(r.EvidenceText),
		DateMentioned: deref(r.DateMentioned),
	}
	if r.SourceFilename != nil {
		e.SourceFile = &common.SourceFile{Filename: *r.SourceFilename}
		if r.SourcePage != nil {
			e.SourceFile.Page = int(*r.SourcePage)
		}
	}
	if e.Label == "" {
		e.Label = e.Predicate
	}
	return e
}

// LoadSnapshot reads every node and edge of a graph. Communities are
// rebuilt from the per-node community columns.
func (s *GraphDBStorage) LoadSnapshot(ctx context.Context, graphID string) (common.Snapshot, error) {
	rows, err := s.conn.Query(ctx, selectNodesSQL, graphID)
	if err != nil {
		return common.Snapshot{}, fmt.Errorf("query nodes: %w", err)
	}
	nodeRows, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (nodeRow, error) {
		var r nodeRow
		err := row.Scan(&r.ID, &r.Label, &r.EntityType, &r.Description, &r.Aliases, &r.X, &r.Y, &r.CommunityID, &r.CommunityColor)
		return r, err
	})
	if err != nil {
		return common.Snapshot{}, fmt.Errorf("scan nodes: %w", err)
	}

	rows, err = s.conn.Query(ctx, selectEdgesSQL, graphID)
	if err != nil {
		return common.Snapshot{}, fmt.Errorf("query edges: %w", err)
	}
	edgeRows, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (edgeRow, error) {
		var r edgeRow
		err := row.Scan(&r.ID, &r.Source, &r.Target, &r.Predicate, &r.Label, &r.Confidence, &r.EvidenceText,
			&r.SourceFilename, &r.SourcePage, &r.DateMentioned)
		return r, err
	})
	if err != nil {
		return common.Snapshot{}, fmt.Errorf("scan edges: %w", err)
	}

	snap := common.Snapshot{
		Nodes: make([]common.GraphNode, len(nodeRows)),
		Edges: make([]common.GraphEdge, len(edgeRows)),
	}
	for i, r := range nodeRows {
		snap.Nodes[i] = r.node()
	}
	for i, r := range edgeRows {
		snap.Edges[i] = r.edge()
	}
	snap.Communities = communitiesFromNodes(snap.Nodes)

	logger.Debug("[Store] loaded snapshot", "graph", graphID, "nodes", len(snap.Nodes), "edges", len(snap.Edges))
	return snap, nil
}

func communitiesFromNodes(nodes []common.GraphNode) []common.Community {
	byID := map[int]int{}
	var out []common.Community
	for _, n := range nodes {
		if n.CommunityID == nil {
			continue
		}
		idx, ok := byID[*n.CommunityID]
		if !ok {
			idx = len(out)
			byID[*n.CommunityID] = idx
			out = append(out, common.Community{ID: *n.CommunityID, Color: n.CommunityColor})
		}
		out[idx].Members = append(out[idx].Members, n.ID)
		out[idx].Size++
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
