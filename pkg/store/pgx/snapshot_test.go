package pgx

import (
	"testing"

	"github.com/localwebb/backend/pkg/common"
)

func ptr[T any](v T) *T { return &v }

func TestNodeRow_Node(t *testing.T) {
	r := nodeRow{
		ID:          "n1",
		Label:       "Acme Corp",
		EntityType:  "organization",
		Aliases:     []string{"Acme", "", "Acme"},
		X:           ptr(10.5),
		Y:           ptr(-3.0),
		CommunityID: ptr(int32(2)),
	}
	n := r.node()
	if n.EntityType != common.EntityOrganization {
		t.Fatalf("unexpected entity type %q", n.EntityType)
	}
	if n.Position != (common.Position{X: 10.5, Y: -3}) {
		t.Fatalf("unexpected position %+v", n.Position)
	}
	if len(n.Aliases) != 1 || n.Aliases[0] != "Acme" {
		t.Fatalf("unexpected aliases %v", n.Aliases)
	}
	if n.CommunityID == nil || *n.CommunityID != 2 {
		t.Fatalf("unexpected community %v", n.CommunityID)
	}
}

func TestNodeRow_MissingPositionStaysAtOrigin(t *testing.T) {
	n := nodeRow{ID: "n1", EntityType: "alien", X: ptr(4.0)}.node()
	if n.Position != (common.Position{}) {
		t.Fatalf("expected origin, got %+v", n.Position)
	}
	if n.EntityType != common.EntityUnknown {
		t.Fatalf("expected UNKNOWN, got %q", n.EntityType)
	}
}

func TestEdgeRow_Edge(t *testing.T) {
	e := edgeRow{
		ID:             "e1",
		Source:         "a",
		Target:         "b",
		Predicate:      "PAID",
		Confidence:     ptr("inferred"),
		SourceFilename: ptr("ledger.pdf"),
		SourcePage:     ptr(int32(7)),
	}.edge()
	if e.Confidence != common.ConfidenceInferred {
		t.Fatalf("unexpected confidence %q", e.Confidence)
	}
	if e.SourceFile == nil || e.SourceFile.Filename != "ledger.pdf" || e.SourceFile.Page != 7 {
		t.Fatalf("unexpected source file %+v", e.SourceFile)
	}
	if e.Label != "PAID" {
		t.Fatalf("expected the predicate as label, got %q", e.Label)
	}
}

func TestCommunitiesFromNodes(t *testing.T) {
	one, two := 1, 2
	nodes := []common.GraphNode{
		{ID: "a", CommunityID: &one, CommunityColor: "#111"},
		{ID: "b", CommunityID: &two, CommunityColor: "#222"},
		{ID: "c", CommunityID: &one, CommunityColor: "#111"},
		{ID: "d"},
	}
	got := communitiesFromNodes(nodes)
	if len(got) != 2 {
		t.Fatalf("expected 2 communities, got %d", len(got))
	}
	if got[0].ID != 1 || got[0].Size != 2 || got[0].Members[1] != "c" {
		t.Fatalf("unexpected first community %+v", got[0])
	}
}

func TestPositionBatch(t *testing.T) {
	b := positionBatch("g", []common.PositionUpdate{{ID: "a", X: 1, Y: 2}, {ID: "b", X: 3, Y: 4}})
	if b.Len() != 2 {
		t.Fatalf("expected 2 queued statements, got %d", b.Len())
	}
	args := b.QueuedQueries[1].Arguments
	if args[0] != "g" || args[1] != "b" || args[2] != 3.0 || args[3] != 4.0 {
		t.Fatalf("unexpected arguments %v", args)
	}
}
