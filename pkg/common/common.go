package common

import (
	"math"
	"strings"
)

// EntityType classifies what a node in the investigation graph stands for.
type EntityType string

const (
	EntityPerson          EntityType = "PERSON"
	EntityOrganization    EntityType = "ORGANIZATION"
	EntityLocation        EntityType = "LOCATION"
	EntityEvent           EntityType = "EVENT"
	EntityDocument        EntityType = "DOCUMENT"
	EntityFinancialEntity EntityType = "FINANCIAL_ENTITY"
	EntityUnknown         EntityType = "UNKNOWN"
)

// ParseEntityType maps free-form type strings from the extraction pipeline
// onto the known entity types. Anything unrecognised becomes EntityUnknown.
func ParseEntityType(s string) EntityType {
	switch t := EntityType(strings.ToUpper(strings.TrimSpace(s))); t {
	case EntityPerson, EntityOrganization, EntityLocation, EntityEvent, EntityDocument, EntityFinancialEntity:
		return t
	default:
		return EntityUnknown
	}
}

// Confidence tells whether a relationship was stated in a source document or
// inferred by the extraction pipeline.
type Confidence string

const (
	ConfidenceStated   Confidence = "STATED"
	ConfidenceInferred Confidence = "INFERRED"
)

// ParseConfidence defaults to ConfidenceStated for empty or unknown values.
func ParseConfidence(s string) Confidence {
	if strings.EqualFold(strings.TrimSpace(s), string(ConfidenceInferred)) {
		return ConfidenceInferred
	}
	return ConfidenceStated
}

// Position is a 2D coordinate on the graph canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IsFinite reports whether both coordinates are usable by a renderer.
func (p Position) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// GraphNode is an entity as it is shown on the canvas.
//
// Degree is derived from the edge set and must never be authored directly.
// Position is the only field written by the layout engine; it holds the
// rendering anchor (top-left corner), not the physical center of the node.
type GraphNode struct {
	ID             string     `json:"id"`
	Label          string     `json:"label"`
	EntityType     EntityType `json:"entityType"`
	Description    string     `json:"description,omitempty"`
	Aliases        []string   `json:"aliases,omitempty"`
	Degree         int        `json:"degree"`
	Position       Position   `json:"position"`
	CommunityID    *int       `json:"communityId,omitempty"`
	CommunityColor string     `json:"communityColor,omitempty"`
}

// SourceFile points to the document page a relationship was extracted from.
type SourceFile struct {
	Filename string `json:"source_filename"`
	Page     int    `json:"source_page"`
}

// GraphEdge is a relationship between two entities. Edges carry a direction
// for display, but the layout engine treats the graph as undirected.
type GraphEdge struct {
	ID            string      `json:"id"`
	Source        string      `json:"source"`
	Target        string      `json:"target"`
	Predicate     string      `json:"predicate"`
	Label         string      `json:"label,omitempty"`
	Confidence    Confidence  `json:"confidence"`
	EvidenceText  string      `json:"evidence_text,omitempty"`
	SourceFile    *SourceFile `json:"source_file,omitempty"`
	DateMentioned string      `json:"date_mentioned,omitempty"`
}

// Community is a read-only annotation grouping densely connected nodes.
type Community struct {
	ID      int      `json:"id"`
	Color   string   `json:"color"`
	Members []string `json:"members"`
	Size    int      `json:"size"`
}

// Snapshot is one complete graph as delivered by the storage collaborator.
// Every snapshot is treated as new input by the layout engine.
type Snapshot struct {
	Nodes       []GraphNode `json:"nodes"`
	Edges       []GraphEdge `json:"edges"`
	Communities []Community `json:"communities,omitempty"`
}

// PositionUpdate is a single {id, x, y} triple of the position-write contract.
type PositionUpdate struct {
	ID string  `json:"id" validate:"required"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// PositionUpdates converts node positions into write requests, preserving order.
func PositionUpdates(nodes []GraphNode) []PositionUpdate {
	out := make([]PositionUpdate, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, PositionUpdate{ID: n.ID, X: n.Position.X, Y: n.Position.Y})
	}
	return out
}

// CloneNodes returns a deep enough copy of nodes for another goroutine to own.
func CloneNodes(nodes []GraphNode) []GraphNode {
	out := make([]GraphNode, len(nodes))
	copy(out, nodes)
	for i := range out {
		if nodes[i].Aliases != nil {
			out[i].Aliases = append([]string(nil), nodes[i].Aliases...)
		}
		if nodes[i].CommunityID != nil {
			id := *nodes[i].CommunityID
			out[i].CommunityID = &id
		}
	}
	return out
}

// CloneEdges returns a copy of edges for another goroutine to own.
func CloneEdges(edges []GraphEdge) []GraphEdge {
	out := make([]GraphEdge, len(edges))
	copy(out, edges)
	for i := range out {
		if edges[i].SourceFile != nil {
			sf := *edges[i].SourceFile
			out[i].SourceFile = &sf
		}
	}
	return out
}
