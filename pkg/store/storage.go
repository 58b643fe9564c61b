package store

import (
	"context"
	"errors"

	"github.com/localwebb/backend/pkg/common"
)

// DefaultGraphID is used when a deployment only ever serves one graph.
const DefaultGraphID = "default"

// ErrNodeNotFound is returned for position writes that match no stored node.
var ErrNodeNotFound = errors.New("node not found")

// GraphStorage is the persistence collaborator of the layout engine. It
// delivers graph snapshots and accepts position and community writes. It
// never computes a layout.
type GraphStorage interface {
	LoadSnapshot(ctx context.Context, graphID string) (common.Snapshot, error)

	// UpdateNodePositions writes {id, x, y} triples. Each write only touches
	// its own node; a failing node must not prevent the others.
	UpdateNodePositions(ctx context.Context, graphID string, updates []common.PositionUpdate) error

	UpdateCommunities(ctx context.Context, graphID string, communities []common.Community) error
}

// PositionWriter binds a GraphStorage to one graph so it can serve as a
// position sink target.
type PositionWriter struct {
	Storage GraphStorage
	GraphID string
}

func (w PositionWriter) UpdateNodePositions(ctx context.Context, updates []common.PositionUpdate) error {
	return w.Storage.UpdateNodePositions(ctx, w.GraphID, updates)
}
