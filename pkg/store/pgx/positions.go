package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/store"
)

const updatePositionSQL = `
UPDATE nodes
SET x = $3, y = $4, updated_at = now()
WHERE graph_id = $1 AND id = $2;
`

func positionBatch(graphID string, updates []common.PositionUpdate) *pgxv5.Batch {
	b := &pgxv5.Batch{}
	for _, u := range updates {
		b.Queue(updatePositionSQL, graphID, u.ID, u.X, u.Y)
	}
	return b
}

// UpdateNodePositions sends one UPDATE per node in a single round trip.
// Statements run outside a transaction, so a failing node leaves the others
// written; all per-node failures are joined into the returned error.
func (s *GraphDBStorage) UpdateNodePositions(ctx context.Context, graphID string, updates []common.PositionUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	br := s.conn.SendBatch(ctx, positionBatch(graphID, updates))
	var errs []error
	for _, u := range updates {
		tag, err := br.Exec()
		if err != nil {
			errs = append(errs, fmt.Errorf("update position of %s: %w", u.ID, err))
			continue
		}
		if tag.RowsAffected() == 0 {
			errs = append(errs, fmt.Errorf("update position of %s: %w", u.ID, store.ErrNodeNotFound))
		}
	}
	if err := br.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close position batch: %w", err))
	}
	return errors.Join(errs...)
}
