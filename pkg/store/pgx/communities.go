package pgx

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/store"
)

const communityChunkSize = 500

const clearCommunitiesSQL = `
UPDATE nodes
SET community_id = NULL, community_color = NULL
WHERE graph_id = $1;
`

const setCommunitySQL = `
UPDATE nodes
SET community_id = $3, community_color = $4
WHERE graph_id = $1 AND id = ANY($2::text[]);
`

// UpdateCommunities replaces the community annotation of a graph in one
// transaction. Positions are left untouched.
func (s *GraphDBStorage) UpdateCommunities(ctx context.Context, graphID string, communities []common.Community) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin community update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, clearCommunitiesSQL, graphID); err != nil {
		return fmt.Errorf("clear communities: %w", err)
	}

	b := &pgxv5.Batch{}
	for _, c := range communities {
		members := store.DedupeStrings(c.Members)
		err := store.ChunkRange(len(members), communityChunkSize, func(start, end int) error {
			b.Queue(setCommunitySQL, graphID, members[start:end], c.ID, c.Color)
			return nil
		})
		if err != nil {
			return err
		}
	}
	if b.Len() > 0 {
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("set communities: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit community update: %w", err)
	}
	return nil
}
