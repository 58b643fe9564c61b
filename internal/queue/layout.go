package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/localwebb/backend/internal/metrics"
	"github.com/localwebb/backend/internal/storage"
	"github.com/localwebb/backend/internal/util"
	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/community"
	"github.com/localwebb/backend/pkg/layout"
	"github.com/localwebb/backend/pkg/leaselock"
	"github.com/localwebb/backend/pkg/logger"
	"github.com/localwebb/backend/pkg/store"
)

// LayoutJobMsg asks the worker to recompute and persist the layout of a graph.
type LayoutJobMsg struct {
	GraphID     string `json:"graph_id"`
	Communities bool   `json:"communities,omitempty"`
}

func NewLayoutJob(graphID string, communities bool) ([]byte, error) {
	if graphID == "" {
		graphID = store.DefaultGraphID
	}
	return json.Marshal(LayoutJobMsg{GraphID: graphID, Communities: communities})
}

// Locker is satisfied by *leaselock.Client.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// LayoutProcessor runs full-graph layouts outside the API process. A lease
// per graph keeps two workers from writing interleaved positions.
type LayoutProcessor struct {
	Store  store.GraphStorage
	Locks  Locker
	Params layout.Params
	Lease  leaselock.Options

	// Objects receives a JSON backup after each run. Nil disables backups.
	Objects storage.ObjectStore
}

func (p *LayoutProcessor) ProcessLayoutMessage(ctx context.Context, msg string) error {
	var data LayoutJobMsg
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return fmt.Errorf("decode layout job: %w", err)
	}
	if data.GraphID == "" {
		data.GraphID = store.DefaultGraphID
	}

	return p.Locks.WithLease(ctx, leaselock.LayoutKey(data.GraphID), p.Lease, func(ctx context.Context) error {
		return p.run(ctx, data)
	})
}

func (p *LayoutProcessor) run(ctx context.Context, job LayoutJobMsg) error {
	var snap common.Snapshot
	err := util.RetryErrWithContext(ctx, loadAttempts, func(ctx context.Context) error {
		var err error
		snap, err = p.Store.LoadSnapshot(ctx, job.GraphID)
		return err
	})
	if err != nil {
		return fmt.Errorf("load graph %s: %w", job.GraphID, err)
	}
	if len(snap.Nodes) == 0 {
		logger.Info("[Queue] Graph is empty, nothing to lay out", "graph", job.GraphID)
		return nil
	}

	start := time.Now()
	metrics.LayoutRuns.WithLabelValues("worker").Inc()
	res, err := layout.Compute(ctx, snap.Nodes, snap.Edges, p.Params)
	metrics.LayoutDuration.WithLabelValues("worker").Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("layout graph %s: %w", job.GraphID, err)
	}
	metrics.LayoutFrozenNodes.Add(float64(len(res.Frozen)))
	metrics.LayoutDroppedEdges.Add(float64(res.DroppedEdges))

	if err := p.Store.UpdateNodePositions(ctx, job.GraphID, res.Positions); err != nil {
		metrics.PositionWrites.WithLabelValues("failed").Add(float64(len(res.Positions)))
		return fmt.Errorf("write positions of %s: %w", job.GraphID, err)
	}
	metrics.PositionWrites.WithLabelValues("ok").Add(float64(len(res.Positions)))

	comms := snap.Communities
	if job.Communities {
		detected := community.Detect(snap.Nodes, snap.Edges)
		if err := p.Store.UpdateCommunities(ctx, job.GraphID, detected.Communities); err != nil {
			return fmt.Errorf("write communities of %s: %w", job.GraphID, err)
		}
		comms = detected.Communities
		logger.Info("[Queue] Communities updated", "graph", job.GraphID, "count", len(comms), "modularity", detected.Modularity)
	}

	logger.Info("[Queue] Layout written",
		"graph", job.GraphID,
		"nodes", len(res.Positions),
		"frozen", len(res.Frozen),
		"dropped_edges", res.DroppedEdges,
		"duration_sec", time.Since(start).Seconds(),
	)

	p.backup(ctx, job.GraphID, res, comms)
	return nil
}

const (
	loadAttempts   = 2
	backupAttempts = 3
)

// backup failures are logged only; the positions are already persisted.
func (p *LayoutProcessor) backup(ctx context.Context, graphID string, res layout.Result, comms []common.Community) {
	if p.Objects == nil {
		return
	}
	snap := storage.NewLayoutSnapshot(graphID, res, comms)
	key, err := util.RetryWithContext(ctx, backupAttempts, func(ctx context.Context) (string, error) {
		return storage.PutSnapshot(ctx, p.Objects, snap)
	})
	if err != nil {
		logger.Warn("[Queue] Failed to back up layout", "graph", graphID, "err", err)
		return
	}
	logger.Debug("[Queue] Layout backed up", "graph", graphID, "key", key)
}
