// Package sink persists node positions to the graph store.
//
// Writes are fire-and-forget: Persist and PersistOne return at once, failed
// chunks are retried a bounded number of times and then logged. Nothing the
// sink does ever changes the in-memory layout.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/localwebb/backend/internal/metrics"
	"github.com/localwebb/backend/internal/util"
	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/logger"
)

// PositionWriter is the persistence collaborator. Writes must be idempotent
// and keyed by node id.
type PositionWriter interface {
	UpdateNodePositions(ctx context.Context, updates []common.PositionUpdate) error
}

type Config struct {
	// ChunkSize is the number of updates sent per store call.
	ChunkSize int `json:"chunk_size"`
	// MaxTries bounds attempts per chunk.
	MaxTries int `json:"max_tries"`
	// Backoff is the wait before the first retry. It doubles per attempt.
	Backoff time.Duration `json:"backoff"`
	// Concurrency bounds in-flight chunks per batch.
	Concurrency int `json:"concurrency"`
	// Timeout bounds a single store call.
	Timeout time.Duration `json:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:   200,
		MaxTries:    3,
		Backoff:     100 * time.Millisecond,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

type Sink struct {
	w   PositionWriter
	cfg Config
	ctx context.Context

	wg sync.WaitGroup

	mu      sync.Mutex
	lastErr error
}

// New creates a sink. ctx bounds every write the sink will ever issue;
// cancel it on shutdown to abandon pending retries.
func New(ctx context.Context, w PositionWriter, cfg Config) *Sink {
	d := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = d.ChunkSize
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = d.MaxTries
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = d.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return &Sink{w: w, cfg: cfg, ctx: ctx}
}

// PersistOne stores a single dragged node.
func (s *Sink) PersistOne(id string, x, y float64) {
	s.Persist(common.PositionUpdate{ID: id, X: x, Y: y})
}

// Persist stores a batch of positions in the background.
func (s *Sink) Persist(updates ...common.PositionUpdate) {
	batch := sanitize(updates)
	if dropped := len(updates) - len(batch); dropped > 0 {
		metrics.PositionWrites.WithLabelValues("invalid").Add(float64(dropped))
		logger.Warn("[Sink] dropping invalid position updates", "count", dropped)
	}
	if len(batch) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.write(batch); err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
	}()
}

// Wait blocks until every write issued so far has finished and returns the
// error of the most recent failed batch, if any.
func (s *Sink) Wait() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.lastErr
	s.lastErr = nil
	return err
}

func (s *Sink) write(batch []common.PositionUpdate) error {
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	chunks := chunk(batch, s.cfg.ChunkSize)
	errs := make([]error, len(chunks))
	for i, c := range chunks {
		g.Go(func() error {
			err := util.RetryErrWithBackoff(s.ctx, s.cfg.MaxTries, s.cfg.Backoff, func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
				defer cancel()
				return s.w.UpdateNodePositions(ctx, c)
			})
			if err != nil {
				metrics.PositionWrites.WithLabelValues("failed").Add(float64(len(c)))
				logger.Error("[Sink] failed to persist positions", "count", len(c), "first", c[0].ID, "err", err)
				errs[i] = fmt.Errorf("persist %d positions starting at %s: %w", len(c), c[0].ID, err)
				return nil
			}
			metrics.PositionWrites.WithLabelValues("ok").Add(float64(len(c)))
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if err == nil {
		logger.Debug("[Sink] persisted positions", "count", len(batch), "chunks", len(chunks))
	}
	return err
}

func sanitize(updates []common.PositionUpdate) []common.PositionUpdate {
	out := make([]common.PositionUpdate, 0, len(updates))
	for _, u := range updates {
		if u.ID == "" || !(common.Position{X: u.X, Y: u.Y}).IsFinite() {
			continue
		}
		out = append(out, u)
	}
	return out
}

func chunk(updates []common.PositionUpdate, size int) [][]common.PositionUpdate {
	var out [][]common.PositionUpdate
	for start := 0; start < len(updates); start += size {
		end := min(start+size, len(updates))
		out = append(out, updates[start:end])
	}
	return out
}
