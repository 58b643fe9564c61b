// Package scheduler decides where a layout runs and which result wins.
//
// Small graphs are laid out on the calling goroutine. Larger graphs are
// copied into a Request and handed to a Worker. Every run gets a token from
// a monotonically increasing counter, and only the result carrying the
// latest token is ever applied.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/localwebb/backend/internal/metrics"
	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/layout"
	"github.com/localwebb/backend/pkg/logger"
)

var (
	// ErrSuperseded is returned by runs whose result was discarded because a
	// newer run had been issued in the meantime.
	ErrSuperseded = errors.New("layout run superseded")
	// ErrLayoutFailed wraps the cause of a failed run. The run still resolves
	// with fallback positions, so callers may treat it as a warning.
	ErrLayoutFailed = errors.New("layout failed")
)

const (
	pathSync  = "sync"
	pathAsync = "async"
)

// Config controls routing and cancellation.
type Config struct {
	// Threshold is the node count from which runs are handed to the worker.
	Threshold int `json:"threshold"`
	// CancelSuperseded cancels the context of a run once a newer run is
	// issued. Without it, superseded runs complete and are ignored.
	CancelSuperseded bool          `json:"cancel_superseded"`
	Params           layout.Params `json:"params"`
}

func DefaultConfig() Config {
	return Config{
		Threshold: 500,
		Params:    layout.DefaultParams(),
	}
}

// Applied describes a result that became current.
type Applied struct {
	Token  uint64
	Result layout.Result
	// Fallback is set when the run failed and Result holds remembered or
	// seeded positions instead of a finished simulation.
	Fallback bool
}

// ApplyFunc receives every applied result in token order.
type ApplyFunc func(Applied)

type Scheduler struct {
	cfg    Config
	worker Worker

	token atomic.Uint64

	mu         sync.Mutex
	current    layout.Result
	hasCurrent bool
	known      map[string]common.Position
	cancel     context.CancelFunc
	onApply    []ApplyFunc
}

// New creates a scheduler. A nil worker means GoroutineWorker.
func New(cfg Config, w Worker) *Scheduler {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	cfg.Params = cfg.Params.Normalize()
	if w == nil {
		w = GoroutineWorker{}
	}
	return &Scheduler{
		cfg:    cfg,
		worker: w,
		known:  make(map[string]common.Position),
	}
}

// OnApply registers fn for applied results. fn runs while the scheduler
// holds its lock and must not call back into the Scheduler.
func (s *Scheduler) OnApply(fn ApplyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onApply = append(s.onApply, fn)
}

// Params returns the normalized simulation parameters used for every run.
func (s *Scheduler) Params() layout.Params {
	return s.cfg.Params
}

// Latest returns the most recently issued token, zero before the first run.
func (s *Scheduler) Latest() uint64 {
	return s.token.Load()
}

// Invalidate issues a token without a run, so every run still in flight
// becomes stale. Used when positions come from somewhere other than a
// simulation, e.g. a saved layout.
func (s *Scheduler) Invalidate() uint64 {
	return s.issue(nil)
}

// Current returns the last applied result.
func (s *Scheduler) Current() (layout.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasCurrent
}

// Remember records positions that fallbacks may reuse, e.g. a saved layout
// adopted without simulation or a node the user dragged.
func (s *Scheduler) Remember(updates ...common.PositionUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		p := common.Position{X: u.X, Y: u.Y}
		if p.IsFinite() {
			s.known[u.ID] = p
		}
	}
}

// Forget drops all remembered positions, used when a different graph is loaded.
func (s *Scheduler) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.known)
}

// RunLayout lays out nodes and edges. Below the threshold the returned Run
// is already resolved; above it the Run resolves once the worker answers.
// The caller's context only bounds synchronous runs, asynchronous runs
// outlive the request that issued them.
func (s *Scheduler) RunLayout(ctx context.Context, nodes []common.GraphNode, edges []common.GraphEdge) *Run {
	if len(nodes) < s.cfg.Threshold {
		token := s.issue(nil)
		run := newRun(token, false)
		metrics.LayoutRuns.WithLabelValues(pathSync).Inc()
		start := time.Now()
		res, err := layout.Compute(ctx, nodes, edges, s.cfg.Params)
		metrics.LayoutDuration.WithLabelValues(pathSync).Observe(time.Since(start).Seconds())
		s.finish(run, nodes, edges, Response{Token: token, Result: res, Err: err}, true)
		return run
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	token := s.issue(cancel)
	run := newRun(token, true)
	metrics.LayoutRuns.WithLabelValues(pathAsync).Inc()
	req := Request{
		Token:  token,
		Nodes:  common.CloneNodes(nodes),
		Edges:  common.CloneEdges(edges),
		Params: s.cfg.Params,
	}

	logger.Debug("[Scheduler] dispatching layout to worker", "token", token, "nodes", len(nodes), "edges", len(edges))
	start := time.Now()
	ch := s.worker.Start(runCtx, req)
	go func() {
		defer cancel()
		resp, ok := <-ch
		metrics.LayoutDuration.WithLabelValues(pathAsync).Observe(time.Since(start).Seconds())
		s.finish(run, req.Nodes, req.Edges, resp, ok)
	}()
	return run
}

// issue hands out the next token. With CancelSuperseded it also cancels the
// previous run and keeps next as the cancel func of the new one; both happen
// under s.mu so an older run can never end up holding the newest cancel.
func (s *Scheduler) issue(next context.CancelFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.token.Add(1)
	if s.cfg.CancelSuperseded {
		if s.cancel != nil {
			s.cancel()
		}
		s.cancel = next
	}
	return token
}

// finish resolves run. Stale responses are dropped before anything else is
// looked at, so a superseded run can never overwrite a newer one, not even
// with fallback positions.
func (s *Scheduler) finish(run *Run, nodes []common.GraphNode, edges []common.GraphEdge, resp Response, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer run.resolve()

	if run.Token != s.token.Load() {
		metrics.LayoutStaleResults.Inc()
		logger.Debug("[Scheduler] dropping stale layout result", "token", run.Token, "latest", s.token.Load())
		run.err = ErrSuperseded
		return
	}

	var cause error
	switch {
	case !ok:
		cause = errors.New("worker channel closed without a response")
	case resp.Err != nil:
		cause = resp.Err
	case resp.Token != run.Token:
		cause = fmt.Errorf("worker answered token %d for run %d", resp.Token, run.Token)
	}

	res := resp.Result
	if cause != nil {
		metrics.LayoutFallbacks.Inc()
		logger.Warn("[Scheduler] layout failed, falling back", "token", run.Token, "err", cause)
		res = s.fallback(nodes, edges)
		run.fallback = true
		run.err = fmt.Errorf("%w: %w", ErrLayoutFailed, cause)
	} else {
		metrics.LayoutFrozenNodes.Add(float64(len(res.Frozen)))
		metrics.LayoutDroppedEdges.Add(float64(res.DroppedEdges))
		if len(res.Frozen) > 0 {
			logger.Warn("[Scheduler] nodes frozen after non-finite coordinates", "token", run.Token, "count", len(res.Frozen))
		}
	}

	s.apply(Applied{Token: run.Token, Result: res, Fallback: run.fallback})
	run.result = res
	run.applied = true
}

// fallback prefers remembered positions and seeds everything else, so no
// node is ever left without a position.
func (s *Scheduler) fallback(nodes []common.GraphNode, edges []common.GraphEdge) layout.Result {
	res := layout.SeedResult(nodes, edges, s.cfg.Params)
	for i, p := range res.Positions {
		if known, ok := s.known[p.ID]; ok {
			res.Positions[i].X, res.Positions[i].Y = known.X, known.Y
		}
	}
	res.Iterations = 0
	return res
}

func (s *Scheduler) apply(a Applied) {
	s.current = a.Result
	s.hasCurrent = true
	for _, p := range a.Result.Positions {
		s.known[p.ID] = common.Position{X: p.X, Y: p.Y}
	}
	for _, fn := range s.onApply {
		fn(a)
	}
}
