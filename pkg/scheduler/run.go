package scheduler

import (
	"context"

	"github.com/localwebb/backend/pkg/layout"
)

// Run is the handle of one layout request.
type Run struct {
	Token uint64
	// Async is true when the run was handed to the worker.
	Async bool

	done     chan struct{}
	result   layout.Result
	err      error
	fallback bool
	applied  bool
}

func newRun(token uint64, async bool) *Run {
	return &Run{Token: token, Async: async, done: make(chan struct{})}
}

func (r *Run) resolve() {
	close(r.done)
}

// Done is closed once the run has been applied, rejected or failed.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Pending reports whether the run is still waiting for its worker.
func (r *Run) Pending() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the run resolves. A superseded run returns
// ErrSuperseded and an empty result. A failed run returns the fallback
// positions together with an error wrapping ErrLayoutFailed.
func (r *Run) Wait(ctx context.Context) (layout.Result, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return layout.Result{}, ctx.Err()
	}
}

// Applied reports whether the run's result (or its fallback) became current.
// Only valid after Done is closed.
func (r *Run) Applied() bool {
	<-r.done
	return r.applied
}

// Fallback reports whether the run failed and fell back. Only valid after
// Done is closed.
func (r *Run) Fallback() bool {
	<-r.done
	return r.fallback
}

// Err returns the run's error after it resolved.
func (r *Run) Err() error {
	<-r.done
	return r.err
}
