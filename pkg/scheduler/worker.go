package scheduler

import (
	"context"
	"fmt"

	"github.com/localwebb/backend/pkg/common"
	"github.com/localwebb/backend/pkg/layout"
)

// Request is the message sent to a worker. It owns private copies of the
// node and edge arrays; nothing in it is shared with the caller.
type Request struct {
	Token  uint64
	Nodes  []common.GraphNode
	Edges  []common.GraphEdge
	Params layout.Params
}

// Response is the single message a worker sends back for a Request.
type Response struct {
	Token  uint64
	Result layout.Result
	Err    error
}

// Worker computes layouts off the caller's goroutine. Start must return
// immediately; the returned channel yields at most one Response and is then
// closed. A channel closed without a Response counts as a failed run.
type Worker interface {
	Start(ctx context.Context, req Request) <-chan Response
}

// GoroutineWorker runs every request on its own goroutine.
type GoroutineWorker struct{}

func (GoroutineWorker) Start(ctx context.Context, req Request) <-chan Response {
	out := make(chan Response, 1)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				out <- Response{Token: req.Token, Err: fmt.Errorf("layout worker panicked: %v", r)}
			}
		}()

		res, err := layout.Compute(ctx, req.Nodes, req.Edges, req.Params)
		out <- Response{Token: req.Token, Result: res, Err: err}
	}()
	return out
}

// WorkerFunc adapts a blocking compute function to the Worker interface.
type WorkerFunc func(ctx context.Context, req Request) (layout.Result, error)

func (f WorkerFunc) Start(ctx context.Context, req Request) <-chan Response {
	out := make(chan Response, 1)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				out <- Response{Token: req.Token, Err: fmt.Errorf("layout worker panicked: %v", r)}
			}
		}()

		res, err := f(ctx, req)
		out <- Response{Token: req.Token, Result: res, Err: err}
	}()
	return out
}
