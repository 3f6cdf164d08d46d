package runner

import (
	"container/heap"
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/pipeline"
	"github.com/vk/stagegrid/internal/stage"
)

// FailurePolicy decides what happens to independent branches after a failure.
type FailurePolicy uint8

const (
	// ContinueIndependent skips the failed node's descendants and keeps
	// running everything else.
	ContinueIndependent FailurePolicy = iota
	// StopOnFailure cancels every node that has not started yet.
	StopOnFailure
)

func (p FailurePolicy) String() string {
	switch p {
	case ContinueIndependent:
		return "continue"
	case StopOnFailure:
		return "stop"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParseFailurePolicy parses "continue" or "stop". The empty string selects
// ContinueIndependent.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue":
		return ContinueIndependent, nil
	case "stop":
		return StopOnFailure, nil
	default:
		return 0, fmt.Errorf("unknown failure policy %q (want continue or stop)", s)
	}
}

// Runner executes sealed graphs.
type Runner struct {
	policy FailurePolicy
	now    func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithFailurePolicy sets the failure policy. The default is ContinueIndependent.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(r *Runner) { r.policy = p }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the runner's failure policy.
func (r *Runner) Policy() FailurePolicy { return r.policy }

// Run executes every node of g exactly once, or records why it did not run.
// The returned error is non-nil only when g cannot be run at all; stage
// failures are reported through the Report.
func (r *Runner) Run(ctx context.Context, g *pipeline.Graph, rc *stage.RunContext) (*Report, error) {
	if !g.Sealed() {
		return nil, ErrNotSealed
	}
	logger := ctxlog.FromContext(ctx).With("seq", g.Seq())

	nodes := g.Nodes()
	rep := &Report{
		Seq:     g.Seq(),
		Results: make([]*Result, len(nodes)),
		Order:   make([]string, 0, len(nodes)),
		Started: r.now(),
		byNode:  make(map[string]*Result, len(nodes)),
	}
	if rc != nil {
		rep.Frame = rc.Frame
	}

	indeg := make([]int, len(nodes))
	ready := &readyQueue{}
	for i, n := range nodes {
		res := &Result{Node: n.ID(), Entity: n.Entity, Stage: n.Stage()}
		rep.Results[i] = res
		rep.byNode[res.Node] = res
		indeg[i] = len(n.Deps)
		if indeg[i] == 0 {
			heap.Push(ready, n)
		}
	}

	logger.Debug("Starting graph run.", "node_count", len(nodes))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*pipeline.Node)
		res := rep.Results[n.Index()]

		switch {
		case rep.Canceled != nil:
			res.Status, res.Err = StatusCanceled, rep.Canceled
		case ctx.Err() != nil:
			rep.Canceled = ctx.Err()
			logger.Warn("Context canceled, skipping remaining nodes.", "node_id", res.Node)
			res.Status, res.Err = StatusCanceled, rep.Canceled
		default:
			if upstream := failedUpstream(rep, n); upstream != "" {
				logger.Warn("Skipping node due to upstream failure.", "node_id", res.Node, "dependency", upstream)
				res.Status = StatusSkippedUpstream
				res.Err = &SkippedError{Node: res.Node, Upstream: upstream}
				break
			}
			r.execute(ctx, n, rc, res)
			rep.Order = append(rep.Order, res.Node)
			if res.Status == StatusFailed {
				logger.Error("Node execution failed.", "node_id", res.Node, "error", res.Err)
				if r.policy == StopOnFailure {
					rep.Canceled = ErrStopped
				}
			}
		}

		for _, d := range n.Dependents {
			indeg[d.Index()]--
			if indeg[d.Index()] == 0 {
				heap.Push(ready, d)
			}
		}
	}

	rep.Elapsed = r.now().Sub(rep.Started)
	logger.Debug("Graph run finished.",
		"ok", rep.Count(StatusOK),
		"failed", rep.Count(StatusFailed),
		"skipped", rep.Count(StatusSkippedUpstream),
		"canceled", rep.Count(StatusCanceled),
	)
	return rep, nil
}

func (r *Runner) execute(ctx context.Context, n *pipeline.Node, rc *stage.RunContext, res *Result) {
	start := r.now()
	err := callStage(ctx, n, rc)
	res.Duration = r.now().Sub(start)
	if err != nil {
		res.Status = StatusFailed
		res.Err = &StageFailure{Node: res.Node, Entity: n.Entity, Stage: n.Stage(), Cause: err}
		return
	}
	res.Status = StatusOK
}

// callStage runs the node's body, turning a dead view or a panic into an error.
func callStage(ctx context.Context, n *pipeline.Node, rc *stage.RunContext) (err error) {
	if rc != nil && rc.Views != nil && !rc.Views.Alive(n.Entity) {
		return ErrStaleEntity
	}
	defer func() {
		if p := recover(); p != nil {
			ctxlog.FromContext(ctx).Error("Stage panicked.", "node_id", n.ID(), "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return n.Fn(ctx, rc, n.Entity)
}

// failedUpstream returns the root failed node behind n's first unsuccessful
// dependency, or "" when every dependency succeeded.
func failedUpstream(rep *Report, n *pipeline.Node) string {
	var first *pipeline.Node
	for _, d := range n.Deps {
		if rep.Results[d.Index()].Status == StatusOK {
			continue
		}
		if first == nil || d.Index() < first.Index() {
			first = d
		}
	}
	if first == nil {
		return ""
	}
	res := rep.Results[first.Index()]
	if skipped, ok := res.Err.(*SkippedError); ok {
		return skipped.Upstream
	}
	return res.Node
}

type readyQueue []*pipeline.Node

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i].Index() < q[j].Index() }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(*pipeline.Node)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
