package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/pipeline"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/runner"
	"github.com/vk/stagegrid/internal/schedule"
	"github.com/vk/stagegrid/internal/stage"
)

// Scheduler rebuilds and runs the view graph once per tick.
type Scheduler struct {
	reg     *registry.Registry
	store   *schedule.Store
	trigger schedule.Trigger
	runner  *runner.Runner
	out     io.Writer
	print   bool

	lastFrame atomic.Uint64
	ticks     atomic.Uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPolicy sets the rebuild policy. The default rebuilds every tick.
func WithPolicy(p schedule.Policy) Option {
	return func(s *Scheduler) { s.trigger.Policy = p }
}

// WithRunner replaces the default runner.
func WithRunner(r *runner.Runner) Option {
	return func(s *Scheduler) { s.runner = r }
}

// WithOutput sets where stages print and whether they do.
func WithOutput(w io.Writer, print bool) Option {
	return func(s *Scheduler) {
		s.out = w
		s.print = print
	}
}

// WithStore shares an existing store, e.g. with a health endpoint.
func WithStore(st *schedule.Store) Option {
	return func(s *Scheduler) { s.store = st }
}

// New creates a Scheduler over reg.
func New(reg *registry.Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		reg:    reg,
		store:  schedule.NewStore(),
		runner: runner.New(),
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the scheduler's schedule store.
func (s *Scheduler) Store() *schedule.Store { return s.store }

// LastFrame returns the frame of the most recent tick, and whether any tick ran.
func (s *Scheduler) LastFrame() (uint64, bool) {
	return s.lastFrame.Load(), s.ticks.Load() > 0
}

// TickResult is everything one tick produced.
type TickResult struct {
	Frame uint64
	// Rebuilt is set when a new graph was installed this tick.
	Rebuilt bool
	// RebuildErr is the reason a rebuild was rejected, if it was.
	RebuildErr error
	// Omitted lists views left out of the installed graph.
	Omitted []*pipeline.DanglingPredecessorError
	// Report is nil when no graph was available to run.
	Report *runner.Report
}

// Err joins every problem the tick surfaced.
func (r *TickResult) Err() error {
	errs := []error{r.RebuildErr}
	for _, o := range r.Omitted {
		errs = append(errs, o)
	}
	if r.Report != nil {
		errs = append(errs, r.Report.Err())
	}
	return errors.Join(errs...)
}

// Tick rebuilds the graph if needed and runs it once. The returned error is
// only for failures that prevent running at all; stage failures, omissions
// and rejected rebuilds are carried in the result.
func (s *Scheduler) Tick(ctx context.Context, dir *entity.Directory, frame uint64) (*TickResult, error) {
	logger := ctxlog.FromContext(ctx).With("frame", frame)
	ctx = ctxlog.WithLogger(ctx, logger)
	s.lastFrame.Store(frame)
	s.ticks.Add(1)

	res := &TickResult{Frame: frame}
	if s.trigger.Observe(s.store, dir.Version()) {
		snap := dir.Snapshot()
		g, err := pipeline.Rebuild(ctx, snap, s.reg)
		if err != nil {
			logger.Error("Rebuild rejected, keeping previous graph.", "error", err)
			res.RebuildErr = err
		} else {
			if err := s.store.Replace(ctx, g, snap.Version); err != nil {
				return nil, fmt.Errorf("installing graph: %w", err)
			}
			res.Rebuilt = true
		}
	}

	rc := &stage.RunContext{Frame: frame, Views: dir, Out: s.out, Print: s.print}
	err := s.store.Scope(ctx, func(ctx context.Context, g *pipeline.Graph) error {
		res.Omitted = g.Omitted()
		rep, err := s.runner.Run(ctx, g, rc)
		res.Report = rep
		return err
	})
	switch {
	case errors.Is(err, schedule.ErrNoGraph):
		logger.Warn("No graph to run.")
	case err != nil:
		return nil, fmt.Errorf("running graph: %w", err)
	}
	return res, nil
}
