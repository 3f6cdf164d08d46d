package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/stagegrid/internal/entity"
)

// Status is the terminal state of a node after a run.
type Status uint8

const (
	StatusOK Status = iota
	StatusFailed
	StatusSkippedUpstream
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusSkippedUpstream:
		return "skipped"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Result is the outcome of a single node.
type Result struct {
	Node     string
	Entity   entity.ID
	Stage    string
	Status   Status
	Err      error
	Duration time.Duration
}

// Report is the outcome of running one graph.
type Report struct {
	// Seq is the sequence number of the graph that ran.
	Seq   uint64
	Frame uint64
	// Results holds one entry per node in canonical order.
	Results []*Result
	// Order lists the node IDs that were dispatched, in dispatch order.
	Order   []string
	Started time.Time
	Elapsed time.Duration
	// Canceled is the reason the run ended early, if it did.
	Canceled error

	byNode map[string]*Result
}

// Result returns the outcome of a node by ID.
func (r *Report) Result(node string) (*Result, bool) {
	res, ok := r.byNode[node]
	return res, ok
}

// Count returns how many nodes ended in status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// OK reports whether every node completed successfully.
func (r *Report) OK() bool { return r.Count(StatusOK) == len(r.Results) }

// Err returns the run's root cause: the first failed node's error, naming
// every failed node. Skipped nodes are symptoms and are not listed. A run that
// was only canceled returns the cancellation cause.
func (r *Report) Err() error {
	var failed []string
	var rootCause error
	for _, res := range r.Results {
		if res.Status != StatusFailed {
			continue
		}
		failed = append(failed, res.Node)
		if rootCause == nil {
			rootCause = res.Err
		}
	}
	if rootCause != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	if r.Canceled != nil && !errors.Is(r.Canceled, ErrStopped) {
		return fmt.Errorf("execution canceled: %w", r.Canceled)
	}
	return nil
}
