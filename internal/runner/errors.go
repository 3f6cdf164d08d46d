package runner

import (
	"errors"
	"fmt"

	"github.com/vk/stagegrid/internal/entity"
)

var (
	// ErrNotSealed is returned when running a graph that was never sealed.
	ErrNotSealed = errors.New("graph is not sealed")
	// ErrStaleEntity is the cause recorded for a stage whose view died before it ran.
	ErrStaleEntity = errors.New("view is no longer alive")
	// ErrStopped is the cancellation cause used by the stop-on-failure policy.
	ErrStopped = errors.New("run stopped after stage failure")
	// ErrSkippedUpstream is the kind of every *SkippedError.
	ErrSkippedUpstream = errors.New("skipped due to upstream failure")
)

// StageFailure wraps the error returned (or panic raised) by a stage body.
type StageFailure struct {
	Node   string
	Entity entity.ID
	Stage  string
	Cause  error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Node, e.Cause)
}

func (e *StageFailure) Unwrap() error { return e.Cause }

// SkippedError is recorded for nodes that never ran because a node they
// depend on, directly or transitively, failed.
type SkippedError struct {
	Node     string
	Upstream string
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("skipped due to upstream failure of '%s'", e.Upstream)
}

func (e *SkippedError) Unwrap() error { return ErrSkippedUpstream }
