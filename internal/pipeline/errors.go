package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/stagegrid/internal/entity"
)

var (
	// ErrCycle is the kind of every *CycleError.
	ErrCycle = errors.New("cycle detected")
	// ErrDanglingPredecessor is the kind of every *DanglingPredecessorError.
	ErrDanglingPredecessor = errors.New("dangling predecessor")
	// ErrSealed is returned when modifying a graph after Seal.
	ErrSealed = errors.New("graph is sealed")
)

// CycleError reports the views forming a cycle. For predecessor cycles
// Entities is a closed path in execution order: its first and last elements
// are the same view.
type CycleError struct {
	Entities []entity.ID
}

func (e *CycleError) Error() string {
	if len(e.Entities) == 0 {
		return ErrCycle.Error()
	}
	parts := make([]string, len(e.Entities))
	for i, id := range e.Entities {
		parts[i] = id.String()
	}
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(parts, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// DanglingPredecessorError reports a view left out of the graph because one
// of its predecessors is unavailable.
type DanglingPredecessorError struct {
	Entity  entity.ID
	Missing entity.ID
	// Upstream is set when Missing exists but was omitted itself.
	Upstream bool
}

func (e *DanglingPredecessorError) Error() string {
	reason := "not in snapshot"
	if e.Upstream {
		reason = "omitted upstream"
	}
	return fmt.Sprintf("view %s: %s %s (%s)", e.Entity, ErrDanglingPredecessor, e.Missing, reason)
}

func (e *DanglingPredecessorError) Unwrap() error { return ErrDanglingPredecessor }
