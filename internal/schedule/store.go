package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/pipeline"
)

var (
	// ErrNoGraph is returned by Scope before the first successful rebuild.
	ErrNoGraph = errors.New("no graph has been built yet")
	// ErrUnsealed is returned when replacing the graph with an unsealed one.
	ErrUnsealed = errors.New("graph must be sealed before it is installed")
)

// State is the store's freshness.
type State uint8

const (
	StateStale State = iota
	StateCurrent
)

func (s State) String() string {
	switch s {
	case StateStale:
		return "STALE"
	case StateCurrent:
		return "CURRENT"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Status is a point-in-time view of the store.
type Status struct {
	State State
	// Seq is the installed graph's sequence number, zero when empty.
	Seq   uint64
	Nodes int
	// Version is the population version the installed graph was built from.
	Version uint64
}

// Store holds exactly one graph at a time.
type Store struct {
	// run serializes Scope callers so one run is in flight at a time.
	run     sync.Mutex
	mu      sync.RWMutex
	graph   *pipeline.Graph
	state   State
	version uint64
}

// NewStore creates an empty, stale store.
func NewStore() *Store {
	return &Store{state: StateStale}
}

// State returns the store's freshness.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Graph returns the installed graph, or nil.
func (s *Store) Graph() *pipeline.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// Status returns the store's status.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{State: s.state, Version: s.version}
	if s.graph != nil {
		st.Seq = s.graph.Seq()
		st.Nodes = s.graph.Len()
	}
	return st
}

// Built reports the population version of the installed graph, and whether
// a graph is installed at all.
func (s *Store) Built() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, s.graph != nil
}

// MarkStale records that the population changed. The installed graph is kept
// and still runs until a rebuild succeeds.
func (s *Store) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateStale
}

// Replace installs g, built from population version, and marks the store
// CURRENT. It waits for any run in progress to leave its Scope.
func (s *Store) Replace(ctx context.Context, g *pipeline.Graph, version uint64) error {
	if g == nil || !g.Sealed() {
		return ErrUnsealed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := uint64(0)
	if s.graph != nil {
		prev = s.graph.Seq()
	}
	s.graph = g
	s.version = version
	s.state = StateCurrent
	ctxlog.FromContext(ctx).Debug("Installed view graph.", "seq", g.Seq(), "previous_seq", prev, "version", version)
	return nil
}

// Scope calls fn with the installed graph while holding it in place: no
// Replace can complete until fn returns. Concurrent Scope calls run one after
// another. Status readers are not blocked.
func (s *Store) Scope(ctx context.Context, fn func(ctx context.Context, g *pipeline.Graph) error) error {
	s.run.Lock()
	defer s.run.Unlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.graph == nil {
		return ErrNoGraph
	}
	return fn(ctx, s.graph)
}
