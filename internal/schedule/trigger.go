package schedule

import (
	"fmt"
	"strings"
)

// Policy chooses when the graph is rebuilt.
type Policy uint8

const (
	// PolicyEveryTick rebuilds before every run.
	PolicyEveryTick Policy = iota
	// PolicyOnChange rebuilds only when the population version moved or the
	// store is stale.
	PolicyOnChange
)

func (p Policy) String() string {
	switch p {
	case PolicyEveryTick:
		return "every_tick"
	case PolicyOnChange:
		return "on_change"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy parses "every_tick" or "on_change". The empty string selects
// PolicyEveryTick.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "every_tick":
		return PolicyEveryTick, nil
	case "on_change":
		return PolicyOnChange, nil
	default:
		return 0, fmt.Errorf("unknown rebuild policy %q (want every_tick or on_change)", s)
	}
}

// Trigger turns population versions into rebuild decisions.
type Trigger struct {
	Policy Policy
}

// Observe compares version against the graph installed in s, marks s stale
// when they differ, and reports whether a rebuild is due.
func (t Trigger) Observe(s *Store, version uint64) bool {
	built, ok := s.Built()
	if !ok || built != version {
		s.MarkStale()
	}
	if t.Policy == PolicyEveryTick {
		return true
	}
	return s.State() == StateStale
}
