package registry

import "fmt"

// TieBreak decides how two conditional stages are ordered on a view that
// matches both, when one rule's required set strictly contains the other's.
type TieBreak int

const (
	// NarrowerFirst runs the more specific rule (larger required set) first:
	// specific variants refine, then general ones compose on top.
	NarrowerFirst TieBreak = iota
	// BroaderFirst runs the more general rule first.
	BroaderFirst
)

func (tb TieBreak) String() string {
	switch tb {
	case NarrowerFirst:
		return "narrower_first"
	case BroaderFirst:
		return "broader_first"
	default:
		return fmt.Sprintf("tie_break(%d)", int(tb))
	}
}

// ParseTieBreak resolves the String form of a TieBreak.
func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "", "narrower_first":
		return NarrowerFirst, nil
	case "broader_first":
		return BroaderFirst, nil
	default:
		return 0, fmt.Errorf("invalid tie-break %q: must be 'narrower_first' or 'broader_first'", s)
	}
}

// Precedes reports whether a's node must run before b's node on a view that
// matches both rules.
func (tb TieBreak) Precedes(a, b *Rule) bool {
	if a == nil || b == nil || a == b || a.Unordered || b.Unordered {
		return false
	}
	switch tb {
	case BroaderFirst:
		return b.Requires.StrictlyContains(a.Requires)
	default:
		return a.Requires.StrictlyContains(b.Requires)
	}
}
