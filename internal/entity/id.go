package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is a non-owning, generation-checked reference to a view.
// The zero value never refers to a live view.
type ID struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool { return id.Generation == 0 }

// Less orders IDs by index, then generation.
func (id ID) Less(other ID) bool {
	if id.Index != other.Index {
		return id.Index < other.Index
	}
	return id.Generation < other.Generation
}

// String renders the ID as "<index>v<generation>".
func (id ID) String() string {
	return fmt.Sprintf("%dv%d", id.Index, id.Generation)
}

// ParseID parses the String form of an ID.
func ParseID(raw string) (ID, error) {
	idx, gen, ok := strings.Cut(raw, "v")
	if !ok || idx == "" || gen == "" {
		return ID{}, fmt.Errorf("invalid entity id %q: expected <index>v<generation>", raw)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return ID{}, fmt.Errorf("invalid entity id %q: bad index: %w", raw, err)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil {
		return ID{}, fmt.Errorf("invalid entity id %q: bad generation: %w", raw, err)
	}
	if g == 0 {
		return ID{}, fmt.Errorf("invalid entity id %q: generation must be positive", raw)
	}
	return ID{Index: uint32(i), Generation: uint32(g)}, nil
}
