package capability

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// Tag is a single capability bit.
type Tag uint8

const (
	Camera Tag = iota
	Camera2d
	Camera3d
	Bloom
	Hdr
	Fxaa
	Tonemap
	Msaa

	numTags
)

var tagNames = [numTags]string{
	Camera:   "camera",
	Camera2d: "camera_2d",
	Camera3d: "camera_3d",
	Bloom:    "bloom",
	Hdr:      "hdr",
	Fxaa:     "fxaa",
	Tonemap:  "tonemap",
	Msaa:     "msaa",
}

// String returns the tag's canonical name.
func (t Tag) String() string {
	if t >= numTags {
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
	return tagNames[t]
}

// ParseTag resolves a tag by its canonical name.
func ParseTag(name string) (Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range tagNames {
		if n == name {
			return Tag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown capability tag %q", name)
}

// Names lists every known tag name in declaration order.
func Names() []string {
	out := make([]string, len(tagNames))
	copy(out, tagNames[:])
	return out
}

// Set is a bitset of tags. The zero value is the empty set.
type Set uint64

// Of builds a set from the given tags.
func Of(tags ...Tag) Set {
	var s Set
	for _, t := range tags {
		s = s.With(t)
	}
	return s
}

// Parse builds a set from tag names. Duplicate names collapse.
func Parse(names []string) (Set, error) {
	var s Set
	for _, n := range names {
		t, err := ParseTag(n)
		if err != nil {
			return 0, err
		}
		s = s.With(t)
	}
	return s, nil
}

// With returns s plus t.
func (s Set) With(t Tag) Set { return s | 1<<t }

// Without returns s minus t.
func (s Set) Without(t Tag) Set { return s &^ (1 << t) }

// Has reports whether t is in s.
func (s Set) Has(t Tag) bool { return s&(1<<t) != 0 }

// Len returns the number of tags in s.
func (s Set) Len() int { return bits.OnesCount64(uint64(s)) }

// IsEmpty reports whether s has no tags.
func (s Set) IsEmpty() bool { return s == 0 }

// Contains reports whether every tag of other is also in s.
func (s Set) Contains(other Set) bool { return s&other == other }

// StrictlyContains reports whether s is a proper superset of other.
func (s Set) StrictlyContains(other Set) bool { return s != other && s.Contains(other) }

// Tags returns the members of s in declaration order.
func (s Set) Tags() []Tag {
	out := make([]Tag, 0, s.Len())
	for t := Tag(0); t < numTags; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// String renders s as "{a,b}" with names sorted alphabetically.
func (s Set) String() string {
	names := make([]string, 0, s.Len())
	for _, t := range s.Tags() {
		names = append(names, t.String())
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ",") + "}"
}
