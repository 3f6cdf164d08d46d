package entity

import (
	"sort"

	"github.com/vk/stagegrid/internal/capability"
)

// Record is the scheduler-visible state of one view.
type Record struct {
	ID    ID
	Name  string
	After []ID
	Caps  capability.Set
}

// Label returns the record's name, or its ID when unnamed.
func (r Record) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID.String()
}

func (r Record) clone() Record {
	r.After = append([]ID(nil), r.After...)
	return r
}

// Querier finds the views carrying every tag of a required set.
type Querier interface {
	Query(required capability.Set) []ID
}

// Reader resolves IDs to live records.
type Reader interface {
	Alive(id ID) bool
	Get(id ID) (Record, bool)
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
