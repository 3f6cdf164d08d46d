package entity

import "github.com/vk/stagegrid/internal/capability"

// Snapshot is an immutable copy of a population. Records keep the order they
// were given in; lookups resolve to the first record with a given ID.
type Snapshot struct {
	Records []Record
	// Version is the directory version the snapshot was taken at, or zero.
	Version uint64

	index map[ID]int
}

// NewSnapshot builds a snapshot from records. The records are copied.
func NewSnapshot(records ...Record) *Snapshot {
	s := &Snapshot{
		Records: make([]Record, 0, len(records)),
		index:   make(map[ID]int, len(records)),
	}
	for _, r := range records {
		if _, dup := s.index[r.ID]; !dup {
			s.index[r.ID] = len(s.Records)
		}
		s.Records = append(s.Records, r.clone())
	}
	return s
}

// Alive reports whether id is part of the snapshot.
func (s *Snapshot) Alive(id ID) bool {
	_, ok := s.index[id]
	return ok
}

// Get returns the record for id.
func (s *Snapshot) Get(id ID) (Record, bool) {
	i, ok := s.index[id]
	if !ok {
		return Record{}, false
	}
	return s.Records[i].clone(), true
}

// Query returns the IDs of records carrying every tag in required, in ID order.
func (s *Snapshot) Query(required capability.Set) []ID {
	var out []ID
	for id, i := range s.index {
		if s.Records[i].Caps.Contains(required) {
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out
}

// Len returns the number of distinct IDs in the snapshot.
func (s *Snapshot) Len() int { return len(s.index) }
