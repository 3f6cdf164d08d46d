package entity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vk/stagegrid/internal/capability"
)

var (
	// ErrNotFound is returned when an ID does not refer to a live view.
	ErrNotFound = errors.New("entity not found")
	// ErrNameTaken is returned when spawning a view under a name already in use.
	ErrNameTaken = errors.New("entity name already in use")
)

type slot struct {
	generation uint32
	alive      bool
	record     Record
}

// Directory is a generational arena of views.
type Directory struct {
	mu      sync.RWMutex
	slots   []slot
	free    []uint32
	byName  map[string]ID
	version uint64
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{byName: make(map[string]ID)}
}

// Spawn adds a view and returns its ID. Predecessors are stored as given and
// are not required to be alive.
func (d *Directory) Spawn(name string, caps capability.Set, after ...ID) (ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name != "" {
		if _, taken := d.byName[name]; taken {
			return ID{}, fmt.Errorf("spawn %q: %w", name, ErrNameTaken)
		}
	}

	var idx uint32
	if n := len(d.free); n > 0 {
		idx = d.free[n-1]
		d.free = d.free[:n-1]
	} else {
		idx = uint32(len(d.slots))
		d.slots = append(d.slots, slot{})
	}

	s := &d.slots[idx]
	s.generation++
	s.alive = true
	id := ID{Index: idx, Generation: s.generation}
	s.record = Record{ID: id, Name: name, After: append([]ID(nil), after...), Caps: caps}

	if name != "" {
		d.byName[name] = id
	}
	d.version++
	return id, nil
}

// Despawn removes a view. Its slot is recycled under a new generation.
func (d *Directory) Despawn(id ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.live(id)
	if err != nil {
		return err
	}
	if s.record.Name != "" {
		delete(d.byName, s.record.Name)
	}
	s.alive = false
	s.record = Record{}
	d.free = append(d.free, id.Index)
	d.version++
	return nil
}

// SetCaps replaces the capability tags of a view.
func (d *Directory) SetCaps(id ID, caps capability.Set) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.live(id)
	if err != nil {
		return err
	}
	if s.record.Caps != caps {
		s.record.Caps = caps
		d.version++
	}
	return nil
}

// SetAfter replaces the predecessor list of a view.
func (d *Directory) SetAfter(id ID, after ...ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.live(id)
	if err != nil {
		return err
	}
	s.record.After = append([]ID(nil), after...)
	d.version++
	return nil
}

// Alive reports whether id refers to a live view.
func (d *Directory) Alive(id ID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, err := d.live(id)
	return err == nil
}

// Get returns a copy of the view's record.
func (d *Directory) Get(id ID) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, err := d.live(id)
	if err != nil {
		return Record{}, false
	}
	return s.record.clone(), true
}

// Lookup resolves a live view by name.
func (d *Directory) Lookup(name string) (ID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[name]
	return id, ok
}

// Query returns the live views carrying every tag in required, in ID order.
func (d *Directory) Query(required capability.Set) []ID {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []ID
	for i := range d.slots {
		s := &d.slots[i]
		if s.alive && s.record.Caps.Contains(required) {
			out = append(out, s.record.ID)
		}
	}
	return out
}

// Len returns the number of live views.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.slots) - len(d.free)
}

// Version is bumped on every change to the population, its tags or its
// predecessor lists. The scheduler's on-change policy compares it between ticks.
func (d *Directory) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Snapshot copies the live population.
func (d *Directory) Snapshot() *Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	records := make([]Record, 0, len(d.slots))
	for i := range d.slots {
		if d.slots[i].alive {
			records = append(records, d.slots[i].record.clone())
		}
	}
	snap := NewSnapshot(records...)
	snap.Version = d.version
	return snap
}

// live must be called with d.mu held.
func (d *Directory) live(id ID) (*slot, error) {
	if int(id.Index) >= len(d.slots) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s := &d.slots[id.Index]
	if !s.alive || s.generation != id.Generation {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return s, nil
}
