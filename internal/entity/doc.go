// Package entity provides the view directory the scheduler reads from: a
// generational arena of views, each with a name, capability tags and the list
// of views it must render after.
//
// # Identity
//
// An ID pairs a slot index with the slot's generation. Despawning a view bumps
// the generation of its slot, so an ID held across a despawn never resolves to
// the view that later reuses the slot. The scheduler relies on this to detect
// dangling predecessors without ever dereferencing a stale reference.
//
// # Thread-Safety
//
// Directory guards its arena with a sync.RWMutex. Writers (the host) and
// readers (the scheduler, stage functions) may run on different goroutines.
// A Snapshot is an immutable copy and needs no locking.
package entity
