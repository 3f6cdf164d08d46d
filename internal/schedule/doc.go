// Package schedule holds the current view graph and decides when it must be
// rebuilt.
//
// The Store has two states. STALE means the graph no longer reflects the
// population and must be rebuilt before the next run; CURRENT means it does.
// Replacing the graph and running it are mutually exclusive, so a run never
// observes a half-installed graph.
package schedule
