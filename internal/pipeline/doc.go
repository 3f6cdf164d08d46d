// Package pipeline builds the per-tick task graph from a snapshot of the view
// population.
//
// A graph is built in two phases. Build installs, for every view, an ordering
// group holding the base pipeline (prepare, then render) followed by a
// synthetic "core" marker node, and wires each declared predecessor's marker
// to the dependent's prepare node. Extend then appends one node per matching
// conditional rule into each view's group, ordered after that view's marker.
// Seal fixes a canonical node order and proves the graph acyclic; a sealed
// graph is immutable and can be run any number of times.
//
// Rebuild chains the three steps and is the entry point used by the scheduler.
//
// # Failure Semantics
//
//   - A view whose predecessor is missing from the snapshot (or was itself
//     omitted) is left out of the graph. The omission is recorded as a
//     *DanglingPredecessorError and the rest of the graph builds normally.
//   - A cycle in the predecessor relation, including a view naming itself,
//     aborts the whole build with a *CycleError.
package pipeline
