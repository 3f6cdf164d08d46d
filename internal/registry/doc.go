// Package registry holds the stage functions the scheduler can place in a
// graph: the two base stages every view runs, and the ordered list of
// conditional rules that splice extra stages into views carrying the right
// capability tags.
//
// Registration happens once, at setup, through Module implementations. The
// registry is then frozen; from that point on it is read-only and the graph
// builder only matches views against it.
package registry
