// Package runner executes a sealed view graph for one tick.
//
// Nodes run one at a time. Among the nodes whose dependencies have completed,
// the one with the lowest canonical index runs next, so two runs of the same
// graph dispatch stages in the same order. A failed node skips everything
// downstream of it; unrelated branches keep running unless the runner is
// configured to stop on the first failure.
package runner
