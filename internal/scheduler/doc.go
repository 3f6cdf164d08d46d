// Package scheduler ties the view directory to the schedule store and the
// runner. It is the only component the host loop calls every tick.
//
// A tick observes the directory version, rebuilds the graph when the rebuild
// policy asks for it, installs it, and runs the installed graph once. A
// rebuild that fails on a cycle leaves the previous graph in place; the store
// stays STALE and the next tick tries again.
package scheduler
