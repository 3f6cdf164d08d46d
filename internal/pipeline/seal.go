package pipeline

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/stage"
)

// Seal fixes the canonical node order, checks the graph's invariants and makes
// it immutable. Canonical order is (view ID, stage rank), where conditional
// stages rank by registration order.
func (g *Graph) Seal(ctx context.Context) error {
	if g.sealed {
		return nil
	}

	order := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		order = append(order, n)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.Entity != b.Entity {
			return a.Entity.Less(b.Entity)
		}
		if a.rank() != b.rank() {
			return a.rank() < b.rank()
		}
		return a.Addr.Stage < b.Addr.Stage
	})
	for i, n := range order {
		n.index = i
	}
	g.order = order

	for _, n := range order {
		if n.Kind != stage.KindConditional {
			continue
		}
		grp := g.groups[n.Entity]
		if grp == nil || n.Deps[grp.Marker.ID()] == nil {
			return fmt.Errorf("invariant violation: conditional node %s does not follow its marker", n.ID())
		}
	}

	if topo := g.topoOrder(); len(topo) != len(order) {
		return g.nodeCycle()
	}

	g.sealed = true
	ctxlog.FromContext(ctx).Debug("Graph sealed.", "seq", g.seq, "node_count", len(order))
	return nil
}

type nodeHeap []*Node

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].index < h[j].index }
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)        { *h = append(*h, x.(*Node)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopologicalOrder returns a deterministic topological ordering: among ready
// nodes the one with the lowest canonical index goes first.
func (g *Graph) TopologicalOrder() []*Node {
	return g.topoOrder()
}

func (g *Graph) topoOrder() []*Node {
	indeg := make(map[*Node]int, len(g.order))
	ready := &nodeHeap{}
	for _, n := range g.order {
		indeg[n] = len(n.Deps)
		if indeg[n] == 0 {
			heap.Push(ready, n)
		}
	}

	out := make([]*Node, 0, len(g.order))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*Node)
		out = append(out, n)
		for _, d := range n.Dependents {
			indeg[d]--
			if indeg[d] == 0 {
				heap.Push(ready, d)
			}
		}
	}
	return out
}

// nodeCycle reports the views taking part in a node-level cycle. Build rejects
// predecessor cycles earlier, so this only fires on a construction bug.
func (g *Graph) nodeCycle() error {
	indeg := make(map[*Node]int, len(g.order))
	for _, n := range g.order {
		indeg[n] = len(n.Deps)
	}
	for _, n := range g.topoOrder() {
		delete(indeg, n)
	}
	seen := make(map[entity.ID]bool)
	var ids []entity.ID
	for n := range indeg {
		if !seen[n.Entity] {
			seen[n.Entity] = true
			ids = append(ids, n.Entity)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return &CycleError{Entities: ids}
}
