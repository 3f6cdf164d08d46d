package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/nodeid"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/stage"
)

// buildSeq numbers graphs so reports can tell rebuilds apart.
var buildSeq atomic.Uint64

// Node is a single schedulable unit of work for one view.
type Node struct {
	Addr   nodeid.Address
	Entity entity.ID
	Kind   stage.Kind
	// Rule is the conditional rule that produced the node, nil for base and marker nodes.
	Rule *registry.Rule
	Fn   stage.Func

	Deps       map[string]*Node
	Dependents map[string]*Node

	index int
}

// ID returns the canonical string representation of the node's address.
func (n *Node) ID() string { return n.Addr.String() }

// Stage returns the node's stage name.
func (n *Node) Stage() string { return n.Addr.Stage }

// Index returns the node's position in the graph's canonical order.
// It is only meaningful once the graph is sealed.
func (n *Node) Index() int { return n.index }

func (n *Node) rank() int {
	if n.Kind == stage.KindConditional && n.Rule != nil {
		return int(stage.KindConditional) + n.Rule.Order()
	}
	return int(n.Kind)
}

// Group is the ordering group of one view.
type Group struct {
	Entity     entity.ID
	Label      string
	Prepare    *Node
	Render     *Node
	Marker     *Node
	Extensions []*Node
}

// Nodes returns the group's nodes, base pipeline first.
func (g *Group) Nodes() []*Node {
	out := []*Node{g.Prepare, g.Render, g.Marker}
	return append(out, g.Extensions...)
}

// Graph is the node/edge collection for one tick.
type Graph struct {
	seq     uint64
	nodes   map[string]*Node
	groups  map[entity.ID]*Group
	after   map[entity.ID][]entity.ID
	omitted []*DanglingPredecessorError
	order   []*Node
	sealed  bool
}

func newGraph() *Graph {
	return &Graph{
		seq:    buildSeq.Add(1),
		nodes:  make(map[string]*Node),
		groups: make(map[entity.ID]*Group),
		after:  make(map[entity.ID][]entity.ID),
	}
}

// Seq is the graph's build sequence number, unique within the process.
func (g *Graph) Seq() uint64 { return g.seq }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns a node by its canonical ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Group returns the ordering group of a view.
func (g *Graph) Group(id entity.ID) (*Group, bool) {
	grp, ok := g.groups[id]
	return grp, ok
}

// Groups returns every group in view ID order.
func (g *Graph) Groups() []*Group {
	out := make([]*Group, 0, len(g.groups))
	for _, grp := range g.groups {
		out = append(out, grp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity.Less(out[j].Entity) })
	return out
}

// Predecessors returns the declared predecessors of a view in the graph.
func (g *Graph) Predecessors(id entity.ID) []entity.ID {
	return append([]entity.ID(nil), g.after[id]...)
}

// Omitted lists the views left out of the graph, in view ID order.
func (g *Graph) Omitted() []*DanglingPredecessorError {
	return append([]*DanglingPredecessorError(nil), g.omitted...)
}

// Err joins the omission errors, or returns nil when nothing was omitted.
func (g *Graph) Err() error {
	errs := make([]error, len(g.omitted))
	for i, e := range g.omitted {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Sealed reports whether Seal has completed.
func (g *Graph) Sealed() bool { return g.sealed }

// Nodes returns the nodes in canonical order. The graph must be sealed.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.order))
	copy(out, g.order)
	return out
}

func (g *Graph) addNode(n *Node) error {
	if g.sealed {
		return ErrSealed
	}
	id := n.ID()
	if _, exists := g.nodes[id]; exists {
		return fmt.Errorf("duplicate node: %s", id)
	}
	n.Deps = make(map[string]*Node)
	n.Dependents = make(map[string]*Node)
	g.nodes[id] = n
	return nil
}

// addEdge makes to depend on from.
func (g *Graph) addEdge(from, to *Node) error {
	if g.sealed {
		return ErrSealed
	}
	if from == to {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", from.ID(), from.ID())
	}
	if _, ok := g.nodes[from.ID()]; !ok {
		return fmt.Errorf("source node not found: %s", from.ID())
	}
	if _, ok := g.nodes[to.ID()]; !ok {
		return fmt.Errorf("destination node not found: %s", to.ID())
	}
	to.Deps[from.ID()] = from
	from.Dependents[to.ID()] = to
	return nil
}
