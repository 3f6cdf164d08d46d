package pipeline

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/stagegrid/internal/capability"
	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/stage"
)

func testCtx() context.Context {
	return ctxlog.Discard(context.Background())
}

func id(i uint32) entity.ID { return entity.ID{Index: i, Generation: 1} }

func view(i uint32, caps capability.Set, after ...uint32) entity.Record {
	rec := entity.Record{ID: id(i), Caps: caps}
	for _, a := range after {
		rec.After = append(rec.After, id(a))
	}
	return rec
}

func nop(context.Context, *stage.RunContext, entity.ID) error { return nil }

// bloomRegistry mirrors the demo: bloom_2d is registered before bloom.
func bloomRegistry(t *testing.T, tb registry.TieBreak) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.RegisterBase(stage.KindPrepare, nop))
	require.NoError(t, reg.RegisterBase(stage.KindRender, nop))
	require.NoError(t, reg.RegisterConditional("bloom_2d", capability.Of(capability.Bloom, capability.Camera2d), nop))
	require.NoError(t, reg.RegisterConditional("bloom", capability.Of(capability.Bloom), nop))
	require.NoError(t, reg.SetTieBreak(tb))
	return reg
}

// edges returns every edge as "from->to", sorted.
func edges(g *Graph) []string {
	var out []string
	for _, n := range g.nodes {
		for _, d := range n.Dependents {
			out = append(out, n.ID()+"->"+d.ID())
		}
	}
	sort.Strings(out)
	return out
}

// reaches reports whether to is reachable from from.
func reaches(from, to *Node) bool {
	seen := map[*Node]bool{}
	var walk func(n *Node) bool
	walk = func(n *Node) bool {
		if n == to {
			return true
		}
		if seen[n] {
			return false
		}
		seen[n] = true
		for _, d := range n.Dependents {
			if walk(d) {
				return true
			}
		}
		return false
	}
	return from != to && walk(from)
}

// position maps node IDs to their index in a topological order.
func position(order []*Node) map[string]int {
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n.ID()] = i
	}
	return pos
}
