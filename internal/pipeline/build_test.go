package pipeline

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/stagegrid/internal/capability"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/registry"
)

var (
	bloom   = capability.Of(capability.Bloom)
	bloom2d = capability.Of(capability.Bloom, capability.Camera2d)
)

func TestBuild_BasePipeline(t *testing.T) {
	snap := entity.NewSnapshot(view(0, 0), view(1, 0, 0))
	g, err := Build(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))
	require.NoError(t, err)

	assert.Equal(t, 6, g.Len())
	assert.Equal(t, []string{
		"0v1.core->1v1.prepare",
		"0v1.prepare->0v1.render",
		"0v1.render->0v1.core",
		"1v1.prepare->1v1.render",
		"1v1.render->1v1.core",
	}, edges(g))
	assert.False(t, g.Sealed())
	assert.Equal(t, []entity.ID{id(0)}, g.Predecessors(id(1)))
}

func TestBuild_DemoScenario(t *testing.T) {
	// zero
	// -> one (bloom, camera_2d)
	//    -> three (bloom)
	// -> two
	snap := entity.NewSnapshot(
		view(0, 0),
		view(1, bloom2d, 0),
		view(2, 0, 0),
		view(3, bloom, 0, 1),
	)
	g, err := Rebuild(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))
	require.NoError(t, err)
	require.True(t, g.Sealed())

	node := func(id string) *Node {
		n, ok := g.Node(id)
		require.True(t, ok, id)
		return n
	}

	// Z's base completes before O's and T's prepare.
	assert.True(t, reaches(node("0v1.core"), node("1v1.prepare")))
	assert.True(t, reaches(node("0v1.core"), node("2v1.prepare")))
	// O's and T's bases gate Th. T is not a declared predecessor of Th.
	assert.True(t, reaches(node("1v1.core"), node("3v1.prepare")))
	assert.False(t, reaches(node("2v1.core"), node("3v1.prepare")))

	// O: marker -> bloom_2d -> bloom, and nothing after them. The marker also gates Th.
	assert.ElementsMatch(t, []string{"1v1.bloom_2d", "1v1.bloom", "3v1.prepare"}, keys(node("1v1.core").Dependents))
	assert.Equal(t, []string{"1v1.bloom"}, keys(node("1v1.bloom_2d").Dependents))
	assert.Empty(t, node("1v1.bloom").Dependents)

	// Th: exactly one conditional node.
	grp, ok := g.Group(id(3))
	require.True(t, ok)
	require.Len(t, grp.Extensions, 1)
	assert.Equal(t, "3v1.bloom", grp.Extensions[0].ID())

	// Z and T carry no tags.
	for _, i := range []uint32{0, 2} {
		grp, _ := g.Group(id(i))
		assert.Empty(t, grp.Extensions)
	}

	assert.Equal(t, 4*3+3, g.Len())
}

func keys(m map[string]*Node) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestBuild_ClosureMatchesDeclaredRelation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		const n = 10
		records := make([]entity.Record, n)
		for i := uint32(0); i < n; i++ {
			var preds []uint32
			for j := uint32(0); j < i; j++ {
				if rng.Intn(4) == 0 {
					preds = append(preds, j)
				}
			}
			records[i] = view(i, 0, preds...)
		}

		// Transitive closure of the declared relation: dependsOn[a][b] means b runs before a.
		dependsOn := make([][n]bool, n)
		for i := 0; i < n; i++ {
			for _, p := range records[i].After {
				dependsOn[i][p.Index] = true
				for k := 0; k < n; k++ {
					if dependsOn[p.Index][k] {
						dependsOn[i][k] = true
					}
				}
			}
		}

		rng.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
		g, err := Rebuild(testCtx(), entity.NewSnapshot(records...), bloomRegistry(t, registry.NarrowerFirst))
		require.NoError(t, err)

		pos := position(g.TopologicalOrder())
		for a := uint32(0); a < n; a++ {
			ga, _ := g.Group(id(a))
			for b := uint32(0); b < n; b++ {
				if a == b {
					continue
				}
				gb, _ := g.Group(id(b))
				assert.Equal(t, dependsOn[a][b], reaches(gb.Prepare, ga.Prepare), "round %d: %d before %d", round, b, a)
				if dependsOn[a][b] {
					assert.Less(t, pos[gb.Render.ID()], pos[ga.Prepare.ID()])
				}
			}
		}
	}
}

func TestBuild_OrderIndependent(t *testing.T) {
	records := []entity.Record{
		view(0, 0),
		view(1, bloom2d, 0),
		view(2, 0, 0),
		view(3, bloom, 0, 1),
		view(4, bloom2d, 2, 3),
	}
	reg := bloomRegistry(t, registry.NarrowerFirst)

	base, err := Rebuild(testCtx(), entity.NewSnapshot(records...), reg)
	require.NoError(t, err)
	want := edges(base)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := append([]entity.Record(nil), records...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		g, err := Rebuild(testCtx(), entity.NewSnapshot(shuffled...), reg)
		require.NoError(t, err)
		if diff := cmp.Diff(want, edges(g)); diff != "" {
			t.Fatalf("edge relation depends on iteration order (-want +got):\n%s", diff)
		}
		assert.Equal(t, nodeIDs(base.Nodes()), nodeIDs(g.Nodes()), "canonical order must not depend on iteration order")
	}
}

func nodeIDs(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID()
	}
	return out
}

func TestRebuild_Idempotent(t *testing.T) {
	snap := entity.NewSnapshot(view(0, bloom), view(1, bloom2d, 0))
	reg := bloomRegistry(t, registry.NarrowerFirst)

	a, err := Rebuild(testCtx(), snap, reg)
	require.NoError(t, err)
	b, err := Rebuild(testCtx(), snap, reg)
	require.NoError(t, err)

	assert.NotEqual(t, a.Seq(), b.Seq())
	assert.Equal(t, edges(a), edges(b))
	assert.NotSame(t, a.Nodes()[0], b.Nodes()[0], "nodes are created fresh on every rebuild")
}

func TestBuild_CycleDetection(t *testing.T) {
	t.Run("self reference", func(t *testing.T) {
		snap := entity.NewSnapshot(view(0, 0, 0))
		_, err := Build(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))

		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []entity.ID{id(0), id(0)}, cycle.Entities)
		assert.ErrorIs(t, err, ErrCycle)
	})

	t.Run("mutual cycle", func(t *testing.T) {
		snap := entity.NewSnapshot(view(0, 0, 1), view(1, 0, 0))
		_, err := Build(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))

		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []entity.ID{id(0), id(1), id(0)}, cycle.Entities)
		assert.Contains(t, err.Error(), "0v1 -> 1v1 -> 0v1")
	})

	t.Run("longer cycle behind an acyclic root", func(t *testing.T) {
		// 0 after 1; 1 after 2; 2 after 3; 3 after 1.
		snap := entity.NewSnapshot(view(0, 0, 1), view(1, 0, 2), view(2, 0, 3), view(3, 0, 1))
		_, err := Rebuild(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))

		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		// Execution order: 1 runs before 3, 3 before 2, 2 before 1.
		assert.Equal(t, []entity.ID{id(1), id(3), id(2), id(1)}, cycle.Entities)
	})

	missing := entity.ID{Index: 9, Generation: 1}

	t.Run("self reference with a dangling predecessor", func(t *testing.T) {
		snap := entity.NewSnapshot(
			entity.Record{ID: id(0), After: []entity.ID{id(0), missing}},
			view(1, 0),
		)
		_, err := Rebuild(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))

		var cycle *CycleError
		require.ErrorAs(t, err, &cycle, "omission must not hide the cycle")
		assert.Equal(t, []entity.ID{id(0), id(0)}, cycle.Entities)
	})

	t.Run("mutual cycle with a dangling predecessor", func(t *testing.T) {
		snap := entity.NewSnapshot(
			entity.Record{ID: id(0), After: []entity.ID{id(1), missing}},
			view(1, 0, 0),
			view(2, 0),
		)
		_, err := Rebuild(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))

		var cycle *CycleError
		require.ErrorAs(t, err, &cycle)
		assert.Equal(t, []entity.ID{id(0), id(1), id(0)}, cycle.Entities)
	})
}

func TestBuild_DanglingBlamesMissingPredecessor(t *testing.T) {
	missing := entity.ID{Index: 9, Generation: 1}
	// 1 is omitted for its own missing predecessor; 2 names 1 first but also
	// has a missing predecessor of its own.
	snap := entity.NewSnapshot(
		view(0, 0),
		entity.Record{ID: id(1), After: []entity.ID{missing}},
		entity.Record{ID: id(2), After: []entity.ID{id(1), id(0), missing}},
		view(3, 0, 1),
	)

	g, err := Rebuild(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))
	require.NoError(t, err)
	assert.Equal(t, []*DanglingPredecessorError{
		{Entity: id(1), Missing: missing},
		{Entity: id(2), Missing: missing},
		{Entity: id(3), Missing: id(1), Upstream: true},
	}, g.Omitted())
	assert.Equal(t, 3, g.Len())
}

func TestBuild_DanglingPredecessor(t *testing.T) {
	stale := entity.ID{Index: 9, Generation: 1}
	snap := entity.NewSnapshot(
		view(0, 0),
		entity.Record{ID: id(1), After: []entity.ID{stale}},
		view(2, bloom, 1),
		view(3, bloom, 0),
	)

	g, err := Rebuild(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))
	require.NoError(t, err, "dangling predecessors are not fatal")

	omitted := g.Omitted()
	require.Len(t, omitted, 2)
	assert.Equal(t, &DanglingPredecessorError{Entity: id(1), Missing: stale}, omitted[0])
	assert.Equal(t, &DanglingPredecessorError{Entity: id(2), Missing: id(1), Upstream: true}, omitted[1])
	assert.True(t, errors.Is(g.Err(), ErrDanglingPredecessor))

	_, ok := g.Group(id(1))
	assert.False(t, ok)
	_, ok = g.Group(id(2))
	assert.False(t, ok, "omission cascades to dependents")
	_, ok = g.Node("2v1.bloom")
	assert.False(t, ok, "omitted views get no conditional stages")

	// Independent views still schedule.
	grp, ok := g.Group(id(3))
	require.True(t, ok)
	assert.Len(t, grp.Extensions, 1)
	assert.True(t, reaches(mustGroup(t, g, 0).Marker, grp.Prepare))
}

func TestBuild_StaleGenerationIsDangling(t *testing.T) {
	oldZero := entity.ID{Index: 0, Generation: 1}
	newZero := entity.ID{Index: 0, Generation: 2}
	snap := entity.NewSnapshot(
		entity.Record{ID: newZero},
		entity.Record{ID: id(1), After: []entity.ID{oldZero}},
	)

	g, err := Rebuild(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))
	require.NoError(t, err)
	require.Len(t, g.Omitted(), 1)
	assert.Equal(t, oldZero, g.Omitted()[0].Missing)
	assert.Equal(t, 3, g.Len())
}

func TestBuild_DuplicateRecordsKeepFirst(t *testing.T) {
	snap := entity.NewSnapshot(view(0, bloom), view(0, 0))
	g, err := Rebuild(testCtx(), snap, bloomRegistry(t, registry.NarrowerFirst))
	require.NoError(t, err)

	grp := mustGroup(t, g, 0)
	assert.Len(t, grp.Extensions, 1)
}

func mustGroup(t *testing.T, g *Graph, i uint32) *Group {
	t.Helper()
	grp, ok := g.Group(id(i))
	require.True(t, ok)
	return grp
}
