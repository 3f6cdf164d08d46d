package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/stagegrid/internal/capability"
)

func TestSpawnAndGet(t *testing.T) {
	d := NewDirectory()

	zero, err := d.Spawn("zero", 0)
	require.NoError(t, err)
	one, err := d.Spawn("one", capability.Of(capability.Bloom), zero)
	require.NoError(t, err)

	assert.Equal(t, ID{Index: 0, Generation: 1}, zero)
	assert.Equal(t, ID{Index: 1, Generation: 1}, one)
	assert.Equal(t, 2, d.Len())

	rec, ok := d.Get(one)
	require.True(t, ok)
	assert.Equal(t, "one", rec.Name)
	assert.Equal(t, []ID{zero}, rec.After)
	assert.True(t, rec.Caps.Has(capability.Bloom))

	id, ok := d.Lookup("zero")
	require.True(t, ok)
	assert.Equal(t, zero, id)

	_, err = d.Spawn("zero", 0)
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestDespawnInvalidatesStaleIDs(t *testing.T) {
	d := NewDirectory()
	a, err := d.Spawn("a", 0)
	require.NoError(t, err)
	require.NoError(t, d.Despawn(a))

	assert.False(t, d.Alive(a))
	assert.ErrorIs(t, d.Despawn(a), ErrNotFound)
	assert.ErrorIs(t, d.SetCaps(a, 0), ErrNotFound)

	// The slot is reused under a new generation.
	b, err := d.Spawn("b", 0)
	require.NoError(t, err)
	assert.Equal(t, a.Index, b.Index)
	assert.NotEqual(t, a, b)
	assert.True(t, d.Alive(b))
	assert.False(t, d.Alive(a), "the stale ID must not resolve to the new occupant")

	_, ok := d.Lookup("a")
	assert.False(t, ok)
}

func TestVersionTracksChanges(t *testing.T) {
	d := NewDirectory()
	v0 := d.Version()

	a, err := d.Spawn("a", 0)
	require.NoError(t, err)
	v1 := d.Version()
	assert.Greater(t, v1, v0)

	require.NoError(t, d.SetCaps(a, 0))
	assert.Equal(t, v1, d.Version(), "setting identical caps is not a change")

	require.NoError(t, d.SetCaps(a, capability.Of(capability.Hdr)))
	assert.Greater(t, d.Version(), v1)

	v2 := d.Version()
	require.NoError(t, d.SetAfter(a))
	assert.Greater(t, d.Version(), v2)
}

func TestQueryAndSnapshot(t *testing.T) {
	d := NewDirectory()
	bloom := capability.Of(capability.Bloom)
	bloom2d := capability.Of(capability.Bloom, capability.Camera2d)

	z, _ := d.Spawn("z", 0)
	o, _ := d.Spawn("o", bloom2d, z)
	_, _ = d.Spawn("t", 0, z)
	th, _ := d.Spawn("th", bloom, z, o)

	assert.Equal(t, []ID{o, th}, d.Query(bloom))
	assert.Equal(t, []ID{o}, d.Query(bloom2d))
	assert.Len(t, d.Query(0), 4)

	snap := d.Snapshot()
	assert.Equal(t, d.Version(), snap.Version)
	assert.Equal(t, 4, snap.Len())
	assert.Equal(t, d.Query(bloom), snap.Query(bloom))

	// Mutating the directory does not affect an existing snapshot.
	require.NoError(t, d.Despawn(o))
	assert.True(t, snap.Alive(o))
	rec, ok := snap.Get(th)
	require.True(t, ok)
	assert.Equal(t, []ID{z, o}, rec.After)
}

func TestParseID(t *testing.T) {
	id, err := ParseID("12v3")
	require.NoError(t, err)
	assert.Equal(t, ID{Index: 12, Generation: 3}, id)
	assert.Equal(t, "12v3", id.String())

	for _, raw := range []string{"", "12", "v3", "12v", "xv1", "1v0"} {
		_, err := ParseID(raw)
		assert.Error(t, err, raw)
	}
}
