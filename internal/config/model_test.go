package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_Lookups(t *testing.T) {
	m := &Model{
		Views: []*View{{Name: "zero"}, {Name: "one", After: []string{"zero"}}},
		Events: []*Event{
			{Kind: EventRelink, View: "one", Frame: 7},
			{Kind: EventDespawn, View: "zero", Frame: 4},
			{Kind: EventRetag, View: "one", Frame: 4},
		},
	}

	v, ok := m.View("one")
	require.True(t, ok)
	assert.Equal(t, []string{"zero"}, v.After)
	_, ok = m.View("two")
	assert.False(t, ok)

	m.SortEvents()
	at4 := m.EventsAt(4)
	require.Len(t, at4, 2)
	assert.Equal(t, EventDespawn, at4[0].Kind, "declaration order is kept within a frame")
	assert.Equal(t, EventRetag, at4[1].Kind)
	assert.Empty(t, m.EventsAt(5))
	assert.Equal(t, `relink "one" at frame 7`, m.Events[2].String())
}

func TestParseEventKind(t *testing.T) {
	for _, s := range []string{"despawn", "retag", "relink"} {
		k, err := ParseEventKind(s)
		require.NoError(t, err)
		assert.Equal(t, EventKind(s), k)
	}
	_, err := ParseEventKind("spawn")
	assert.ErrorContains(t, err, `unknown event kind "spawn"`)
}
