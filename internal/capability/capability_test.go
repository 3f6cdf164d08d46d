package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("known names collapse duplicates", func(t *testing.T) {
		s, err := Parse([]string{"bloom", "Camera_2D", "bloom"})
		require.NoError(t, err)
		assert.Equal(t, Of(Bloom, Camera2d), s)
		assert.Equal(t, 2, s.Len())
	})

	t.Run("unknown name is rejected", func(t *testing.T) {
		_, err := Parse([]string{"bloom", "sparkles"})
		assert.ErrorContains(t, err, `unknown capability tag "sparkles"`)
	})

	t.Run("empty input is the empty set", func(t *testing.T) {
		s, err := Parse(nil)
		require.NoError(t, err)
		assert.True(t, s.IsEmpty())
	})
}

func TestSetRelations(t *testing.T) {
	bloom := Of(Bloom)
	bloom2d := Of(Bloom, Camera2d)

	assert.True(t, bloom2d.Contains(bloom))
	assert.True(t, bloom2d.StrictlyContains(bloom))
	assert.False(t, bloom.StrictlyContains(bloom2d))
	assert.False(t, bloom.StrictlyContains(bloom), "a set does not strictly contain itself")
	assert.True(t, bloom.Contains(Set(0)), "every set contains the empty set")

	assert.False(t, bloom2d.Without(Camera2d).Has(Camera2d))
	assert.Equal(t, bloom, bloom2d.Without(Camera2d))
}

func TestSetString(t *testing.T) {
	assert.Equal(t, "{}", Set(0).String())
	assert.Equal(t, "{bloom,camera_2d}", Of(Camera2d, Bloom).String())
	assert.Equal(t, []Tag{Camera2d, Bloom}, Of(Bloom, Camera2d).Tags())
}

func TestTagRoundTrip(t *testing.T) {
	for _, name := range Names() {
		tag, err := ParseTag(name)
		require.NoError(t, err)
		assert.Equal(t, name, tag.String())
	}
}
