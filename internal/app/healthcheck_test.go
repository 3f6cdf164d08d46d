package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/stagegrid/internal/capability"
	"github.com/vk/stagegrid/internal/config"
)

// staticLoader returns a fixed scene.
type staticLoader struct{ model *config.Model }

func (l staticLoader) Load(context.Context, ...string) (*config.Model, error) {
	return l.model, nil
}

func TestHealthHandler(t *testing.T) {
	scene := &config.Model{Views: []*config.View{
		{Name: "zero"},
		{Name: "one", After: []string{"zero"}, Tags: capability.Of(capability.Bloom)},
	}}
	a, err := NewApp(io.Discard, &Config{ScenePath: "scene.hcl", Frames: 3, Quiet: true}, staticLoader{scene})
	require.NoError(t, err)

	get := func() healthStatus {
		rec := httptest.NewRecorder()
		a.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var h healthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
		return h
	}

	before := get()
	assert.Equal(t, "STALE", before.State)
	assert.Nil(t, before.Frame)
	assert.Zero(t, before.Views)

	require.NoError(t, a.Run(context.Background()))

	after := get()
	assert.Equal(t, "OK", after.Status)
	assert.Equal(t, a.RunID(), after.Run)
	assert.NoError(t, uuid.Validate(after.Run))
	assert.Equal(t, "CURRENT", after.State)
	require.NotNil(t, after.Frame)
	assert.Equal(t, uint64(2), *after.Frame)
	assert.Equal(t, 2, after.Views)
	assert.Equal(t, 7, after.Nodes)
}
