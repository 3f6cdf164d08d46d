package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/stage"
)

func TestRegister(t *testing.T) {
	reg := registry.New()
	require.NoError(t, (&Module{}).Register(reg))
	assert.NotNil(t, reg.Base(stage.KindPrepare))
	assert.NotNil(t, reg.Base(stage.KindRender))
	assert.ErrorIs(t, (&Module{}).Register(reg), registry.ErrDuplicate)
}

func TestStagesPrintUnnamedViewsByID(t *testing.T) {
	var out bytes.Buffer
	id := entity.ID{Index: 2, Generation: 3}
	rc := &stage.RunContext{Views: entity.NewSnapshot(entity.Record{ID: id}), Out: &out, Print: true}

	require.NoError(t, Clear(context.Background(), rc, id))
	require.NoError(t, Opaque(context.Background(), rc, id))
	assert.Equal(t, "clear 2v3\nopaque 2v3\n", out.String())
}
