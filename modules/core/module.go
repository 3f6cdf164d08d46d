// Package core provides the base pipeline every view runs: clear, then opaque.
package core

import (
	"context"

	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Clear is the prepare stage.
func Clear(_ context.Context, rc *stage.RunContext, view entity.ID) error {
	rc.Printf("clear %s\n", rc.Label(view))
	return nil
}

// Opaque is the render stage.
func Opaque(_ context.Context, rc *stage.RunContext, view entity.ID) error {
	rc.Printf("opaque %s\n", rc.Label(view))
	return nil
}

// Register registers the base stages with the registry.
func (m *Module) Register(r *registry.Registry) error {
	if err := r.RegisterBase(stage.KindPrepare, Clear); err != nil {
		return err
	}
	return r.RegisterBase(stage.KindRender, Opaque)
}
