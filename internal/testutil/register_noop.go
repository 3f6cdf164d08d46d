package testutil

import (
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/stage"
)

// NoOpModule registers no-op base stages. It is useful for tests that only
// care about graph shape, not stage output.
type NoOpModule struct{}

// Register implements the registry.Module interface.
func (m *NoOpModule) Register(r *registry.Registry) error {
	if err := r.RegisterBase(stage.KindPrepare, stage.Noop); err != nil {
		return err
	}
	return r.RegisterBase(stage.KindRender, stage.Noop)
}
