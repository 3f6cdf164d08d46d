package testutil

import (
	"github.com/vk/stagegrid/internal/capability"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/stage"
)

// SimpleModule is a test helper for easily creating a mock module that
// registers a single conditional stage.
type SimpleModule struct {
	Name     string
	Requires capability.Set
	Fn       stage.Func
	Options  []registry.Option
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) error {
	fn := m.Fn
	if fn == nil {
		fn = stage.Noop
	}
	return r.RegisterConditional(m.Name, m.Requires, fn, m.Options...)
}
