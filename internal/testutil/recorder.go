package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/stage"
)

// RecorderModule registers base stages that record every call as
// "<frame>:<label>.<stage>". Fail makes the matching call return an error.
type RecorderModule struct {
	Fail map[string]error

	mu    sync.Mutex
	calls []string
}

// Register implements the registry.Module interface.
func (m *RecorderModule) Register(r *registry.Registry) error {
	if err := r.RegisterBase(stage.KindPrepare, m.record("prepare")); err != nil {
		return err
	}
	return r.RegisterBase(stage.KindRender, m.record("render"))
}

func (m *RecorderModule) record(name string) stage.Func {
	return func(_ context.Context, rc *stage.RunContext, view entity.ID) error {
		call := fmt.Sprintf("%d:%s.%s", rc.Frame, rc.Label(view), name)
		m.mu.Lock()
		m.calls = append(m.calls, call)
		m.mu.Unlock()
		return m.Fail[call]
	}
}

// Calls returns a copy of the recorded calls.
func (m *RecorderModule) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
