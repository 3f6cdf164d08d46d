// Package bloom provides the bloom post-process stages. Views tagged bloom get
// the bloom stage; views that are also 2D cameras additionally get bloom_2d,
// which runs first.
package bloom

import (
	"context"

	"github.com/vk/stagegrid/internal/capability"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/stage"
)

// Stage names.
const (
	Bloom2dStage = "bloom_2d"
	BloomStage   = "bloom"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Bloom2d runs for views tagged bloom and camera_2d.
func Bloom2d(_ context.Context, rc *stage.RunContext, view entity.ID) error {
	rc.Printf("   bloom 2d %s\n", rc.Label(view))
	return nil
}

// Bloom runs for every view tagged bloom.
func Bloom(_ context.Context, rc *stage.RunContext, view entity.ID) error {
	rc.Printf("  bloom %s\n", rc.Label(view))
	return nil
}

// Register registers both rules, the narrower one first.
func (m *Module) Register(r *registry.Registry) error {
	if err := r.RegisterConditional(Bloom2dStage, capability.Of(capability.Bloom, capability.Camera2d), Bloom2d); err != nil {
		return err
	}
	return r.RegisterConditional(BloomStage, capability.Of(capability.Bloom), Bloom)
}
