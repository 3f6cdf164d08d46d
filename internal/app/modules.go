package app

import (
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/modules/bloom"
	"github.com/vk/stagegrid/modules/core"
)

// coreModules is the definitive list of all stage modules that are compiled
// into the stagegrid binary. Order matters: conditional rules are evaluated
// in registration order.
var coreModules = []registry.Module{
	&core.Module{},
	&bloom.Module{},
}
