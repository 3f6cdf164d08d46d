// internal/nodeid/address.go
package nodeid

import (
	"github.com/vk/stagegrid/internal/entity"
)

// Address is the structured representation of a unique node identifier.
type Address struct {
	Entity entity.ID
	Stage  string
}

// New builds an address for the given entity and stage name.
func New(id entity.ID, stage string) Address {
	return Address{Entity: id, Stage: stage}
}

// String serializes the Address into its canonical `<entity>.<stage>` form.
func (a Address) String() string {
	return a.Entity.String() + "." + a.Stage
}

// Less orders addresses by entity, then stage name.
func (a Address) Less(other Address) bool {
	if a.Entity != other.Entity {
		return a.Entity.Less(other.Entity)
	}
	return a.Stage < other.Stage
}
