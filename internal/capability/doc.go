// Package capability defines the fixed set of capability tags a view can carry
// and a bitset type used to match views against stage requirements.
//
// Tags are owned by whoever spawns the view. The scheduler only tests them.
package capability
