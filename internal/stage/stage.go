// Package stage defines the unit of work the scheduler runs for a view: a
// closed set of stage kinds and a uniform function signature shared by every
// stage, base or conditional.
package stage

import (
	"context"
	"fmt"
	"io"

	"github.com/vk/stagegrid/internal/entity"
)

// Kind distinguishes the node roles inside a view's ordering group.
type Kind uint8

const (
	// KindPrepare is the first base stage of every view.
	KindPrepare Kind = iota
	// KindRender is the second base stage, chained after prepare.
	KindRender
	// KindMarker is the synthetic "core complete" checkpoint after render.
	KindMarker
	// KindConditional is a capability-gated extension stage.
	KindConditional
)

// Stage names used for the base nodes of every group.
const (
	PrepareName = "prepare"
	RenderName  = "render"
	MarkerName  = "core"
)

func (k Kind) String() string {
	switch k {
	case KindPrepare:
		return "prepare"
	case KindRender:
		return "render"
	case KindMarker:
		return "marker"
	case KindConditional:
		return "conditional"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsBase reports whether k is one of the two base pipeline kinds.
func (k Kind) IsBase() bool { return k == KindPrepare || k == KindRender }

// Func is a stage body. It receives the owning view and the shared run
// context and reports success or failure. A Func must not retain rc.
type Func func(ctx context.Context, rc *RunContext, view entity.ID) error

// Noop is the body of marker nodes.
func Noop(context.Context, *RunContext, entity.ID) error { return nil }

// RunContext is the read-only state shared by every stage of one run.
type RunContext struct {
	// Frame is the host tick the run belongs to.
	Frame uint64
	// Views resolves the view a stage runs for. It may be nil.
	Views entity.Reader
	// Out receives stage console output when Print is set.
	Out   io.Writer
	Print bool
}

// Printf writes stage output when printing is enabled.
func (rc *RunContext) Printf(format string, args ...any) {
	if rc == nil || !rc.Print || rc.Out == nil {
		return
	}
	fmt.Fprintf(rc.Out, format, args...)
}

// Label returns a printable name for view: its record name when known.
func (rc *RunContext) Label(view entity.ID) string {
	if rc != nil && rc.Views != nil {
		if rec, ok := rc.Views.Get(view); ok && rec.Name != "" {
			return rec.Name
		}
	}
	return view.String()
}
