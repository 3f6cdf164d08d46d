package config

import (
	"fmt"
	"sort"

	"github.com/vk/stagegrid/internal/capability"
)

// Model is the unified, format-agnostic representation of a scene.
type Model struct {
	Settings Settings
	// Views are kept in declaration order, which is also spawn order.
	Views  []*View
	Events []*Event
}

// Settings are scene-level scheduler defaults. Empty or nil fields were not
// set in the scene and fall back to the application defaults.
type Settings struct {
	Rebuild   string
	OnFailure string
	TieBreak  string
	Frames    *int
}

// View is the format-agnostic representation of a `view` block.
type View struct {
	Name  string
	After []string
	Tags  capability.Set
}

// EventKind names a scripted change to the scene.
type EventKind string

const (
	// EventDespawn removes the view.
	EventDespawn EventKind = "despawn"
	// EventRetag replaces the view's tags.
	EventRetag EventKind = "retag"
	// EventRelink replaces the view's predecessors.
	EventRelink EventKind = "relink"
)

// ParseEventKind validates an event kind label.
func ParseEventKind(s string) (EventKind, error) {
	switch k := EventKind(s); k {
	case EventDespawn, EventRetag, EventRelink:
		return k, nil
	default:
		return "", fmt.Errorf("unknown event kind %q (want despawn, retag or relink)", s)
	}
}

// Event is the format-agnostic representation of an `event` block. It is
// applied before the tick of Frame runs.
type Event struct {
	Kind  EventKind
	View  string
	Frame uint64
	Tags  capability.Set
	After []string
}

func (e *Event) String() string {
	return fmt.Sprintf("%s %q at frame %d", e.Kind, e.View, e.Frame)
}

// View returns the view declared under name.
func (m *Model) View(name string) (*View, bool) {
	for _, v := range m.Views {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// EventsAt returns the events scheduled for frame, in declaration order.
func (m *Model) EventsAt(frame uint64) []*Event {
	var out []*Event
	for _, e := range m.Events {
		if e.Frame == frame {
			out = append(out, e)
		}
	}
	return out
}

// SortEvents orders events by frame, keeping declaration order within a frame.
func (m *Model) SortEvents() {
	sort.SliceStable(m.Events, func(i, j int) bool { return m.Events[i].Frame < m.Events[j].Frame })
}
