package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/stagegrid/internal/config"
	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/entity"
)

// spawnScene populates the directory in declaration order. Predecessors are
// linked in a second pass so views may refer to views declared after them.
func (a *App) spawnScene(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	spawned := make([]string, 0, len(a.scene.Views))
	for _, v := range a.scene.Views {
		id, err := a.dir.Spawn(v.Name, v.Tags)
		if err != nil {
			return fmt.Errorf("spawning view %q: %w", v.Name, err)
		}
		a.ids[v.Name] = id
		spawned = append(spawned, fmt.Sprintf("%s=%s", v.Name, id))
		logger.Debug("Spawned view.", "name", v.Name, "entity", id.String(), "tags", v.Tags.String())
	}
	for _, v := range a.scene.Views {
		if len(v.After) == 0 {
			continue
		}
		if err := a.dir.SetAfter(a.ids[v.Name], a.resolve(v.After)...); err != nil {
			return fmt.Errorf("linking view %q: %w", v.Name, err)
		}
	}

	if !a.cfg.Quiet {
		fmt.Fprintf(a.outW, "[%s]\n", strings.Join(spawned, " "))
	}
	logger.Info("Scene populated.", "views", a.dir.Len())
	return nil
}

// resolve maps view names to their last known IDs. A despawned view resolves
// to its stale ID, which the scheduler reports as a dangling predecessor.
func (a *App) resolve(names []string) []entity.ID {
	out := make([]entity.ID, 0, len(names))
	for _, n := range names {
		out = append(out, a.ids[n])
	}
	return out
}

// applyEvents performs the scene events scheduled for frame. An event that
// targets a view which is already gone is logged and skipped.
func (a *App) applyEvents(ctx context.Context, frame uint64) {
	logger := ctxlog.FromContext(ctx)
	for _, ev := range a.scene.EventsAt(frame) {
		id, alive := a.dir.Lookup(ev.View)
		if !alive {
			logger.Warn("Scene event targets a view that no longer exists.", "event", ev.String())
			continue
		}

		var err error
		switch ev.Kind {
		case config.EventDespawn:
			err = a.dir.Despawn(id)
		case config.EventRetag:
			err = a.dir.SetCaps(id, ev.Tags)
		case config.EventRelink:
			err = a.dir.SetAfter(id, a.resolve(ev.After)...)
		}
		if err != nil {
			logger.Error("Scene event failed.", "event", ev.String(), "error", err)
			continue
		}
		logger.Info("Applied scene event.", "event", ev.String(), "entity", id.String())
	}
}

// ViewID returns the ID last spawned under name. It may be stale.
func (a *App) ViewID(name string) (entity.ID, bool) {
	id, ok := a.ids[name]
	return id, ok
}
