package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/nodeid"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/stage"
)

// Build constructs the base graph for a population snapshot: one ordering
// group per view and one edge from each predecessor's marker to the
// dependent's prepare node. The registry is frozen if it was not already.
//
// The returned graph is open for Extend and must be sealed before it runs.
func Build(ctx context.Context, snap *entity.Snapshot, reg *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "views", snap.Len())
	reg.Freeze(ctx)

	records := uniqueRecords(ctx, snap)

	// First pass: reject cycles among all views, omitted or not.
	if err := detectCycles(records); err != nil {
		return nil, err
	}

	// Second pass: decide which views can be scheduled.
	kept, omitted := resolvePredecessors(records)
	for _, e := range omitted {
		logger.Warn("Omitting view with dangling predecessor.", "entity", e.Entity.String(), "missing", e.Missing.String(), "upstream", e.Upstream)
	}
	logger.Debug("Build: Cycle detection passed.", "kept", len(kept), "omitted", len(omitted))

	g := newGraph()
	g.omitted = omitted

	// Third pass: base pipeline per view.
	prepare, render := reg.Base(stage.KindPrepare), reg.Base(stage.KindRender)
	for _, rec := range kept {
		if err := g.addGroup(rec, prepare, render); err != nil {
			return nil, err
		}
	}

	// Fourth pass: predecessor markers gate dependents' prepare.
	for _, rec := range kept {
		grp := g.groups[rec.ID]
		for _, p := range rec.After {
			pred := g.groups[p]
			if err := g.addEdge(pred.Marker, grp.Prepare); err != nil {
				return nil, err
			}
			logger.Debug("Linked predecessor.", "from", pred.Marker.ID(), "to", grp.Prepare.ID())
		}
		g.after[rec.ID] = append([]entity.ID(nil), rec.After...)
	}

	logger.Debug("Build: Graph construction successful.", "node_count", g.Len())
	return g, nil
}

func (g *Graph) addGroup(rec entity.Record, prepare, render stage.Func) error {
	grp := &Group{
		Entity:  rec.ID,
		Label:   rec.Label(),
		Prepare: &Node{Addr: nodeid.New(rec.ID, stage.PrepareName), Entity: rec.ID, Kind: stage.KindPrepare, Fn: prepare},
		Render:  &Node{Addr: nodeid.New(rec.ID, stage.RenderName), Entity: rec.ID, Kind: stage.KindRender, Fn: render},
		Marker:  &Node{Addr: nodeid.New(rec.ID, stage.MarkerName), Entity: rec.ID, Kind: stage.KindMarker, Fn: stage.Noop},
	}
	for _, n := range []*Node{grp.Prepare, grp.Render, grp.Marker} {
		if err := g.addNode(n); err != nil {
			return err
		}
	}
	if err := g.addEdge(grp.Prepare, grp.Render); err != nil {
		return err
	}
	if err := g.addEdge(grp.Render, grp.Marker); err != nil {
		return err
	}
	g.groups[rec.ID] = grp
	return nil
}

// uniqueRecords returns the snapshot's records in ID order, keeping the first
// record for any repeated ID.
func uniqueRecords(ctx context.Context, snap *entity.Snapshot) []entity.Record {
	logger := ctxlog.FromContext(ctx)
	seen := make(map[entity.ID]struct{}, len(snap.Records))
	out := make([]entity.Record, 0, len(snap.Records))
	for _, rec := range snap.Records {
		if _, dup := seen[rec.ID]; dup {
			logger.Warn("Duplicate view in snapshot, keeping the first.", "entity", rec.ID.String())
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}

// resolvePredecessors splits records into schedulable views and omissions.
// Omission is transitive: depending on an omitted view omits the dependent.
func resolvePredecessors(records []entity.Record) ([]entity.Record, []*DanglingPredecessorError) {
	present := make(map[entity.ID]bool, len(records))
	for _, rec := range records {
		present[rec.ID] = true
	}

	omitted := make(map[entity.ID]bool)
	for changed := true; changed; {
		changed = false
		for _, rec := range records {
			if omitted[rec.ID] {
				continue
			}
			for _, p := range rec.After {
				if !present[p] || omitted[p] {
					omitted[rec.ID] = true
					changed = true
					break
				}
			}
		}
	}

	kept := make([]entity.Record, 0, len(records))
	var errs []*DanglingPredecessorError
	for _, rec := range records {
		if !omitted[rec.ID] {
			kept = append(kept, rec)
			continue
		}
		errs = append(errs, danglingCause(rec, present, omitted))
	}
	return kept, errs
}

// danglingCause names the predecessor an omitted view is blamed on. A missing
// predecessor wins over one that was itself omitted.
func danglingCause(rec entity.Record, present, omitted map[entity.ID]bool) *DanglingPredecessorError {
	var upstream *DanglingPredecessorError
	for _, p := range rec.After {
		if !present[p] {
			return &DanglingPredecessorError{Entity: rec.ID, Missing: p}
		}
		if omitted[p] && upstream == nil {
			upstream = &DanglingPredecessorError{Entity: rec.ID, Missing: p, Upstream: true}
		}
	}
	return upstream
}

// detectCycles checks the predecessor relation of records for cycles using
// DFS. Edges to IDs outside records are ignored. Records must be in ID order
// for the witness path to be deterministic.
func detectCycles(records []entity.Record) error {
	after := make(map[entity.ID][]entity.ID, len(records))
	for _, rec := range records {
		after[rec.ID] = nil
	}
	for _, rec := range records {
		preds := make([]entity.ID, 0, len(rec.After))
		for _, p := range rec.After {
			if _, ok := after[p]; ok {
				preds = append(preds, p)
			}
		}
		sort.Slice(preds, func(i, j int) bool { return preds[i].Less(preds[j]) })
		after[rec.ID] = preds
	}

	visiting := make(map[entity.ID]bool)
	visited := make(map[entity.ID]bool)
	var stack []entity.ID

	var visit func(id entity.ID) error
	visit = func(id entity.ID) error {
		visiting[id] = true
		stack = append(stack, id)
		for _, p := range after[id] {
			if visiting[p] {
				return cycleFromStack(stack, p)
			}
			if !visited[p] {
				if err := visit(p); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		delete(visiting, id)
		visited[id] = true
		return nil
	}

	for _, rec := range records {
		if !visited[rec.ID] {
			if err := visit(rec.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// cycleFromStack extracts the closed cycle starting at start from the DFS
// stack. Each stack entry lists the next entry as a predecessor, so the path
// is read backwards to follow execution order.
func cycleFromStack(stack []entity.ID, start entity.ID) error {
	i := len(stack) - 1
	for i >= 0 && stack[i] != start {
		i--
	}
	if i < 0 {
		return fmt.Errorf("internal error: cycle start %s not on stack", start)
	}
	path := make([]entity.ID, 0, len(stack)-i+1)
	path = append(path, start)
	for j := len(stack) - 1; j > i; j-- {
		path = append(path, stack[j])
	}
	path = append(path, start)
	return &CycleError{Entities: path}
}
