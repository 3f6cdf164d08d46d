package pipeline

import (
	"context"
	"fmt"

	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/registry"
)

// Rebuild constructs a sealed graph from a population snapshot: Build, then
// Extend with the snapshot as the capability query, then Seal. The function
// is pure with respect to the snapshot; omitted views are reported through
// Graph.Omitted and only a cycle (or an internal error) fails the rebuild.
func Rebuild(ctx context.Context, snap *entity.Snapshot, reg *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	g, err := Build(ctx, snap, reg)
	if err != nil {
		return nil, fmt.Errorf("error building view graph: %w", err)
	}
	if err := Extend(ctx, g, snap, reg); err != nil {
		return nil, fmt.Errorf("error extending view graph: %w", err)
	}
	if err := g.Seal(ctx); err != nil {
		return nil, fmt.Errorf("error validating view graph: %w", err)
	}

	logger.Debug("Rebuild complete.", "seq", g.Seq(), "groups", len(g.groups), "nodes", g.Len(), "omitted", len(g.omitted))
	return g, nil
}
