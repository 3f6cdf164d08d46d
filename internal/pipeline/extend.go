package pipeline

import (
	"context"
	"fmt"

	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/nodeid"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/stage"
)

// Extend appends the conditional stages of reg to g. Rules are evaluated in
// registration order; each view returned by q for a rule's requirements gets
// one node, ordered after the view's marker. Views without a group in g are
// skipped. No stage function runs during extension.
func Extend(ctx context.Context, g *Graph, q entity.Querier, reg *registry.Registry) error {
	logger := ctxlog.FromContext(ctx)
	if g.sealed {
		return ErrSealed
	}

	added := 0
	for _, rule := range reg.Rules() {
		for _, id := range q.Query(rule.Requires) {
			grp, ok := g.groups[id]
			if !ok {
				logger.Debug("Skipping conditional stage for view without a group.", "stage", rule.Name, "entity", id.String())
				continue
			}

			n := &Node{
				Addr:   nodeid.New(id, rule.Name),
				Entity: id,
				Kind:   stage.KindConditional,
				Rule:   rule,
				Fn:     rule.Fn,
			}
			if err := g.addNode(n); err != nil {
				return fmt.Errorf("extending view %s with %q: %w", id, rule.Name, err)
			}
			if err := g.addEdge(grp.Marker, n); err != nil {
				return err
			}
			grp.Extensions = append(grp.Extensions, n)
			added++
			logger.Debug("Appended conditional stage.", "node_id", n.ID(), "after", grp.Marker.ID())
		}
	}

	// Nested requirements on the same view get an explicit order.
	tb := reg.TieBreak()
	for _, grp := range g.Groups() {
		for _, a := range grp.Extensions {
			for _, b := range grp.Extensions {
				if tb.Precedes(a.Rule, b.Rule) {
					if err := g.addEdge(a, b); err != nil {
						return err
					}
					logger.Debug("Ordered nested conditional stages.", "first", a.ID(), "then", b.ID())
				}
			}
		}
	}

	logger.Debug("Extend: Conditional stages appended.", "count", added)
	return nil
}
