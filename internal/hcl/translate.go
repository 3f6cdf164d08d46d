package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/stagegrid/internal/capability"
	"github.com/vk/stagegrid/internal/config"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

func translateSettings(s *schedulerBlock) config.Settings {
	var out config.Settings
	if s.Rebuild != nil {
		out.Rebuild = *s.Rebuild
	}
	if s.OnFailure != nil {
		out.OnFailure = *s.OnFailure
	}
	if s.TieBreak != nil {
		out.TieBreak = *s.TieBreak
	}
	if s.Frames != nil {
		frames := *s.Frames
		out.Frames = &frames
	}
	return out
}

func translateView(v *viewBlock) (*config.View, error) {
	after, _, err := stringList(v.After, "after")
	if err != nil {
		return nil, err
	}
	tags, _, err := tagSet(v.Tags)
	if err != nil {
		return nil, err
	}
	return &config.View{Name: v.Name, After: after, Tags: tags}, nil
}

func translateEvent(e *eventBlock) (*config.Event, error) {
	kind, err := config.ParseEventKind(e.Kind)
	if err != nil {
		return nil, diagError(&e.DefRange, "Invalid event kind", err.Error())
	}
	if e.Frame < 0 {
		return nil, diagError(&e.DefRange, "Invalid event frame", fmt.Sprintf("Frame must not be negative, got %d.", e.Frame))
	}
	ev := &config.Event{Kind: kind, View: e.View, Frame: uint64(e.Frame)}

	tags, hasTags, err := tagSet(e.Tags)
	if err != nil {
		return nil, err
	}
	after, hasAfter, err := stringList(e.After, "after")
	if err != nil {
		return nil, err
	}

	switch kind {
	case config.EventRetag:
		if !hasTags {
			return nil, diagError(&e.DefRange, "Missing tags", "A retag event must set tags (use [] to clear them).")
		}
		ev.Tags = tags
	case config.EventRelink:
		if !hasAfter {
			return nil, diagError(&e.DefRange, "Missing after", "A relink event must set after (use [] to clear it).")
		}
		ev.After = after
	}
	return ev, nil
}

// tagSet decodes a tag list. Duplicates collapse through the set conversion.
func tagSet(expr hcl.Expression) (capability.Set, bool, error) {
	val, present, err := evalAs(expr, cty.Set(cty.String), "tags")
	if err != nil || !present {
		return 0, present, err
	}
	var set capability.Set
	for it := val.ElementIterator(); it.Next(); {
		_, v := it.Element()
		tag, err := capability.ParseTag(v.AsString())
		if err != nil {
			rng := expr.Range()
			return 0, true, diagError(&rng, "Unknown tag", fmt.Sprintf("%s. Known tags: %v.", err, capability.Names()))
		}
		set = set.With(tag)
	}
	return set, true, nil
}

// stringList decodes an ordered list of view names.
func stringList(expr hcl.Expression, attr string) ([]string, bool, error) {
	val, present, err := evalAs(expr, cty.List(cty.String), attr)
	if err != nil || !present {
		return nil, present, err
	}
	out := make([]string, 0, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		_, v := it.Element()
		out = append(out, v.AsString())
	}
	return out, true, nil
}

// evalAs evaluates a static expression and converts it to ty. A missing
// attribute decodes to a null value and is reported as not present.
func evalAs(expr hcl.Expression, ty cty.Type, attr string) (cty.Value, bool, error) {
	if expr == nil {
		return cty.NilVal, false, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, false, diags
	}
	if val.IsNull() {
		return cty.NilVal, false, nil
	}

	rng := expr.Range()
	converted, err := convert.Convert(val, ty)
	if err != nil {
		return cty.NilVal, true, diagError(&rng, fmt.Sprintf("Invalid %s", attr),
			fmt.Sprintf("Expected %s: %s.", ty.FriendlyName(), err))
	}
	if !converted.IsWhollyKnown() {
		return cty.NilVal, true, diagError(&rng, fmt.Sprintf("Invalid %s", attr), "Value must be known at load time.")
	}
	for it := converted.ElementIterator(); it.Next(); {
		if _, v := it.Element(); v.IsNull() {
			return cty.NilVal, true, diagError(&rng, fmt.Sprintf("Invalid %s", attr), "Elements must not be null.")
		}
	}
	return converted, true, nil
}
