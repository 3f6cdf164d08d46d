package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/stagegrid/internal/config"
	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL scene loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Scheduler []*schedulerBlock `hcl:"scheduler,block"`
	Views     []*viewBlock      `hcl:"view,block"`
	Events    []*eventBlock     `hcl:"event,block"`
}

type schedulerBlock struct {
	Rebuild   *string   `hcl:"rebuild,optional"`
	OnFailure *string   `hcl:"on_failure,optional"`
	TieBreak  *string   `hcl:"tie_break,optional"`
	Frames    *int      `hcl:"frames,optional"`
	DefRange  hcl.Range `hcl:",def_range"`
}

type viewBlock struct {
	Name     string         `hcl:"name,label"`
	After    hcl.Expression `hcl:"after,optional"`
	Tags     hcl.Expression `hcl:"tags,optional"`
	DefRange hcl.Range      `hcl:",def_range"`
}

type eventBlock struct {
	Kind     string         `hcl:"kind,label"`
	View     string         `hcl:"view,label"`
	Frame    int            `hcl:"frame"`
	Tags     hcl.Expression `hcl:"tags,optional"`
	After    hcl.Expression `hcl:"after,optional"`
	DefRange hcl.Range      `hcl:",def_range"`
}

// Load parses every .hcl file under paths and merges them into one scene.
// Directories are searched recursively in lexical order, so view declaration
// order, and with it spawn order, is stable.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := fsutil.CollectFiles(".hcl", paths...)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	model := &config.Model{}
	parser := hclparse.NewParser()
	var settings *schedulerBlock
	var views []*viewBlock

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, s := range root.Scheduler {
			if settings != nil {
				return nil, diagError(&s.DefRange, "Duplicate scheduler block",
					fmt.Sprintf("A scheduler block was already declared at %s.", settings.DefRange))
			}
			settings = s
		}
		views = append(views, root.Views...)
		for _, e := range root.Events {
			ev, err := translateEvent(e)
			if err != nil {
				return nil, err
			}
			model.Events = append(model.Events, ev)
		}
	}

	if settings != nil {
		model.Settings = translateSettings(settings)
	}
	declared := make(map[string]*viewBlock, len(views))
	for _, v := range views {
		if prev, dup := declared[v.Name]; dup {
			return nil, diagError(&v.DefRange, "Duplicate view",
				fmt.Sprintf("A view named %q was already declared at %s.", v.Name, prev.DefRange))
		}
		declared[v.Name] = v
	}
	for _, v := range views {
		view, err := translateView(v)
		if err != nil {
			return nil, err
		}
		model.Views = append(model.Views, view)
	}

	if err := validate(model, declared); err != nil {
		return nil, err
	}
	model.SortEvents()

	logger.Debug("HCL loading complete.", "views", len(model.Views), "events", len(model.Events))
	return model, nil
}

// validate checks that every reference names a declared view. The block
// ranges come from the declaring blocks.
func validate(m *config.Model, declared map[string]*viewBlock) error {
	for _, v := range m.Views {
		for _, p := range v.After {
			if _, ok := declared[p]; !ok {
				return diagError(&declared[v.Name].DefRange, "Unknown predecessor",
					fmt.Sprintf("View %q lists %q in after, but no such view is declared.", v.Name, p))
			}
		}
	}
	for _, e := range m.Events {
		if _, ok := declared[e.View]; !ok {
			return fmt.Errorf("event %s: unknown view %q", e, e.View)
		}
		for _, p := range e.After {
			if _, ok := declared[p]; !ok {
				return fmt.Errorf("event %s: unknown predecessor %q", e, p)
			}
		}
	}
	return nil
}

func diagError(rng *hcl.Range, summary, detail string) error {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  rng,
	}}
}
