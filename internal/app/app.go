package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/vk/stagegrid/internal/config"
	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/entity"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/runner"
	"github.com/vk/stagegrid/internal/scheduler"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	scene    *config.Model
	settings settings
	registry *registry.Registry
	dir      *entity.Directory
	sched    *scheduler.Scheduler

	// ids maps scene names to the last ID spawned under them, which may be stale.
	ids map[string]entity.ID

	// runID tags every published frame report and health response.
	runID string

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It loads the scene,
// registers the stage modules and wires the scheduler. The directory stays
// empty until Run.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	scene, err := loader.Load(ctx, cfg.ScenePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}
	logger.Debug("Scene loaded and translated into unified model.", "views", len(scene.Views), "events", len(scene.Events))

	s, err := resolveSettings(cfg, scene.Settings)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler settings: %w", err)
	}

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	if err := reg.Load(ctx, modules...); err != nil {
		return nil, err
	}
	if err := reg.SetTieBreak(s.tieBreak); err != nil {
		return nil, err
	}
	reg.Freeze(ctx)
	logger.Debug("All stage modules registered.", "count", len(modules), "rules", len(reg.Rules()))

	a := &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		scene:    scene,
		settings: s,
		registry: reg,
		dir:      entity.NewDirectory(),
		ids:      make(map[string]entity.ID),
		runID:    uuid.New().String(),
	}
	a.sched = scheduler.New(reg,
		scheduler.WithPolicy(s.rebuild),
		scheduler.WithRunner(runner.New(runner.WithFailurePolicy(s.onFailure))),
		scheduler.WithOutput(outW, !cfg.Quiet),
	)
	logger.Debug("Scheduler configured.", "run_id", a.runID, "rebuild", s.rebuild.String(), "on_failure", s.onFailure.String(), "tie_break", s.tieBreak.String(), "frames", s.frames)
	return a, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Directory returns the application's view directory.
func (a *App) Directory() *entity.Directory {
	return a.dir
}

// RunID returns the identifier attached to this run's reports.
func (a *App) RunID() string {
	return a.runID
}

// Scheduler returns the application's scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.sched
}

// Frames returns the number of ticks Run executes.
func (a *App) Frames() int {
	return a.settings.frames
}
