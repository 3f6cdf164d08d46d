package app

import (
	"errors"
	"fmt"

	"github.com/vk/stagegrid/internal/config"
	"github.com/vk/stagegrid/internal/registry"
	"github.com/vk/stagegrid/internal/runner"
	"github.com/vk/stagegrid/internal/schedule"
)

// DefaultFrames is how many ticks run when neither the CLI nor the scene sets it.
const DefaultFrames = 10

// Config holds all the necessary configuration for an App instance to run.
// The scheduler fields are overrides: empty strings and a zero Frames defer to
// the scene's scheduler block, then to the defaults.
type Config struct {
	ScenePath string // hcl file or directory

	Frames    int
	Rebuild   string
	OnFailure string
	TieBreak  string
	Quiet     bool

	HealthcheckPort int
	ReportURL       string
	LogFormat       string
	LogLevel        string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ScenePath == "" {
		return nil, errors.New("ScenePath is a required configuration field and cannot be empty")
	}
	if cfg.Frames < 0 {
		return nil, fmt.Errorf("frames must not be negative, got %d", cfg.Frames)
	}
	if _, err := schedule.ParsePolicy(cfg.Rebuild); err != nil {
		return nil, err
	}
	if _, err := runner.ParseFailurePolicy(cfg.OnFailure); err != nil {
		return nil, err
	}
	if _, err := registry.ParseTieBreak(cfg.TieBreak); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// settings are the resolved scheduler settings for one run.
type settings struct {
	frames    int
	rebuild   schedule.Policy
	onFailure runner.FailurePolicy
	tieBreak  registry.TieBreak
}

// resolveSettings layers CLI overrides over the scene's scheduler block.
func resolveSettings(cfg *Config, scene config.Settings) (settings, error) {
	pick := func(override, fromScene string) string {
		if override != "" {
			return override
		}
		return fromScene
	}

	var s settings
	var err error
	if s.rebuild, err = schedule.ParsePolicy(pick(cfg.Rebuild, scene.Rebuild)); err != nil {
		return s, fmt.Errorf("scheduler.rebuild: %w", err)
	}
	if s.onFailure, err = runner.ParseFailurePolicy(pick(cfg.OnFailure, scene.OnFailure)); err != nil {
		return s, fmt.Errorf("scheduler.on_failure: %w", err)
	}
	if s.tieBreak, err = registry.ParseTieBreak(pick(cfg.TieBreak, scene.TieBreak)); err != nil {
		return s, fmt.Errorf("scheduler.tie_break: %w", err)
	}

	s.frames = DefaultFrames
	switch {
	case cfg.Frames > 0:
		s.frames = cfg.Frames
	case scene.Frames != nil:
		if *scene.Frames <= 0 {
			return s, fmt.Errorf("scheduler.frames: must be positive, got %d", *scene.Frames)
		}
		s.frames = *scene.Frames
	}
	return s, nil
}
