package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/stagegrid/internal/ctxlog"
	"github.com/vk/stagegrid/internal/publish"
	"github.com/vk/stagegrid/internal/runner"
)

// Run populates the directory from the scene and ticks the scheduler once per
// frame until the frame limit or until ctx is canceled. Stage failures are
// logged and the loop continues, unless the failure policy is stop, in which
// case the first failing frame ends the run with an error.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	start := time.Now()

	if a.cfg.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, a.cfg.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	pub, err := publish.New(ctx, a.cfg.ReportURL, publish.Options{})
	if err != nil {
		return fmt.Errorf("failed to connect report publisher: %w", err)
	}
	defer pub.Close()

	if err := a.spawnScene(ctx); err != nil {
		return err
	}

	a.logger.Info("🚀 Starting frame loop...", "frames", a.settings.frames)
	for frame := uint64(0); frame < uint64(a.settings.frames); frame++ {
		if ctx.Err() != nil {
			a.logger.Warn("Context canceled, stopping frame loop.", "frame", frame)
			break
		}
		if err := a.tick(ctx, pub, frame); err != nil {
			return err
		}
	}

	elapsed := time.Since(start)
	if !a.cfg.Quiet {
		fmt.Fprintf(a.outW, "elapsed: %s\n", elapsed)
	}
	a.logger.Info("🏁 Frame loop finished.", "elapsed", elapsed)
	return nil
}

func (a *App) tick(ctx context.Context, pub publish.Publisher, frame uint64) error {
	logger := ctxlog.FromContext(ctx).With("frame", frame)
	a.applyEvents(ctx, frame)

	if !a.cfg.Quiet {
		fmt.Fprintln(a.outW, ">>> scope")
	}
	res, err := a.sched.Tick(ctx, a.dir, frame)
	if !a.cfg.Quiet {
		fmt.Fprintln(a.outW, "<<< scope")
	}
	if err != nil {
		return fmt.Errorf("frame %d: %w", frame, err)
	}

	if tickErr := res.Err(); tickErr != nil {
		logger.Warn("Frame completed with problems.", "error", tickErr)
	}
	payload := publish.NewPayload(res, a.sched.Store().State())
	payload.Run = a.runID
	if err := pub.Publish(ctx, payload); err != nil {
		logger.Error("Failed to publish frame report.", "error", err)
	}

	if a.settings.onFailure == runner.StopOnFailure && res.Report != nil {
		if err := res.Report.Err(); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
	}
	return nil
}
