package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tbonnin/mediatheque/internal/formatter"
	"github.com/tbonnin/mediatheque/internal/shared"
	"github.com/tbonnin/mediatheque/internal/tasks"
	"github.com/urfave/cli/v3"
)

// MergeRun executes one merge pass and prints the summary.
func (r *Runner) MergeRun(ctx context.Context, cmd *cli.Command) error {
	config := r.resolveConfig(cmd)

	engine := tasks.NewEngine(config, r.logger, r.jobActive)
	summary, err := engine.Run(ctx, nil)
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(summary, cmd.Bool("pretty"))
	case cmd.Bool("markdown"):
		return r.writePlain("%s", formatter.FormatMarkdown(summary))
	default:
		return r.writePlain("%s", formatter.FormatText(summary))
	}
}

// MergeWatch merges periodically until the context is cancelled.
func (r *Runner) MergeWatch(ctx context.Context, cmd *cli.Command) error {
	config := r.resolveConfig(cmd)

	minutes := int(cmd.Int("every"))
	if minutes <= 0 {
		minutes = config.Merge.IntervalMinutes
	}
	if minutes <= 0 {
		return fmt.Errorf("%w: set merge.interval_minutes or pass --every", shared.ErrInvalidConfig)
	}

	engine := tasks.NewEngine(config, r.logger, r.jobActive)
	scheduler := tasks.NewScheduler(engine, time.Duration(minutes)*time.Minute, r.logger)

	r.logger.Info("watching library", "dir", config.Library.Path, "every_minutes", minutes)
	return scheduler.Start(ctx)
}
