// package tasks wires the merge engine into the surrounding application:
// destination bootstrap, progress reporting and periodic scheduling.
//
// The engine runs as a single synchronous batch job; progress events are
// emitted on a channel for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/tbonnin/mediatheque/internal/merge"
	"github.com/tbonnin/mediatheque/internal/shared"
)

// Engine executes merge runs for the configured active user.
type Engine struct {
	config *shared.Config
	logger *log.Logger

	// jobActive reports whether another background job currently mutates
	// the destination store. The probe is supplied by the caller; the
	// engine only consumes its answer.
	jobActive func() bool
}

// NewEngine creates an Engine. jobActive may be nil when no conflicting
// jobs exist in the host application.
func NewEngine(config *shared.Config, logger *log.Logger, jobActive func() bool) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Engine{config: config, logger: logger, jobActive: jobActive}
}

// Run opens the destination store, applies pending migrations and executes
// one merge pass. The pass itself is not cancellable; ctx is only
// consulted before work starts.
func (e *Engine) Run(ctx context.Context, prog chan<- ProgressUpdate) (*merge.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.config.Library.ActiveUser == "" {
		return nil, fmt.Errorf("%w: active user not set", shared.ErrInvalidConfig)
	}

	emit(prog, ProgressUpdate{Phase: Precondition, Step: 1, Total: 5, Message: "Checking for conflicting jobs..."})
	emit(prog, ProgressUpdate{Phase: OpenDestination, Step: 2, Total: 5, Message: "Opening destination store..."})

	dest, err := shared.NewDatabase(e.config.ActiveStorePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open destination store: %w", err)
	}
	defer dest.Close()

	shared.ConfigureDatabase(dest, e.config.Database.MaxOpenConns, e.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(dest); err != nil {
		return nil, fmt.Errorf("failed to migrate destination store: %w", err)
	}

	emit(prog, ProgressUpdate{Phase: Locate, Step: 3, Total: 5, Message: "Locating candidate stores..."})

	orch := merge.NewOrchestrator(dest, merge.Options{
		Dir:        e.config.Library.Path,
		ActiveUser: e.config.Library.ActiveUser,
		Policy:     merge.ParsePolicy(e.config.Merge.Policy),
		JobActive:  e.jobActive,
		Logger:     e.logger,
	})
	emit(prog, ProgressUpdate{Phase: MergeStores, Step: 4, Total: 5, Message: "Merging candidate stores..."})
	summary := orch.Run()

	emit(prog, ProgressUpdate{Phase: Aggregate, Step: 5, Total: 5, Message: "Merge complete"})
	return summary, nil
}
