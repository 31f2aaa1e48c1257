// Package trigger owns the periodic invocation of reminder cycles. The
// controller never constructs its own timer; cmd/server wires this trigger
// in, so tests can drive RunCycle directly.
package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	dErrors "remindly/pkg/domain-errors"
)

// CycleRunner is the single entry point the trigger drives.
type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) error
}

// Cron invokes the runner on a cron schedule, in UTC.
type Cron struct {
	c      *cron.Cron
	logger *slog.Logger
}

// New builds a cron trigger for the given spec (standard five-field cron).
func New(spec string, runner CycleRunner, logger *slog.Logger) (*Cron, error) {
	if runner == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "cycle runner is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		ctx := context.Background()
		now := time.Now().UTC()
		if err := runner.RunCycle(ctx, now); err != nil {
			// The next tick retries the whole cycle.
			logger.ErrorContext(ctx, "reminder cycle failed",
				"error", err.Error(),
			)
		}
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "invalid cycle schedule")
	}

	return &Cron{c: c, logger: logger}, nil
}

// Start begins firing ticks in a background goroutine.
func (t *Cron) Start() {
	t.c.Start()
}

// Stop halts future ticks and returns a context that is done once any
// in-flight cycle invocation has returned.
func (t *Cron) Stop() context.Context {
	return t.c.Stop()
}
