// Package controller orchestrates one reminder evaluation pass over all
// upcoming registrations.
//
// Delivery semantics are at-most-one dispatch attempt per boundary: a flag is
// marked once the job is accepted into the dispatch queue, before the webhook
// outcome is known, and a failed delivery is not retried. This trade-off is
// deliberate; do not move the flag commit behind delivery confirmation.
//
// The controller assumes it is the single writer of delivery flags. Running
// two instances against the same store is unsupported and will duplicate
// dispatches; the optional Redis lease only narrows that window.
package controller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"remindly/internal/platform/metrics"
	"remindly/internal/registration/models"
	"remindly/internal/registration/store"
	"remindly/internal/reminder/dispatcher"
	"remindly/internal/reminder/evaluator"
	dErrors "remindly/pkg/domain-errors"
)

// Dispatcher accepts reminder jobs for asynchronous delivery.
type Dispatcher interface {
	Enqueue(job dispatcher.Job) error
}

// Lease guards against overlapping cycles across instances.
type Lease interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

// Controller runs reminder cycles. Cycles are serialized with a local mutex,
// so a slow cycle delays the next tick instead of overlapping it.
type Controller struct {
	mu sync.Mutex

	store      store.Store
	dispatcher Dispatcher
	boundaries []int

	lease   Lease
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Controller.
type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLease enables the cross-instance cycle lease.
func WithLease(l Lease) Option {
	return func(c *Controller) { c.lease = l }
}

// New creates a cycle controller over the given store and dispatcher.
func New(st store.Store, d Dispatcher, boundaries []int, opts ...Option) (*Controller, error) {
	if st == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "registration store is required")
	}
	if d == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "dispatcher is required")
	}
	if len(boundaries) == 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "at least one reminder boundary is required")
	}

	c := &Controller{
		store:      st,
		dispatcher: d,
		boundaries: boundaries,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RunCycle evaluates every upcoming registration at now, enqueues the due
// reminders, and commits all flag updates in one batch. Per-registration
// failures are logged and skipped; only store-level failures are returned,
// so the trigger can retry the whole cycle on its next tick.
func (c *Controller) RunCycle(ctx context.Context, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lease != nil {
		release, ok, err := c.lease.Acquire(ctx)
		if err != nil {
			// The lease is best effort; a broken Redis must not stop reminders.
			c.logger.WarnContext(ctx, "cycle lease unavailable, proceeding without it",
				"error", err.Error(),
			)
		} else if !ok {
			c.logger.InfoContext(ctx, "cycle lease held elsewhere, skipping cycle")
			return nil
		} else {
			defer release()
		}
	}

	started := time.Now()
	if c.metrics != nil {
		c.metrics.CyclesRun.Inc()
		defer func() {
			c.metrics.CycleDuration.Observe(time.Since(started).Seconds())
		}()
	}

	regs, err := c.store.FetchUpcoming(ctx, now)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CycleErrors.Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "fetch upcoming registrations")
	}

	var updates []models.FlagUpdate
	enqueued := 0
	for _, reg := range regs {
		hit, due := evaluator.Evaluate(reg, now, c.boundaries)
		if !due {
			continue
		}

		job := dispatcher.Job{
			RegistrationID: reg.ID,
			Phone:          reg.Phone,
			Name:           reg.Name,
			EventAt:        reg.EventAt,
			BoundaryDays:   hit.BoundaryDays,
		}
		if err := c.dispatcher.Enqueue(job); err != nil {
			// Flag stays unset so the next cycle can try again. One bad
			// record never aborts the rest of the pass.
			c.logger.WarnContext(ctx, "dispatch not accepted, leaving flag unset",
				"registration_id", reg.ID,
				"boundary_days", hit.BoundaryDays,
				"error", err.Error(),
			)
			continue
		}

		reg.DeliveryFlags.MarkSent(hit.BoundaryDays)
		updates = append(updates, models.FlagUpdate{ID: reg.ID, Flags: reg.DeliveryFlags.Clone()})
		enqueued++
		if c.metrics != nil {
			c.metrics.IncRemindersDispatched(hit.BoundaryDays)
		}
	}

	if err := c.store.CommitFlags(ctx, updates); err != nil {
		if c.metrics != nil {
			c.metrics.CycleErrors.Inc()
		}
		// Lost updates re-dispatch next cycle; duplicate risk is bounded to
		// one trigger interval.
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "commit delivery flags")
	}

	c.logger.InfoContext(ctx, "reminder cycle complete",
		"evaluated", len(regs),
		"enqueued", enqueued,
	)
	return nil
}
