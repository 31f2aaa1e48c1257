// Package dispatcher hands reminder deliveries to a bounded worker pool.
// Callers get acceptance-into-queue semantics: Enqueue returns once the job
// is queued, and the eventual webhook outcome never reaches the caller.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"remindly/internal/platform/metrics"
	"remindly/internal/registration/models"
	"remindly/internal/reminder/webhook"
	dErrors "remindly/pkg/domain-errors"
)

// Sender performs the actual outbound call for one payload.
type Sender interface {
	Send(ctx context.Context, p webhook.Payload) error
}

// Job is one reminder delivery for one registration/boundary pair.
type Job struct {
	RegistrationID models.RegistrationID
	Phone          string
	Name           string
	EventAt        time.Time
	BoundaryDays   int
}

// Dispatcher runs a fixed pool of delivery workers over a buffered queue.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	metrics *metrics.Metrics

	workers int
	jobs    chan Job

	quitOnce sync.Once
	quit     chan struct{}
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithWorkers bounds concurrent outbound calls.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) { d.workers = n }
}

// WithQueueSize bounds how many accepted jobs may wait for a worker.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) { d.jobs = make(chan Job, n) }
}

// New creates a dispatcher; Run must be started before Enqueue accepts work.
func New(sender Sender, opts ...Option) (*Dispatcher, error) {
	if sender == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "dispatch sender is required")
	}

	d := &Dispatcher{
		sender:  sender,
		logger:  slog.Default(),
		workers: 4,
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers <= 0 {
		d.workers = 1
	}
	if d.jobs == nil {
		d.jobs = make(chan Job, 64)
	}
	return d, nil
}

// Enqueue validates the job and blocks only until the queue accepts it.
// A validation failure or a stopped dispatcher is reported synchronously;
// everything after acceptance is fire-and-forget.
func (d *Dispatcher) Enqueue(job Job) error {
	if job.Phone == "" {
		return dErrors.New(dErrors.CodeBadRequest, "dispatch job has no contact address")
	}
	if job.EventAt.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "dispatch job has no event instant")
	}

	select {
	case <-d.quit:
		return dErrors.New(dErrors.CodeUnavailable, "dispatcher is stopped")
	default:
	}

	select {
	case d.jobs <- job:
		return nil
	case <-d.quit:
		return dErrors.New(dErrors.CodeUnavailable, "dispatcher is stopped")
	}
}

// Run blocks delivering queued jobs until Shutdown is called or ctx is
// cancelled. After Shutdown the queue is drained before workers exit.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			return d.work(ctx)
		})
	}
	return g.Wait()
}

// Shutdown stops accepting new jobs. Already-accepted jobs are still
// delivered by Run before it returns.
func (d *Dispatcher) Shutdown() {
	d.quitOnce.Do(func() { close(d.quit) })
}

func (d *Dispatcher) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-d.jobs:
			d.deliver(ctx, job)
		case <-d.quit:
			return d.drain(ctx)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-d.jobs:
			d.deliver(ctx, job)
		default:
			return nil
		}
	}
}

// deliver performs one outbound call. Failures are logged with the recipient
// and cause and stop here: a broken delivery never blocks or aborts anything
// else.
func (d *Dispatcher) deliver(ctx context.Context, job Job) {
	payload := webhook.NewPayload(job.Phone, job.Name, job.EventAt, job.BoundaryDays)
	if err := d.sender.Send(ctx, payload); err != nil {
		if d.metrics != nil {
			d.metrics.DispatchFailures.Inc()
		}
		d.logger.ErrorContext(ctx, "reminder delivery failed",
			"registration_id", job.RegistrationID,
			"phone", job.Phone,
			"boundary_days", job.BoundaryDays,
			"error", err.Error(),
		)
		return
	}
	d.logger.InfoContext(ctx, "reminder delivered",
		"registration_id", job.RegistrationID,
		"boundary_days", job.BoundaryDays,
	)
}
