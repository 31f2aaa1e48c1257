// Package service implements registration intake: validate, combine the
// date and time into one instant, and persist with all delivery flags unset.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"remindly/internal/platform/metrics"
	"remindly/internal/registration/models"
	"remindly/internal/registration/store"
	dErrors "remindly/pkg/domain-errors"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	defaultName     = "user"
	defaultTemplate = "Reminder: webinar in {days} day(s) on {date} at {time}."
)

// Service creates and reads registrations. Delivery flags are initialized
// here and only ever mutated by the cycle controller afterwards.
type Service struct {
	store      store.Store
	boundaries []int
	validate   *validator.Validate
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the creation timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a registration service.
func New(st store.Store, boundaries []int, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "registration store is required")
	}
	if len(boundaries) == 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "at least one reminder boundary is required")
	}

	s := &Service{
		store:      st,
		boundaries: boundaries,
		validate:   validator.New(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates the intake request and persists a new registration.
// Malformed input is rejected before any state exists.
func (s *Service) Create(ctx context.Context, req models.CreateRegistrationRequest) (*models.Registration, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "missing required registration fields")
	}

	eventAt, err := combineDateTime(req.WebinarDate, req.WebinarTime)
	if err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = defaultName
	}
	template := req.MessageTemplate
	if template == "" {
		template = defaultTemplate
	}

	reg := &models.Registration{
		ID:              models.NewRegistrationID(),
		Phone:           req.Phone,
		Name:            name,
		EventAt:         eventAt,
		MessageTemplate: template,
		DeliveryFlags:   models.NewDeliveryFlags(s.boundaries),
		CreatedAt:       s.now().UTC(),
	}

	if err := s.store.Create(ctx, reg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store registration")
	}

	if s.metrics != nil {
		s.metrics.RegistrationsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "registration created",
		"registration_id", reg.ID,
		"event_at", reg.EventAt,
	)
	return reg, nil
}

// Get returns one registration by its string identifier.
func (s *Service) Get(ctx context.Context, rawID string) (*models.Registration, error) {
	id, err := models.ParseRegistrationID(rawID)
	if err != nil {
		return nil, err
	}
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeNotFound) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load registration")
	}
	return reg, nil
}

// combineDateTime builds the event instant from its date and time parts,
// interpreted in UTC.
func combineDateTime(date, clock string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "webinar_date must be YYYY-MM-DD")
	}
	t, err := time.ParseInLocation(timeLayout, clock, time.UTC)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "webinar_time must be HH:MM")
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}
