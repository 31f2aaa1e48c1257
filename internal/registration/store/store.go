// Package store defines the persistence port for registrations. The cycle
// controller is the only writer of delivery flags; intake is the only
// creator of rows.
package store

import (
	"context"
	"time"

	"remindly/internal/registration/models"
)

// Store persists registrations and their per-boundary delivery flags.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id models.RegistrationID) (*models.Registration, error)
	// FetchUpcoming returns every registration whose event is at or after now.
	// Past events are excluded; their flags stay frozen.
	FetchUpcoming(ctx context.Context, now time.Time) ([]*models.Registration, error)
	// CommitFlags persists a batch of flag updates as one operation. Either
	// the whole batch lands or none of it does; a lost batch is re-evaluated
	// on the next cycle.
	CommitFlags(ctx context.Context, updates []models.FlagUpdate) error
	Health(ctx context.Context) error
}
