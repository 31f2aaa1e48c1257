package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"remindly/internal/registration/models"
	dErrors "remindly/pkg/domain-errors"
)

// Store persists registrations in PostgreSQL. Delivery flags live in a JSONB
// column keyed by boundary day count so lead times stay configurable without
// schema changes.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed registration store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS registrations (
	id               UUID PRIMARY KEY,
	phone            TEXT NOT NULL,
	name             TEXT NOT NULL,
	event_at         TIMESTAMPTZ NOT NULL,
	message_template TEXT NOT NULL DEFAULT '',
	delivery_flags   JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_registrations_event_at ON registrations (event_at);
`

// EnsureSchema creates the registrations table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure registrations schema: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, reg *models.Registration) error {
	flags, err := json.Marshal(reg.DeliveryFlags)
	if err != nil {
		return fmt.Errorf("marshal delivery flags: %w", err)
	}

	query := `
		INSERT INTO registrations (id, phone, name, event_at, message_template, delivery_flags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(reg.ID),
		reg.Phone,
		reg.Name,
		reg.EventAt.UTC(),
		reg.MessageTemplate,
		flags,
		reg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id models.RegistrationID) (*models.Registration, error) {
	query := `
		SELECT id, phone, name, event_at, message_template, delivery_flags, created_at
		FROM registrations
		WHERE id = $1
	`
	reg, err := scanRegistration(s.db.QueryRowContext(ctx, query, uuid.UUID(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (s *Store) FetchUpcoming(ctx context.Context, now time.Time) ([]*models.Registration, error) {
	query := `
		SELECT id, phone, name, event_at, message_template, delivery_flags, created_at
		FROM registrations
		WHERE event_at >= $1
		ORDER BY event_at
	`
	rows, err := s.db.QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("fetch upcoming registrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return out, nil
}

func (s *Store) CommitFlags(ctx context.Context, updates []models.FlagUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flag commit: %w", err)
	}
	defer tx.Rollback()

	const query = `UPDATE registrations SET delivery_flags = $2 WHERE id = $1`
	for _, u := range updates {
		flags, err := json.Marshal(u.Flags)
		if err != nil {
			return fmt.Errorf("marshal delivery flags: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, uuid.UUID(u.ID), flags); err != nil {
			return fmt.Errorf("update delivery flags for %s: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flag updates: %w", err)
	}
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		id    uuid.UUID
		reg   models.Registration
		flags []byte
	)
	err := row.Scan(&id, &reg.Phone, &reg.Name, &reg.EventAt, &reg.MessageTemplate, &flags, &reg.CreatedAt)
	if err != nil {
		return nil, err
	}
	reg.ID = models.RegistrationID(id)
	if err := json.Unmarshal(flags, &reg.DeliveryFlags); err != nil {
		return nil, fmt.Errorf("unmarshal delivery flags: %w", err)
	}
	return &reg, nil
}
