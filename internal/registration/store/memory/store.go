package memory

import (
	"context"
	"sync"
	"time"

	"remindly/internal/registration/models"
	dErrors "remindly/pkg/domain-errors"
)

// Store is an in-memory registration store for tests and single-node dev
// runs. All hand-outs are clones so callers never share flag maps with the
// store.
type Store struct {
	mu   sync.RWMutex
	regs map[models.RegistrationID]*models.Registration
}

func New() *Store {
	return &Store{regs: make(map[models.RegistrationID]*models.Registration)}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs = make(map[models.RegistrationID]*models.Registration)
}

func (s *Store) Create(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.regs[reg.ID]; exists {
		return dErrors.New(dErrors.CodeInternal, "registration id collision")
	}
	s.regs[reg.ID] = reg.Clone()
	return nil
}

func (s *Store) GetByID(_ context.Context, id models.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.regs[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	return reg.Clone(), nil
}

func (s *Store) FetchUpcoming(_ context.Context, now time.Time) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Registration
	for _, reg := range s.regs {
		if !reg.EventAt.Before(now) {
			out = append(out, reg.Clone())
		}
	}
	return out, nil
}

func (s *Store) CommitFlags(_ context.Context, updates []models.FlagUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		if _, ok := s.regs[u.ID]; !ok {
			return dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
	}
	for _, u := range updates {
		s.regs[u.ID].DeliveryFlags = u.Flags.Clone()
	}
	return nil
}

func (s *Store) Health(_ context.Context) error { return nil }
