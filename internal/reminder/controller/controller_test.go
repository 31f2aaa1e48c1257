package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"remindly/internal/registration/models"
	"remindly/internal/registration/store/memory"
	"remindly/internal/reminder/dispatcher"
	dErrors "remindly/pkg/domain-errors"
	"remindly/pkg/testutil"
)

// =============================================================================
// Cycle Controller Test Suite
// =============================================================================
// The controller carries the core guarantees: exactly one dispatch per crossed
// boundary, idempotence across repeated cycles, failure isolation, and the
// commit-on-acceptance ordering. These are exercised here with the in-memory
// store and a recording dispatcher.

var boundaries = []int{3, 2, 1}

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []dispatcher.Job
	err  error
}

func (f *fakeDispatcher) Enqueue(job dispatcher.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeDispatcher) calls() []dispatcher.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatcher.Job{}, f.jobs...)
}

// failingStore delegates to the memory store but fails CommitFlags on demand.
type failingStore struct {
	*memory.Store
	commitErr error
}

func (f *failingStore) CommitFlags(ctx context.Context, updates []models.FlagUpdate) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	return f.Store.CommitFlags(ctx, updates)
}

type ControllerSuite struct {
	suite.Suite
	store      *memory.Store
	dispatched *fakeDispatcher
	controller *Controller
	now        time.Time
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.store = memory.New()
	s.dispatched = &fakeDispatcher{}
	s.now = time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

	var err error
	s.controller, err = New(s.store, s.dispatched, boundaries)
	s.Require().NoError(err)
}

func (s *ControllerSuite) createRegistration(phone string, eventAt time.Time) *models.Registration {
	reg := &models.Registration{
		ID:            models.NewRegistrationID(),
		Phone:         phone,
		Name:          "Dana",
		EventAt:       eventAt,
		DeliveryFlags: models.NewDeliveryFlags(boundaries),
		CreatedAt:     s.now,
	}
	s.Require().NoError(s.store.Create(context.Background(), reg))
	return reg
}

func (s *ControllerSuite) storedFlags(id models.RegistrationID) models.DeliveryFlags {
	reg, err := s.store.GetByID(context.Background(), id)
	s.Require().NoError(err)
	return reg.DeliveryFlags
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *ControllerSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.dispatched, boundaries)
		s.Error(err)
	})

	s.Run("nil dispatcher returns error", func() {
		_, err := New(s.store, nil, boundaries)
		s.Error(err)
	})

	s.Run("empty boundaries returns error", func() {
		_, err := New(s.store, s.dispatched, nil)
		s.Error(err)
	})
}

// =============================================================================
// Boundary Crossing
// =============================================================================

func (s *ControllerSuite) TestCrossedBoundaryDispatchesOnce() {
	reg := s.createRegistration("+15550100", s.now.AddDate(0, 0, 3))

	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))

	calls := s.dispatched.calls()
	s.Require().Len(calls, 1)
	s.Equal(reg.ID, calls[0].RegistrationID)
	s.Equal("+15550100", calls[0].Phone)
	s.Equal(3, calls[0].BoundaryDays)

	flags := s.storedFlags(reg.ID)
	s.True(flags.Sent(3))
	s.False(flags.Sent(2))
	s.False(flags.Sent(1))
}

func (s *ControllerSuite) TestSecondCycleSameDayIsIdempotent() {
	reg := s.createRegistration("+15550100", s.now.AddDate(0, 0, 3))

	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))
	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))

	s.Len(s.dispatched.calls(), 1)

	flags := s.storedFlags(reg.ID)
	s.True(flags.Sent(3))
	s.False(flags.Sent(2))
	s.False(flags.Sent(1))
}

func (s *ControllerSuite) TestEachBoundaryFiresOnItsOwnDay() {
	reg := s.createRegistration("+15550100", s.now.AddDate(0, 0, 3))

	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))
	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now.AddDate(0, 0, 1)))
	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now.AddDate(0, 0, 2)))

	calls := s.dispatched.calls()
	s.Require().Len(calls, 3)
	s.Equal(3, calls[0].BoundaryDays)
	s.Equal(2, calls[1].BoundaryDays)
	s.Equal(1, calls[2].BoundaryDays)

	flags := s.storedFlags(reg.ID)
	s.True(flags.Sent(3))
	s.True(flags.Sent(2))
	s.True(flags.Sent(1))
}

func (s *ControllerSuite) TestNoCycleEverDoubleDispatchesOneRegistration() {
	s.createRegistration("+15550100", s.now.AddDate(0, 0, 2))

	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))

	// daysRemaining matches at most one disjoint boundary per cycle.
	s.Len(s.dispatched.calls(), 1)
}

// =============================================================================
// Exclusions
// =============================================================================

func (s *ControllerSuite) TestPastEventIsExcludedEntirely() {
	reg := s.createRegistration("+15550100", s.now.AddDate(0, 0, -1))

	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))

	s.Empty(s.dispatched.calls())
	flags := s.storedFlags(reg.ID)
	s.False(flags.Sent(3))
	s.False(flags.Sent(2))
	s.False(flags.Sent(1))
}

func (s *ControllerSuite) TestFarFutureEventIsLeftAlone() {
	reg := s.createRegistration("+15550100", s.now.AddDate(0, 0, 30))

	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))

	s.Empty(s.dispatched.calls())
	s.False(s.storedFlags(reg.ID).Sent(3))
}

// =============================================================================
// Failure Isolation
// =============================================================================

func (s *ControllerSuite) TestRejectedEnqueueLeavesFlagUnsetAndCycleContinues() {
	bad := s.createRegistration("+15550100", s.now.AddDate(0, 0, 3))
	s.dispatched.err = dErrors.New(dErrors.CodeBadRequest, "dispatch job has no contact address")

	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))

	s.Empty(s.dispatched.calls())
	s.False(s.storedFlags(bad.ID).Sent(3))

	// Once dispatch recovers the same boundary is tried again.
	s.dispatched.err = nil
	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))
	s.Len(s.dispatched.calls(), 1)
	s.True(s.storedFlags(bad.ID).Sent(3))
}

func (s *ControllerSuite) TestCommitFailureSurfacesAndIsRetriedNextCycle() {
	st := &failingStore{Store: s.store, commitErr: dErrors.New(dErrors.CodeUnavailable, "store down")}
	ctrl, err := New(st, s.dispatched, boundaries)
	s.Require().NoError(err)

	reg := s.createRegistration("+15550100", s.now.AddDate(0, 0, 3))

	err = ctrl.RunCycle(context.Background(), s.now)
	s.Error(err)
	s.True(dErrors.Is(err, dErrors.CodeUnavailable))
	s.Len(s.dispatched.calls(), 1)
	// The batch was lost, so the persisted flag is still unset.
	s.False(s.storedFlags(reg.ID).Sent(3))

	// Next cycle re-evaluates and re-dispatches; duplicate risk is bounded
	// to one trigger interval.
	st.commitErr = nil
	s.Require().NoError(ctrl.RunCycle(context.Background(), s.now))
	s.Len(s.dispatched.calls(), 2)
	s.True(s.storedFlags(reg.ID).Sent(3))
}

// =============================================================================
// Independence
// =============================================================================

func (s *ControllerSuite) TestDuplicateContactsAreIndependent() {
	eventAt := s.now.AddDate(0, 0, 3)
	first := s.createRegistration("+15550100", eventAt)
	second := s.createRegistration("+15550100", eventAt)

	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))

	calls := s.dispatched.calls()
	s.Require().Len(calls, 2)
	ids := map[models.RegistrationID]bool{calls[0].RegistrationID: true, calls[1].RegistrationID: true}
	s.True(ids[first.ID])
	s.True(ids[second.ID])

	s.True(s.storedFlags(first.ID).Sent(3))
	s.True(s.storedFlags(second.ID).Sent(3))
}

func (s *ControllerSuite) TestMixedBatchProcessesEverything() {
	hit3 := s.createRegistration("+15550101", s.now.AddDate(0, 0, 3))
	hit1 := s.createRegistration("+15550102", s.now.AddDate(0, 0, 1))
	past := s.createRegistration("+15550103", s.now.AddDate(0, 0, -2))
	far := s.createRegistration("+15550104", s.now.AddDate(0, 0, 10))

	s.Require().NoError(s.controller.RunCycle(context.Background(), s.now))

	calls := s.dispatched.calls()
	s.Require().Len(calls, 2)
	s.True(s.storedFlags(hit3.ID).Sent(3))
	s.True(s.storedFlags(hit1.ID).Sent(1))
	s.False(s.storedFlags(past.ID).Sent(1))
	s.False(s.storedFlags(far.ID).Sent(3))
}

// =============================================================================
// Cycle Lease
// =============================================================================

type fakeLease struct {
	held     bool
	err      error
	acquired int
	released int
}

func (f *fakeLease) Acquire(context.Context) (func(), bool, error) {
	f.acquired++
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	return func() { f.released++ }, true, nil
}

func (s *ControllerSuite) TestLeaseHeldElsewhereSkipsCycle() {
	lease := &fakeLease{held: true}
	ctrl, err := New(s.store, s.dispatched, boundaries, WithLease(lease))
	s.Require().NoError(err)

	s.createRegistration("+15550100", s.now.AddDate(0, 0, 3))

	s.Require().NoError(ctrl.RunCycle(context.Background(), s.now))
	s.Empty(s.dispatched.calls())
	s.Equal(1, lease.acquired)
}

func (s *ControllerSuite) TestLeaseErrorDoesNotStopReminders() {
	lease := &fakeLease{err: dErrors.New(dErrors.CodeUnavailable, "redis down")}
	ctrl, err := New(s.store, s.dispatched, boundaries, WithLease(lease))
	s.Require().NoError(err)

	s.createRegistration("+15550100", s.now.AddDate(0, 0, 3))

	s.Require().NoError(ctrl.RunCycle(context.Background(), s.now))
	s.Len(s.dispatched.calls(), 1)
}

func (s *ControllerSuite) TestLeaseIsReleasedAfterCycle() {
	lease := &fakeLease{}
	ctrl, err := New(s.store, s.dispatched, boundaries, WithLease(lease))
	s.Require().NoError(err)

	s.Require().NoError(ctrl.RunCycle(context.Background(), s.now))
	s.Equal(1, lease.acquired)
	s.Equal(1, lease.released)
}

// =============================================================================
// End-to-End Flow
// =============================================================================

func TestReminderLifecycleAcrossDays(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	st := memory.New()
	dispatched := &fakeDispatcher{}

	ctrl, err := New(st, dispatched, boundaries)
	if err != nil {
		t.Fatal(err)
	}

	reg := &models.Registration{
		ID:            models.NewRegistrationID(),
		Phone:         "+15550100",
		Name:          "Dana",
		EventAt:       now.AddDate(0, 0, 3),
		DeliveryFlags: models.NewDeliveryFlags(boundaries),
		CreatedAt:     now,
	}

	testutil.Given(t, "a registration three days before its webinar", func(t *testing.T) {
		if err := st.Create(ctx, reg); err != nil {
			t.Fatal(err)
		}
	})

	testutil.When(t, "cycles run daily through the event", func(t *testing.T) {
		for day := 0; day <= 3; day++ {
			if err := ctrl.RunCycle(ctx, now.AddDate(0, 0, day)); err != nil {
				t.Fatal(err)
			}
		}
	})

	testutil.Then(t, "exactly one reminder fired per boundary", func(t *testing.T) {
		calls := dispatched.calls()
		if len(calls) != 3 {
			t.Fatalf("expected 3 dispatches, got %d", len(calls))
		}
		got, err := st.GetByID(ctx, reg.ID)
		if err != nil {
			t.Fatal(err)
		}
		for _, b := range boundaries {
			if !got.DeliveryFlags.Sent(b) {
				t.Errorf("boundary %dd flag still unset", b)
			}
		}
	})
}
