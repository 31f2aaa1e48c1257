package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "remindly/pkg/domain-errors"
)

// RegistrationID identifies one webinar registration.
// Invariant: assigned at creation, never reused.
type RegistrationID uuid.UUID

// NewRegistrationID returns a fresh random identifier.
func NewRegistrationID() RegistrationID {
	return RegistrationID(uuid.New())
}

// ParseRegistrationID constructs a RegistrationID from external input.
func ParseRegistrationID(s string) (RegistrationID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return RegistrationID{}, dErrors.New(dErrors.CodeBadRequest, "invalid registration id")
	}
	return RegistrationID(id), nil
}

func (id RegistrationID) String() string { return uuid.UUID(id).String() }

func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id RegistrationID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *RegistrationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// DeliveryFlags tracks which lead-time reminders were already handed off,
// keyed by boundary day count. A flag moves false -> true exactly once and
// never reverts.
type DeliveryFlags map[int]bool

// NewDeliveryFlags initializes an unsent flag per configured boundary.
func NewDeliveryFlags(boundaries []int) DeliveryFlags {
	flags := make(DeliveryFlags, len(boundaries))
	for _, b := range boundaries {
		flags[b] = false
	}
	return flags
}

// Sent reports whether the reminder for the given boundary was handed off.
func (f DeliveryFlags) Sent(boundaryDays int) bool {
	return f[boundaryDays]
}

// MarkSent records the hand-off for one boundary.
func (f DeliveryFlags) MarkSent(boundaryDays int) {
	f[boundaryDays] = true
}

// Clone returns an independent copy so store reads never alias caller state.
func (f DeliveryFlags) Clone() DeliveryFlags {
	out := make(DeliveryFlags, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Registration is one person's subscription to reminders for one webinar.
// Only DeliveryFlags mutates after creation, and only via the cycle
// controller.
type Registration struct {
	ID       RegistrationID `json:"id"`
	Phone    string         `json:"phone"`
	Name     string         `json:"name"`
	EventAt  time.Time      `json:"event_at"`
	// MessageTemplate is accepted at intake and stored, but delivery does not
	// consume it yet.
	MessageTemplate string        `json:"message_template,omitempty"`
	DeliveryFlags   DeliveryFlags `json:"delivery_flags"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Clone copies the registration deeply enough for safe hand-out from stores.
func (r *Registration) Clone() *Registration {
	cp := *r
	cp.DeliveryFlags = r.DeliveryFlags.Clone()
	return &cp
}

// FlagUpdate carries one registration's pending flag mutations to the store.
type FlagUpdate struct {
	ID    RegistrationID
	Flags DeliveryFlags
}
