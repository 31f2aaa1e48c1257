// Package evaluator decides whether a registration has just crossed a
// lead-time boundary. It is pure: no I/O, deterministic for a given
// registration and evaluation instant.
package evaluator

import (
	"time"

	"remindly/internal/registration/models"
)

// Hit names the single boundary a registration crossed this cycle.
type Hit struct {
	BoundaryDays int
}

// Evaluate returns the boundary hit for reg at now, if any. A hit fires iff
// the whole-day distance to the event exactly equals a configured boundary
// and that boundary's flag is still unset. Boundaries are disjoint integers,
// so at most one can match. Past events never fire.
func Evaluate(reg *models.Registration, now time.Time, boundaries []int) (Hit, bool) {
	days := DaysRemaining(reg.EventAt, now)
	if days < 0 {
		return Hit{}, false
	}
	for _, b := range boundaries {
		if days == b && !reg.DeliveryFlags.Sent(b) {
			return Hit{BoundaryDays: b}, true
		}
	}
	return Hit{}, false
}

// DaysRemaining is the whole-calendar-day difference between the event's
// date and the evaluation date, both taken in UTC. Time of day is ignored:
// an event at 23:59 tomorrow is one day out even at 00:01 today.
func DaysRemaining(eventAt, now time.Time) int {
	event := midnightUTC(eventAt)
	today := midnightUTC(now)
	return int(event.Sub(today).Hours() / 24)
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
