package domain

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusCurrent Status = "CURRENT"
	StatusDueSoon Status = "DUE_SOON"
	StatusOverdue Status = "OVERDUE"
)

type Urgency string

const (
	UrgencyNone  Urgency = "NONE"
	UrgencyAmber Urgency = "AMBER"
	UrgencyRed   Urgency = "RED"
)

const (
	dueSoonWindow = 90
	redWindow     = 30
)

// Standing groups the three fields of a compliance state that must always
// agree. Build it with StandingFor; never set the fields one at a time.
type Standing struct {
	DaysRemaining int
	Status        Status
	Urgency       Urgency
}

func StandingFor(daysRemaining int) Standing {
	return Standing{
		DaysRemaining: daysRemaining,
		Status:        statusFor(daysRemaining),
		Urgency:       urgencyFor(daysRemaining),
	}
}

func statusFor(days int) Status {
	switch {
	case days < 0:
		return StatusOverdue
	case days <= dueSoonWindow:
		return StatusDueSoon
	default:
		return StatusCurrent
	}
}

func urgencyFor(days int) Urgency {
	switch {
	case days <= redWindow:
		return UrgencyRed
	case days <= dueSoonWindow:
		return UrgencyAmber
	default:
		return UrgencyNone
	}
}

// Validate reports an invariant violation when status or urgency disagree with
// DaysRemaining, e.g. a row written by hand or by an older binary.
func (s Standing) Validate() error {
	want := StandingFor(s.DaysRemaining)
	if s != want {
		return fmt.Errorf("%w: standing %d days has status=%s urgency=%s, want %s/%s",
			ErrInvariant, s.DaysRemaining, s.Status, s.Urgency, want.Status, want.Urgency)
	}
	return nil
}

// CalendarDate drops the time-of-day, keeping the wall-clock date in t's location.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from `from` to `to`; negative when
// `to` is earlier.
func DaysBetween(from, to time.Time) int {
	return int(CalendarDate(to).Sub(CalendarDate(from)).Hours() / 24)
}
