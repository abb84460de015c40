// internal/calendar/domain.go
package calendar

import (
	"context"
	"time"
)

// Event is a single closure-calendar entry. A fixed event covers the range
// [DtStart, DtEnd]; a recurring event additionally carries an RRULE and the
// optional RDATE/EXDATE adjustments of its series. Only events with Closed set
// make the library closed; open events exist so an imported feed round-trips.
type Event struct {
	UID          string
	RecurrenceID *time.Time
	Summary      string
	DtStart      time.Time
	DtEnd        *time.Time
	AllDay       bool
	Closed       bool
	RRule        string
	RDates       []time.Time
	ExDates      []time.Time
}

// EventStore loads the closure events that could possibly cover a date.
// Implementations may over-approximate; the calendar service does the exact
// recurrence matching itself.
type EventStore interface {
	RelevantTo(ctx context.Context, date time.Time) ([]Event, error)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// window returns the normalized start and end instants of the event's first
// occurrence. All-day events cover their calendar days in full.
func (e Event) window() (time.Time, time.Time) {
	start := e.DtStart
	end := e.DtStart
	if e.DtEnd != nil {
		end = *e.DtEnd
	}
	if e.AllDay {
		return startOfDay(start), endOfDay(end)
	}
	return start, end
}
