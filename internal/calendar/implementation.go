// internal/calendar/implementation.go
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoOpenDate is returned when the adjustment walk never finds an open day.
// The closure configuration must not mark every day of a window closed; this
// error means it does.
var ErrNoOpenDate = errors.New("no open date within adjustment window")

// maxAdjustDays bounds the closed-day adjustment walk.
const maxAdjustDays = 366

type service struct {
	events    EventStore
	tracer    trace.Tracer
	maxAdjust int
}

// NewService creates a calendar service backed by the given event store.
func NewService(events EventStore) Service {
	return &service{
		events:    events,
		tracer:    otel.Tracer("libris/calendar"),
		maxAdjust: maxAdjustDays,
	}
}

func (s *service) IsClosed(ctx context.Context, date time.Time) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "calendar.is_closed",
		trace.WithAttributes(attribute.String("date", date.Format("2006-01-02"))),
	)
	defer span.End()

	dayStart := startOfDay(date)
	dayEnd := endOfDay(date)

	events, err := s.events.RelevantTo(ctx, date)
	if err != nil {
		return false, fmt.Errorf("load closure events: %w", err)
	}

	for _, ev := range events {
		if !ev.Closed || ev.RRule != "" || ev.DtStart.IsZero() {
			continue
		}
		start, end := ev.window()
		if !start.After(dayEnd) && !end.Before(dayStart) {
			return true, nil
		}
	}

	for _, ev := range events {
		if !ev.Closed || ev.RRule == "" || ev.DtStart.IsZero() {
			continue
		}
		if ev.DtStart.After(dayEnd) {
			continue
		}
		if occursOn(ev, dayStart, dayEnd) {
			return true, nil
		}
	}

	return false, nil
}

// occursOn expands the event's recurrence forward from its start and reports
// whether any occurrence overlaps [dayStart, dayEnd]. A rule that cannot be
// parsed matches nothing: a bad recurrence definition must not block
// circulation, so it is logged and skipped.
func occursOn(ev Event, dayStart, dayEnd time.Time) bool {
	rule, err := ParseRule(ev.RRule)
	if err != nil {
		log.Printf("calendar: skipping event %s: unusable recurrence rule %q: %v", ev.UID, ev.RRule, err)
		return false
	}

	start, end := ev.window()
	duration := end.Sub(start)

	for _, rd := range ev.RDates {
		occ := rd
		if ev.AllDay {
			occ = startOfDay(rd)
		}
		if !occ.After(dayEnd) && !occ.Add(duration).Before(dayStart) && !excluded(ev, occ) {
			return true
		}
	}

	matched := false
	rule.Occurrences(start, func(occ time.Time) bool {
		if occ.After(dayEnd) {
			return false
		}
		if excluded(ev, occ) {
			return true
		}
		if !occ.Add(duration).Before(dayStart) {
			matched = true
			return false
		}
		return true
	})
	return matched
}

func excluded(ev Event, occ time.Time) bool {
	for _, ex := range ev.ExDates {
		if ev.AllDay {
			if sameDay(ex, occ) {
				return true
			}
		} else if ex.Equal(occ) {
			return true
		}
	}
	return false
}

func (s *service) AdjustToOpenDate(ctx context.Context, date time.Time, backward bool) (time.Time, error) {
	cursor := date
	for i := 0; i <= s.maxAdjust; i++ {
		closed, err := s.IsClosed(ctx, cursor)
		if err != nil {
			return time.Time{}, err
		}
		if !closed {
			return cursor, nil
		}
		if backward {
			cursor = cursor.AddDate(0, 0, -1)
		} else {
			cursor = cursor.AddDate(0, 0, 1)
		}
	}
	return time.Time{}, fmt.Errorf("%w: gave up %d days from %s",
		ErrNoOpenDate, s.maxAdjust, date.Format("2006-01-02"))
}

func (s *service) DueDate(ctx context.Context, from time.Time, periodDays int, backward bool) (*time.Time, error) {
	if periodDays <= 0 || periodDays == UnlimitedPeriod {
		return nil, nil
	}
	due, err := s.AdjustToOpenDate(ctx, from.AddDate(0, 0, periodDays), backward)
	if err != nil {
		return nil, fmt.Errorf("adjust due date: %w", err)
	}
	return &due, nil
}
