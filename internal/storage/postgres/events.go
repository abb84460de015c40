// internal/storage/postgres/events.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"libris/internal/calendar"
)

// CalendarEventStore loads closure events. RelevantTo over-approximates: it
// returns every closed recurring event plus the fixed events overlapping the
// day; the calendar service does the exact matching.
type CalendarEventStore struct {
	db *DB
}

// NewCalendarEventStore creates a calendar event store.
func NewCalendarEventStore(db *DB) *CalendarEventStore {
	return &CalendarEventStore{db: db}
}

type eventRow struct {
	UID          string         `db:"uid"`
	RecurrenceID *time.Time     `db:"recurrence_id"`
	Summary      string         `db:"summary"`
	DtStart      time.Time      `db:"dtstart"`
	DtEnd        *time.Time     `db:"dtend"`
	AllDay       bool           `db:"all_day"`
	Closed       bool           `db:"closed"`
	RRule        string         `db:"rrule"`
	RDates       pq.StringArray `db:"rdates"`
	ExDates      pq.StringArray `db:"exdates"`
}

func (s *CalendarEventStore) RelevantTo(ctx context.Context, date time.Time) ([]calendar.Event, error) {
	const query = `
		SELECT uid, recurrence_id, summary, dtstart, dtend, all_day, closed, rrule, rdates, exdates
		FROM calendar_events
		WHERE closed
		  AND (rrule <> ''
		       OR cardinality(rdates) > 0
		       OR (dtstart < $2 AND COALESCE(dtend, dtstart) + interval '1 day' > $1))
	`
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var rows []eventRow
	if err := s.db.q(ctx).SelectContext(ctx, &rows, query, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("select calendar events: %w", err)
	}

	events := make([]calendar.Event, 0, len(rows))
	for _, row := range rows {
		rdates, err := parseDates(row.RDates)
		if err != nil {
			return nil, fmt.Errorf("event %s rdates: %w", row.UID, err)
		}
		exdates, err := parseDates(row.ExDates)
		if err != nil {
			return nil, fmt.Errorf("event %s exdates: %w", row.UID, err)
		}
		events = append(events, calendar.Event{
			UID:          row.UID,
			RecurrenceID: row.RecurrenceID,
			Summary:      row.Summary,
			DtStart:      row.DtStart,
			DtEnd:        row.DtEnd,
			AllDay:       row.AllDay,
			Closed:       row.Closed,
			RRule:        row.RRule,
			RDates:       rdates,
			ExDates:      exdates,
		})
	}
	return events, nil
}

// Save upserts one event keyed by (uid, recurrence_id).
func (s *CalendarEventStore) Save(ctx context.Context, event calendar.Event) error {
	const query = `
		INSERT INTO calendar_events (uid, recurrence_id, summary, dtstart, dtend,
			all_day, closed, rrule, rdates, exdates)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (uid, COALESCE(recurrence_id, 'epoch'::timestamptz)) DO UPDATE SET
			summary = EXCLUDED.summary,
			dtstart = EXCLUDED.dtstart,
			dtend = EXCLUDED.dtend,
			all_day = EXCLUDED.all_day,
			closed = EXCLUDED.closed,
			rrule = EXCLUDED.rrule,
			rdates = EXCLUDED.rdates,
			exdates = EXCLUDED.exdates
	`
	if _, err := s.db.q(ctx).ExecContext(ctx, query,
		event.UID, event.RecurrenceID, event.Summary, event.DtStart, event.DtEnd,
		event.AllDay, event.Closed, event.RRule,
		formatDates(event.RDates), formatDates(event.ExDates)); err != nil {
		return fmt.Errorf("save calendar event: %w", err)
	}
	return nil
}

func parseDates(raw pq.StringArray) ([]time.Time, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dates := make([]time.Time, 0, len(raw))
	for _, v := range raw {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, err
		}
		dates = append(dates, t)
	}
	return dates, nil
}

func formatDates(dates []time.Time) pq.StringArray {
	out := make(pq.StringArray, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(time.RFC3339))
	}
	return out
}
