// internal/calendar/service.go
package calendar

import (
	"context"
	"time"
)

// UnlimitedPeriod is the loan-period sentinel meaning the loan never expires
// by date.
const UnlimitedPeriod = 9999

// Service answers closure questions about the library calendar and derives
// due dates that never land on a closed day. Implementations are read-only
// and safe for concurrent use.
type Service interface {
	// IsClosed reports whether the library is closed on the calendar day of
	// date, taking fixed and recurring closure events into account.
	IsClosed(ctx context.Context, date time.Time) (bool, error)

	// AdjustToOpenDate moves date one day at a time, forward by default or
	// backward when backward is set, until it lands on an open day.
	AdjustToOpenDate(ctx context.Context, date time.Time, backward bool) (time.Time, error)

	// DueDate computes from + periodDays adjusted to an open day. A nil
	// result means the loan has no due date (periodDays <= 0 or equal to
	// UnlimitedPeriod).
	DueDate(ctx context.Context, from time.Time, periodDays int, backward bool) (*time.Time, error)
}
