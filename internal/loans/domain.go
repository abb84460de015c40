// internal/loans/domain.go
package loans

import (
	"context"
	"time"
)

// Group is a named bucket of item classifications that share lending rules.
// One distinguished group, identified by name through Config.AllGroupName,
// applies to every item regardless of classification and never carries
// classification mappings of its own.
type Group struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Condition holds the numeric lending limits for one (loan group, member
// group) pair. GroupID nil keys a condition that is not attached to any loan
// group. At most one condition exists per pair.
type Condition struct {
	ID                   int64  `db:"id"`
	GroupID              *int64 `db:"loan_group_id"`
	MemberGroup          string `db:"member_group"`
	LoanLimit            int    `db:"loan_limit"`
	LoanPeriod           int    `db:"loan_period"`
	RenewLimit           int    `db:"renew_limit"`
	ReservationLimit     int    `db:"reservation_limit"`
	AdjustDueOnClosedDay bool   `db:"adjust_due_on_closed_day"`
}

// Defaults is the static fallback bundle applied when neither a specific nor
// a blanket condition exists for a member group.
type Defaults struct {
	LoanLimit            int
	LoanPeriod           int
	RenewLimit           int
	ReservationLimit     int
	AdjustDueOnClosedDay bool
}

// GroupStore finds loan groups.
type GroupStore interface {
	// ForClassification returns the loan group a classification code maps to,
	// or nil when the code is unmapped. A classification belongs to at most
	// one group.
	ForClassification(ctx context.Context, classification string) (*Group, error)

	// FindByName returns the group with the given name, or nil.
	FindByName(ctx context.Context, name string) (*Group, error)
}

// ConditionStore finds loan conditions by their (group, member group) key.
// A nil group matches conditions not attached to any loan group.
type ConditionStore interface {
	Find(ctx context.Context, group *Group, memberGroup string) (*Condition, error)
}
