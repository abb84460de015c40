// internal/circulation/domain.go
package circulation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActivityStatus is a member's tri-state activity flag.
type ActivityStatus string

const (
	StatusActive   ActivityStatus = "active"
	StatusInactive ActivityStatus = "inactive"
	StatusExpired  ActivityStatus = "expired"
)

// ParseActivityStatus accepts both the textual statuses and the legacy
// numeric codes written by older imports.
func ParseActivityStatus(raw string) (ActivityStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "1":
		return StatusActive, nil
	case "inactive", "0":
		return StatusInactive, nil
	case "expired", "2":
		return StatusExpired, nil
	}
	return "", fmt.Errorf("unknown activity status %q", raw)
}

// Member is a library member.
type Member struct {
	ID         int64          `db:"id"`
	Identifier string         `db:"identifier"`
	FullName   string         `db:"full_name"`
	Group1     string         `db:"group1"`
	Group2     *string        `db:"group2"`
	Address1   *string        `db:"communication_address1"`
	Address2   *string        `db:"communication_address2"`
	Status     ActivityStatus `db:"status"`
	ExpiryDate *time.Time     `db:"expiry_date"`
}

// IsActive reports whether the member may borrow items.
func (m *Member) IsActive() bool {
	return m.Status == StatusActive
}

// Item is a single lendable manifestation. Type1 is the classification code
// that drives the loan-group mapping.
type Item struct {
	ID         int64     `db:"id"`
	Identifier string    `db:"identifier"`
	Type1      string    `db:"type1"`
	Restricted bool      `db:"restricted"`
	Status     ItemState `db:"status1"`
}

// CheckoutStatus is a checkout record's lifecycle flag.
type CheckoutStatus string

const (
	CheckoutStatusCheckedOut CheckoutStatus = "checked_out"
	CheckoutStatusReturned   CheckoutStatus = "returned"
)

// Checkout links an item to the member borrowing it. At most one checkout per
// item is active (not returned) at a time.
type Checkout struct {
	ID           uuid.UUID      `db:"id"`
	ItemID       int64          `db:"item_id"`
	MemberID     int64          `db:"member_id"`
	CheckedOutAt time.Time      `db:"checked_out_at"`
	DueDate      *time.Time     `db:"due_date"`
	CheckedInAt  *time.Time     `db:"checked_in_at"`
	Status       CheckoutStatus `db:"status"`
}

// Reservation queues a member for an item. Timestamps are unix seconds.
type Reservation struct {
	ID         uuid.UUID        `db:"id"`
	ItemID     int64            `db:"item_id"`
	MemberID   int64            `db:"member_id"`
	ReservedAt int64            `db:"reserved_at"`
	ExpiryDate *int64           `db:"expiry_date"`
	Status     ReservationState `db:"status"`
}
