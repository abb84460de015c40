// internal/circulation/stores.go
package circulation

import "context"

// The orchestrator talks to storage through these interfaces only. All reads
// and writes of one orchestrator call happen inside a single transaction
// supplied by Transactor, so two concurrent checkouts of the same item cannot
// both commit an active checkout.

// MemberStore finds members.
type MemberStore interface {
	// FindByIdentifier returns nil without error when no member matches.
	FindByIdentifier(ctx context.Context, identifier string) (*Member, error)
}

// ItemStore finds and saves items.
type ItemStore interface {
	// FindByIdentifier returns nil without error when no item matches.
	FindByIdentifier(ctx context.Context, identifier string) (*Item, error)
	Save(ctx context.Context, item *Item) error
}

// CheckoutStore finds, counts and saves checkouts.
type CheckoutStore interface {
	// CountActiveByMember counts the member's not-returned checkouts.
	CountActiveByMember(ctx context.Context, memberID int64) (int, error)
	// CountActiveByMemberAndGroup counts the member's not-returned checkouts
	// whose item classification maps to the given loan group; a nil group
	// counts checkouts of unmapped items.
	CountActiveByMemberAndGroup(ctx context.Context, memberID int64, loanGroupID *int64) (int, error)
	// FindActiveByItem returns the item's not-returned checkout, or nil.
	FindActiveByItem(ctx context.Context, itemID int64) (*Checkout, error)
	// FindLatestByItem returns the item's most recent checkout, or nil.
	FindLatestByItem(ctx context.Context, itemID int64) (*Checkout, error)
	Save(ctx context.Context, checkout *Checkout) error
}

// ReservationStore finds and saves reservations.
type ReservationStore interface {
	// FindWaiting returns the member's waiting reservation for the item, or nil.
	FindWaiting(ctx context.Context, itemID, memberID int64) (*Reservation, error)
	// FindOldestWaiting returns the longest-waiting reservation for the item, or nil.
	FindOldestWaiting(ctx context.Context, itemID int64) (*Reservation, error)
	Save(ctx context.Context, reservation *Reservation) error
}

// Transactor runs fn inside one storage transaction. fn returning an error
// rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
