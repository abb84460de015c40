// internal/circulation/service.go
package circulation

import (
	"context"
)

// Service is the circulation engine's public surface. Identifiers are the
// business keys printed on member and item cards, not database ids.
type Service interface {
	// Reserve queues the member for the item. expiry, when non-nil, is the
	// reservation's expiry as unix seconds.
	Reserve(ctx context.Context, memberIdentifier, itemIdentifier string, expiry *int64) (*Reservation, error)

	// Checkout lends the listed items to the member. The batch is atomic:
	// any item failing a precondition aborts the whole call with nothing
	// persisted.
	Checkout(ctx context.Context, memberIdentifier string, itemIdentifiers []string) ([]*Checkout, error)

	// CheckIn returns the item. The result is the affected checkout, nil
	// when the item had none; checking in an already-returned item is a
	// no-op success.
	CheckIn(ctx context.Context, itemIdentifier string) (*Checkout, error)
}
