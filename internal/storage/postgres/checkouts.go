// internal/storage/postgres/checkouts.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"libris/internal/circulation"
)

// CheckoutStore reads and writes checkouts in postgres.
type CheckoutStore struct {
	db *DB
}

// NewCheckoutStore creates a checkout store.
func NewCheckoutStore(db *DB) *CheckoutStore {
	return &CheckoutStore{db: db}
}

func (s *CheckoutStore) CountActiveByMember(ctx context.Context, memberID int64) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM checkouts
		WHERE member_id = $1 AND status = 'checked_out'
	`
	var count int
	if err := s.db.q(ctx).GetContext(ctx, &count, query, memberID); err != nil {
		return 0, fmt.Errorf("count active checkouts: %w", err)
	}
	return count, nil
}

func (s *CheckoutStore) CountActiveByMemberAndGroup(ctx context.Context, memberID int64, loanGroupID *int64) (int, error) {
	// The item's classification is resolved to its loan group at count time,
	// so regrouping classifications retroactively affects the limit checks.
	const query = `
		SELECT COUNT(*)
		FROM checkouts c
		JOIN items i ON i.id = c.item_id
		LEFT JOIN loan_group_classifications lgc ON lgc.classification = i.type1
		WHERE c.member_id = $1
		  AND c.status = 'checked_out'
		  AND lgc.loan_group_id IS NOT DISTINCT FROM $2
	`
	var count int
	if err := s.db.q(ctx).GetContext(ctx, &count, query, memberID, loanGroupID); err != nil {
		return 0, fmt.Errorf("count active checkouts by group: %w", err)
	}
	return count, nil
}

func (s *CheckoutStore) FindActiveByItem(ctx context.Context, itemID int64) (*circulation.Checkout, error) {
	const query = `
		SELECT id, item_id, member_id, checked_out_at, due_date, checked_in_at, status
		FROM checkouts
		WHERE item_id = $1 AND status = 'checked_out'
	`
	return s.findOne(ctx, query, itemID)
}

func (s *CheckoutStore) FindLatestByItem(ctx context.Context, itemID int64) (*circulation.Checkout, error) {
	const query = `
		SELECT id, item_id, member_id, checked_out_at, due_date, checked_in_at, status
		FROM checkouts
		WHERE item_id = $1
		ORDER BY checked_out_at DESC
		LIMIT 1
	`
	return s.findOne(ctx, query, itemID)
}

func (s *CheckoutStore) findOne(ctx context.Context, query string, itemID int64) (*circulation.Checkout, error) {
	var checkout circulation.Checkout
	if err := s.db.q(ctx).GetContext(ctx, &checkout, query, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select checkout: %w", err)
	}
	return &checkout, nil
}

func (s *CheckoutStore) Save(ctx context.Context, checkout *circulation.Checkout) error {
	const query = `
		INSERT INTO checkouts (id, item_id, member_id, checked_out_at, due_date, checked_in_at, status)
		VALUES (:id, :item_id, :member_id, :checked_out_at, :due_date, :checked_in_at, :status)
		ON CONFLICT (id) DO UPDATE SET
			due_date = EXCLUDED.due_date,
			checked_in_at = EXCLUDED.checked_in_at,
			status = EXCLUDED.status
	`
	if _, err := sqlxNamedExec(ctx, s.db, query, checkout); err != nil {
		return fmt.Errorf("save checkout: %w", err)
	}
	return nil
}
