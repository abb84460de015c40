// internal/storage/postgres/reservations.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"libris/internal/circulation"
)

// ReservationStore reads and writes reservations in postgres.
type ReservationStore struct {
	db *DB
}

// NewReservationStore creates a reservation store.
func NewReservationStore(db *DB) *ReservationStore {
	return &ReservationStore{db: db}
}

func (s *ReservationStore) FindWaiting(ctx context.Context, itemID, memberID int64) (*circulation.Reservation, error) {
	const query = `
		SELECT id, item_id, member_id, reserved_at, expiry_date, status
		FROM reservations
		WHERE item_id = $1 AND member_id = $2 AND status = 'waiting'
		ORDER BY reserved_at
		LIMIT 1
	`
	return s.findOne(ctx, query, itemID, memberID)
}

func (s *ReservationStore) FindOldestWaiting(ctx context.Context, itemID int64) (*circulation.Reservation, error) {
	const query = `
		SELECT id, item_id, member_id, reserved_at, expiry_date, status
		FROM reservations
		WHERE item_id = $1 AND status = 'waiting'
		ORDER BY reserved_at
		LIMIT 1
	`
	return s.findOne(ctx, query, itemID)
}

func (s *ReservationStore) findOne(ctx context.Context, query string, args ...interface{}) (*circulation.Reservation, error) {
	var reservation circulation.Reservation
	if err := s.db.q(ctx).GetContext(ctx, &reservation, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select reservation: %w", err)
	}
	return &reservation, nil
}

func (s *ReservationStore) Save(ctx context.Context, reservation *circulation.Reservation) error {
	const query = `
		INSERT INTO reservations (id, item_id, member_id, reserved_at, expiry_date, status)
		VALUES (:id, :item_id, :member_id, :reserved_at, :expiry_date, :status)
		ON CONFLICT (id) DO UPDATE SET
			expiry_date = EXCLUDED.expiry_date,
			status = EXCLUDED.status
	`
	if _, err := sqlxNamedExec(ctx, s.db, query, reservation); err != nil {
		return fmt.Errorf("save reservation: %w", err)
	}
	return nil
}
