// internal/storage/postgres/members.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"libris/internal/circulation"
)

// MemberStore reads members from postgres.
type MemberStore struct {
	db *DB
}

// NewMemberStore creates a member store.
func NewMemberStore(db *DB) *MemberStore {
	return &MemberStore{db: db}
}

func (s *MemberStore) FindByIdentifier(ctx context.Context, identifier string) (*circulation.Member, error) {
	const query = `
		SELECT id, identifier, full_name, group1, group2,
		       communication_address1, communication_address2, status, expiry_date
		FROM members
		WHERE identifier = $1
	`
	var member circulation.Member
	if err := s.db.q(ctx).GetContext(ctx, &member, query, identifier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select member: %w", err)
	}
	return &member, nil
}

// Save inserts the member or updates it by identifier. Used by data imports
// and tests, not by the circulation flow.
func (s *MemberStore) Save(ctx context.Context, member *circulation.Member) error {
	const query = `
		INSERT INTO members (identifier, full_name, group1, group2,
			communication_address1, communication_address2, status, expiry_date)
		VALUES (:identifier, :full_name, :group1, :group2,
			:communication_address1, :communication_address2, :status, :expiry_date)
		ON CONFLICT (identifier) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			group1 = EXCLUDED.group1,
			group2 = EXCLUDED.group2,
			communication_address1 = EXCLUDED.communication_address1,
			communication_address2 = EXCLUDED.communication_address2,
			status = EXCLUDED.status,
			expiry_date = EXCLUDED.expiry_date
		RETURNING id
	`
	rows, err := sqlx.NamedQueryContext(ctx, s.db.q(ctx), query, member)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&member.ID); err != nil {
			return fmt.Errorf("scan member id: %w", err)
		}
	}
	return rows.Err()
}
