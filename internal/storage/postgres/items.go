// internal/storage/postgres/items.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"libris/internal/circulation"
)

// ItemStore reads and writes items in postgres.
type ItemStore struct {
	db *DB
}

// NewItemStore creates an item store.
func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

func (s *ItemStore) FindByIdentifier(ctx context.Context, identifier string) (*circulation.Item, error) {
	const query = `
		SELECT id, identifier, type1, restricted, status1
		FROM items
		WHERE identifier = $1
	`
	var item circulation.Item
	if err := s.db.q(ctx).GetContext(ctx, &item, query, identifier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select item: %w", err)
	}
	return &item, nil
}

func (s *ItemStore) Save(ctx context.Context, item *circulation.Item) error {
	if item.ID == 0 {
		const insert = `
			INSERT INTO items (identifier, type1, restricted, status1)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`
		row := s.db.q(ctx).QueryRowxContext(ctx, insert,
			item.Identifier, item.Type1, item.Restricted, item.Status)
		if err := row.Scan(&item.ID); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		return nil
	}

	const update = `
		UPDATE items
		SET identifier = $2, type1 = $3, restricted = $4, status1 = $5
		WHERE id = $1
	`
	if _, err := s.db.q(ctx).ExecContext(ctx, update,
		item.ID, item.Identifier, item.Type1, item.Restricted, item.Status); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}
