// internal/storage/postgres/schema.go
package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables and indexes if they do not exist yet. The
// partial unique index on checkouts is what makes "at most one active
// checkout per item" hold even across concurrent transactions.
func (d *DB) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS members (
			id                     BIGSERIAL PRIMARY KEY,
			identifier             TEXT NOT NULL UNIQUE,
			full_name              TEXT NOT NULL,
			group1                 TEXT NOT NULL DEFAULT '',
			group2                 TEXT,
			communication_address1 TEXT,
			communication_address2 TEXT,
			status                 TEXT NOT NULL DEFAULT 'active',
			expiry_date            TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id         BIGSERIAL PRIMARY KEY,
			identifier TEXT NOT NULL UNIQUE,
			type1      TEXT NOT NULL DEFAULT '',
			restricted BOOLEAN NOT NULL DEFAULT FALSE,
			status1    TEXT NOT NULL DEFAULT 'new'
		)`,
		`CREATE TABLE IF NOT EXISTS loan_groups (
			id         BIGSERIAL PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS loan_group_classifications (
			loan_group_id  BIGINT NOT NULL REFERENCES loan_groups (id) ON DELETE CASCADE,
			classification TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS loan_conditions (
			id                       BIGSERIAL PRIMARY KEY,
			loan_group_id            BIGINT REFERENCES loan_groups (id) ON DELETE CASCADE,
			member_group             TEXT NOT NULL,
			loan_limit               INT NOT NULL DEFAULT 0,
			loan_period              INT NOT NULL DEFAULT 0,
			renew_limit              INT NOT NULL DEFAULT 0,
			reservation_limit        INT NOT NULL DEFAULT 0,
			adjust_due_on_closed_day BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS loan_conditions_group_member
			ON loan_conditions (COALESCE(loan_group_id, 0), member_group)`,
		`CREATE TABLE IF NOT EXISTS checkouts (
			id             UUID PRIMARY KEY,
			item_id        BIGINT NOT NULL REFERENCES items (id),
			member_id      BIGINT NOT NULL REFERENCES members (id),
			checked_out_at TIMESTAMPTZ NOT NULL,
			due_date       TIMESTAMPTZ,
			checked_in_at  TIMESTAMPTZ,
			status         TEXT NOT NULL DEFAULT 'checked_out'
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS checkouts_one_active_per_item
			ON checkouts (item_id) WHERE status = 'checked_out'`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id          UUID PRIMARY KEY,
			item_id     BIGINT NOT NULL REFERENCES items (id),
			member_id   BIGINT NOT NULL REFERENCES members (id),
			reserved_at BIGINT NOT NULL,
			expiry_date BIGINT,
			status      TEXT NOT NULL DEFAULT 'waiting'
		)`,
		`CREATE INDEX IF NOT EXISTS reservations_item_status
			ON reservations (item_id, status)`,
		`CREATE TABLE IF NOT EXISTS calendar_events (
			uid           TEXT NOT NULL,
			recurrence_id TIMESTAMPTZ,
			summary       TEXT NOT NULL DEFAULT '',
			dtstart       TIMESTAMPTZ NOT NULL,
			dtend         TIMESTAMPTZ,
			all_day       BOOLEAN NOT NULL DEFAULT FALSE,
			closed        BOOLEAN NOT NULL DEFAULT FALSE,
			rrule         TEXT NOT NULL DEFAULT '',
			rdates        TEXT[] NOT NULL DEFAULT '{}',
			exdates       TEXT[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS calendar_events_uid_recurrence
			ON calendar_events (uid, COALESCE(recurrence_id, 'epoch'::timestamptz))`,
	}

	for _, stmt := range statements {
		if _, err := d.q(ctx).ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
