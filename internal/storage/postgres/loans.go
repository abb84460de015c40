// internal/storage/postgres/loans.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"libris/internal/loans"
)

// LoanGroupStore reads loan groups and their classification mappings.
type LoanGroupStore struct {
	db *DB
}

// NewLoanGroupStore creates a loan group store.
func NewLoanGroupStore(db *DB) *LoanGroupStore {
	return &LoanGroupStore{db: db}
}

func (s *LoanGroupStore) ForClassification(ctx context.Context, classification string) (*loans.Group, error) {
	const query = `
		SELECT g.id, g.name, g.created_at, g.updated_at
		FROM loan_groups g
		JOIN loan_group_classifications lgc ON lgc.loan_group_id = g.id
		WHERE lgc.classification = $1
	`
	return s.findOne(ctx, query, classification)
}

func (s *LoanGroupStore) FindByName(ctx context.Context, name string) (*loans.Group, error) {
	const query = `
		SELECT id, name, created_at, updated_at
		FROM loan_groups
		WHERE name = $1
	`
	return s.findOne(ctx, query, name)
}

func (s *LoanGroupStore) findOne(ctx context.Context, query string, arg interface{}) (*loans.Group, error) {
	var group loans.Group
	if err := s.db.q(ctx).GetContext(ctx, &group, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select loan group: %w", err)
	}
	return &group, nil
}

// LoanConditionStore reads loan conditions.
type LoanConditionStore struct {
	db *DB
}

// NewLoanConditionStore creates a loan condition store.
func NewLoanConditionStore(db *DB) *LoanConditionStore {
	return &LoanConditionStore{db: db}
}

func (s *LoanConditionStore) Find(ctx context.Context, group *loans.Group, memberGroup string) (*loans.Condition, error) {
	const query = `
		SELECT id, loan_group_id, member_group, loan_limit, loan_period,
		       renew_limit, reservation_limit, adjust_due_on_closed_day
		FROM loan_conditions
		WHERE loan_group_id IS NOT DISTINCT FROM $1 AND member_group = $2
	`
	var groupID *int64
	if group != nil {
		groupID = &group.ID
	}

	var condition loans.Condition
	if err := s.db.q(ctx).GetContext(ctx, &condition, query, groupID, memberGroup); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select loan condition: %w", err)
	}
	return &condition, nil
}
