package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectRuleColumns = `
	id, company_id, name, description, min_amount, max_amount, approvers,
	is_manager_approver_required, is_sequential, min_approval_percentage,
	specific_approver_enabled, specific_approver_id, categories, is_active,
	created_at, updated_at
`

// scanRule reads a rule row in selectRuleColumns order.
func scanRule(s scanner) (*approval.Rule, error) {
	var r approval.Rule

	var (
		maxAmount      sql.NullInt64
		approversJSON  []byte
		categoriesJSON []byte
		specificOn     bool
		specificID     *uuid.UUID
	)

	if err := s.Scan(
		&r.ID, &r.CompanyID, &r.Name, &r.Description, &r.MinAmount, &maxAmount, &approversJSON,
		&r.IsManagerApproverRequired, &r.IsSequential, &r.MinApprovalPercentage,
		&specificOn, &specificID, &categoriesJSON, &r.IsActive,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if maxAmount.Valid {
		r.MaxAmount = &maxAmount.Int64
	}

	if err := json.Unmarshal(approversJSON, &r.Approvers); err != nil {
		return nil, fmt.Errorf("decoding approvers: %w", err)
	}

	if len(categoriesJSON) > 0 {
		if err := json.Unmarshal(categoriesJSON, &r.Categories); err != nil {
			return nil, fmt.Errorf("decoding categories: %w", err)
		}
	}

	if specificOn || specificID != nil {
		r.SpecificApprover = &approval.SpecificApprover{Enabled: specificOn}
		if specificID != nil {
			r.SpecificApprover.ApproverID = *specificID
		}
	}

	return &r, nil
}

// ruleArgs returns the writable columns of a rule in insert order.
func ruleArgs(r *approval.Rule) ([]any, error) {
	approvers, err := json.Marshal(r.Approvers)
	if err != nil {
		return nil, fmt.Errorf("encoding approvers: %w", err)
	}

	categories := r.Categories
	if categories == nil {
		categories = []string{}
	}

	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return nil, fmt.Errorf("encoding categories: %w", err)
	}

	var (
		specificEnabled bool
		specificID      *uuid.UUID
	)

	if sa := r.SpecificApprover; sa != nil {
		specificEnabled = sa.Enabled
		if sa.ApproverID != uuid.Nil {
			specificID = &sa.ApproverID
		}
	}

	return []any{
		r.Name, r.Description, r.MinAmount, r.MaxAmount, approvers,
		r.IsManagerApproverRequired, r.IsSequential, r.MinApprovalPercentage,
		specificEnabled, specificID, categoriesJSON, r.IsActive,
	}, nil
}

func (s *Store) CreateRule(ctx context.Context, r *approval.Rule) error {
	args, err := ruleArgs(r)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO approval_rules (
			name, description, min_amount, max_amount, approvers,
			is_manager_approver_required, is_sequential, min_approval_percentage,
			specific_approver_enabled, specific_approver_id, categories, is_active,
			company_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	args = append(args, r.CompanyID)

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return fmt.Errorf("creating approval rule: %w", err)
	}

	return nil
}

func (s *Store) GetRule(ctx context.Context, companyID, id uuid.UUID) (*approval.Rule, error) {
	query := `SELECT ` + selectRuleColumns + `
		FROM approval_rules
		WHERE id = $1 AND company_id = $2`

	r, err := scanRule(s.db.QueryRowContext(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, approval.ErrNotFound
		}

		return nil, fmt.Errorf("getting approval rule: %w", err)
	}

	return r, nil
}

func (s *Store) UpdateRule(ctx context.Context, r *approval.Rule) error {
	args, err := ruleArgs(r)
	if err != nil {
		return err
	}

	query := `
		UPDATE approval_rules
		SET name = $1, description = $2, min_amount = $3, max_amount = $4, approvers = $5,
			is_manager_approver_required = $6, is_sequential = $7, min_approval_percentage = $8,
			specific_approver_enabled = $9, specific_approver_id = $10, categories = $11,
			is_active = $12, updated_at = NOW()
		WHERE id = $13 AND company_id = $14
		RETURNING updated_at
	`

	args = append(args, r.ID, r.CompanyID)

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return approval.ErrNotFound
		}

		return fmt.Errorf("updating approval rule: %w", err)
	}

	return nil
}

func (s *Store) ListRules(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]*approval.Rule, error) {
	query := `SELECT ` + selectRuleColumns + `
		FROM approval_rules
		WHERE company_id = $1`

	if activeOnly {
		query += " AND is_active"
	}

	query += " ORDER BY min_amount ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing approval rules: %w", err)
	}
	defer rows.Close()

	var rules []*approval.Rule

	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning approval rule: %w", err)
		}

		rules = append(rules, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating approval rules: %w", err)
	}

	return rules, nil
}

// DeactivateRule soft-deletes a rule so it stops matching new submissions.
func (s *Store) DeactivateRule(ctx context.Context, companyID, id uuid.UUID) error {
	query := `
		UPDATE approval_rules
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND company_id = $2
	`

	res, err := s.db.ExecContext(ctx, query, id, companyID)
	if err != nil {
		return fmt.Errorf("deactivating approval rule: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivating approval rule: %w", err)
	}

	if n == 0 {
		return approval.ErrNotFound
	}

	return nil
}
