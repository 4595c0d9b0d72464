package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/outlay/internal/expense"
	"github.com/MrJamesThe3rd/outlay/internal/matching"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindMatch(ctx context.Context, companyID uuid.UUID, rawDescription string) (*matching.Suggestion, error) {
	query := `
		SELECT preferred_description, category
		FROM merchant_mappings
		WHERE company_id = $1 AND $2 ILIKE '%' || raw_pattern || '%'
		ORDER BY LENGTH(raw_pattern) DESC, created_at DESC
		LIMIT 1
	`

	var (
		sg       matching.Suggestion
		category sql.NullString
	)

	err := s.db.QueryRowContext(ctx, query, companyID, rawDescription).Scan(&sg.Description, &category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("finding match: %w", err)
	}

	if category.Valid {
		sg.Category = new(expense.Category(category.String))
	}

	return &sg, nil
}

func (s *Store) CreateMapping(ctx context.Context, m *matching.Mapping) error {
	query := `
		INSERT INTO merchant_mappings (company_id, raw_pattern, preferred_description, category, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	var category sql.NullString
	if m.Category != nil {
		category = sql.NullString{String: string(*m.Category), Valid: true}
	}

	err := s.db.QueryRowContext(ctx, query, m.CompanyID, m.Pattern, m.Description, category).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating mapping: %w", err)
	}

	return nil
}

func (s *Store) ListMappings(ctx context.Context, companyID uuid.UUID) ([]*matching.Mapping, error) {
	query := `
		SELECT id, company_id, raw_pattern, preferred_description, category, created_at
		FROM merchant_mappings
		WHERE company_id = $1
		ORDER BY raw_pattern
	`

	rows, err := s.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*matching.Mapping

	for rows.Next() {
		var (
			m        matching.Mapping
			category sql.NullString
		)

		if err := rows.Scan(&m.ID, &m.CompanyID, &m.Pattern, &m.Description, &category, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}

		if category.Valid {
			m.Category = new(expense.Category(category.String))
		}

		mappings = append(mappings, &m)
	}

	return mappings, rows.Err()
}
