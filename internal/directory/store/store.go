package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/outlay/internal/directory"
)

// Store reads users and companies. Both are provisioned outside this service.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetUser(ctx context.Context, companyID, id uuid.UUID) (*directory.User, error) {
	query := `
		SELECT id, company_id, name, email, role, manager_id, is_active, created_at
		FROM users
		WHERE id = $1 AND company_id = $2
	`

	var (
		u    directory.User
		role string
	)

	err := s.db.QueryRowContext(ctx, query, id, companyID).Scan(
		&u.ID, &u.CompanyID, &u.Name, &u.Email, &role, &u.ManagerID, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrUserNotFound
		}

		return nil, fmt.Errorf("getting user: %w", err)
	}

	u.Role = directory.Role(role)

	return &u, nil
}

func (s *Store) GetCompany(ctx context.Context, id uuid.UUID) (*directory.Company, error) {
	query := `
		SELECT id, name, country, currency, currency_symbol, created_at
		FROM companies
		WHERE id = $1
	`

	var c directory.Company

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Country, &c.Currency, &c.CurrencySymbol, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrCompanyNotFound
		}

		return nil, fmt.Errorf("getting company: %w", err)
	}

	return &c, nil
}
