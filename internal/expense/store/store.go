package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
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

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const selectExpenseColumns = `
	e.id, e.user_id, e.company_id, e.amount, e.currency, e.converted_amount,
	e.company_currency, e.exchange_rate, e.converted_at, e.category, e.description,
	e.date, e.payment_method, e.receipt_url, e.tags, e.status,
	e.is_manager_approver_required, e.submitted_at, e.approved_at, e.rejected_at,
	e.version, e.created_at, e.updated_at
`

// scanExpense reads an expense row in selectExpenseColumns order. Approvals are loaded separately.
func scanExpense(s scanner) (*expense.Expense, error) {
	var e expense.Expense

	var (
		category, paymentMethod, status string
		convertedAmount                 sql.NullInt64
		companyCurrency, receiptURL     sql.NullString
		exchangeRate                    decimal.NullDecimal
		tagsJSON                        []byte
	)

	if err := s.Scan(
		&e.ID, &e.UserID, &e.CompanyID, &e.Amount, &e.Currency, &convertedAmount,
		&companyCurrency, &exchangeRate, &e.ConvertedAt, &category, &e.Description,
		&e.Date, &paymentMethod, &receiptURL, &tagsJSON, &status,
		&e.IsManagerApproverRequired, &e.SubmittedAt, &e.ApprovedAt, &e.RejectedAt,
		&e.Version, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.Category = expense.Category(category)
	e.PaymentMethod = expense.PaymentMethod(paymentMethod)
	e.Status = approval.Status(status)
	e.CompanyCurrency = companyCurrency.String
	e.ReceiptURL = receiptURL.String

	if convertedAmount.Valid {
		e.ConvertedAmount = &convertedAmount.Int64
	}

	if exchangeRate.Valid {
		e.ExchangeRate = exchangeRate.Decimal
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &e.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
	}

	return &e, nil
}

func encodeTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}

	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encoding tags: %w", err)
	}

	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) CreateExpense(ctx context.Context, e *expense.Expense) error {
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO expenses (
			user_id, company_id, amount, currency, category, description, date,
			payment_method, receipt_url, tags, status, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, NOW(), NOW())
		RETURNING id, version, created_at, updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		e.UserID,
		e.CompanyID,
		e.Amount,
		e.Currency,
		e.Category,
		e.Description,
		e.Date,
		e.PaymentMethod,
		nullString(e.ReceiptURL),
		tags,
		e.Status,
	).Scan(&e.ID, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating expense: %w", err)
	}

	return nil
}

func (s *Store) GetExpense(ctx context.Context, companyID, id uuid.UUID) (*expense.Expense, error) {
	query := `SELECT ` + selectExpenseColumns + `
		FROM expenses e
		WHERE e.id = $1 AND e.company_id = $2`

	e, err := scanExpense(s.db.QueryRowContext(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, expense.ErrNotFound
		}

		return nil, fmt.Errorf("getting expense: %w", err)
	}

	if err := loadApprovals(ctx, s.db, []*expense.Expense{e}); err != nil {
		return nil, err
	}

	return e, nil
}

func (s *Store) ListExpenses(ctx context.Context, filter expense.ListFilter) ([]*expense.Expense, error) {
	query := `SELECT ` + selectExpenseColumns + `
		FROM expenses e
		WHERE e.company_id = $1`

	args := []any{filter.CompanyID}

	argIdx := 2

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND e.user_id = $%d", argIdx)

		args = append(args, *filter.UserID)
		argIdx++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND e.status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.Category != nil {
		query += fmt.Sprintf(" AND e.category = $%d", argIdx)

		args = append(args, *filter.Category)
		argIdx++
	}

	if filter.From != nil {
		query += fmt.Sprintf(" AND e.date >= $%d", argIdx)

		args = append(args, *filter.From)
		argIdx++
	}

	if filter.To != nil {
		query += fmt.Sprintf(" AND e.date <= $%d", argIdx)

		args = append(args, *filter.To)
		argIdx++
	}

	query += " ORDER BY e.date DESC, e.created_at DESC"

	return s.queryExpenses(ctx, query, args...)
}

// ListPendingFor returns pending expenses in which approverID still holds a pending step.
func (s *Store) ListPendingFor(ctx context.Context, companyID, approverID uuid.UUID) ([]*expense.Expense, error) {
	query := `SELECT ` + selectExpenseColumns + `
		FROM expenses e
		WHERE e.company_id = $1
			AND e.status IN ($2, $3)
			AND EXISTS (
				SELECT 1 FROM expense_approvals a
				WHERE a.expense_id = e.id AND a.approver_id = $4 AND a.status = $5
			)
		ORDER BY e.submitted_at ASC`

	return s.queryExpenses(ctx, query,
		companyID,
		approval.StatusSubmitted,
		approval.StatusWaitingApproval,
		approverID,
		approval.StepPending,
	)
}

func (s *Store) queryExpenses(ctx context.Context, query string, args ...any) ([]*expense.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	defer rows.Close()

	var out []*expense.Expense

	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}

		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expense rows: %w", err)
	}

	if err := loadApprovals(ctx, s.db, out); err != nil {
		return nil, err
	}

	return out, nil
}

// loadApprovals fills the approval chain of each expense in a single query.
func loadApprovals(ctx context.Context, q queryer, expenses []*expense.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	ids := make([]string, len(expenses))
	byID := make(map[uuid.UUID]*expense.Expense, len(expenses))

	for i, e := range expenses {
		ids[i] = e.ID.String()
		byID[e.ID] = e
	}

	query := `
		SELECT expense_id, approver_id, step_order, status, comment, acted_at
		FROM expense_approvals
		WHERE expense_id = ANY($1::uuid[])
		ORDER BY expense_id, step_order ASC
	`

	rows, err := q.QueryContext(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("loading approvals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			expenseID uuid.UUID
			step      approval.Step
			status    string
			comment   sql.NullString
		)

		if err := rows.Scan(&expenseID, &step.ApproverID, &step.Order, &status, &comment, &step.ActedAt); err != nil {
			return fmt.Errorf("scanning approval: %w", err)
		}

		step.Status = approval.StepStatus(status)
		step.Comment = comment.String

		if e, ok := byID[expenseID]; ok {
			e.Approvals = append(e.Approvals, step)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating approval rows: %w", err)
	}

	return nil
}

// UpdateDraft writes the editable fields of a draft if its version is unchanged.
func (s *Store) UpdateDraft(ctx context.Context, e *expense.Expense) error {
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return err
	}

	query := `
		UPDATE expenses
		SET amount = $1, currency = $2, category = $3, description = $4, date = $5,
			payment_method = $6, receipt_url = $7, tags = $8,
			version = version + 1, updated_at = NOW()
		WHERE id = $9 AND company_id = $10 AND version = $11 AND status = $12
		RETURNING version, updated_at
	`

	err = s.db.QueryRowContext(ctx, query,
		e.Amount,
		e.Currency,
		e.Category,
		e.Description,
		e.Date,
		e.PaymentMethod,
		nullString(e.ReceiptURL),
		tags,
		e.ID,
		e.CompanyID,
		e.Version,
		approval.StatusDraft,
	).Scan(&e.Version, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return expense.ErrConflict
		}

		return fmt.Errorf("updating expense: %w", err)
	}

	return nil
}

func (s *Store) DeleteDraft(ctx context.Context, companyID, id uuid.UUID) error {
	query := `
		DELETE FROM expenses
		WHERE id = $1 AND company_id = $2 AND status = $3
	`

	res, err := s.db.ExecContext(ctx, query, id, companyID, approval.StatusDraft)
	if err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}

	if n == 0 {
		return expense.ErrNotFound
	}

	return nil
}

// SaveWorkflow writes the workflow fields and approval chain of an expense in
// one transaction. A version mismatch rolls everything back with ErrConflict.
func (s *Store) SaveWorkflow(ctx context.Context, e *expense.Expense) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	var exchangeRate decimal.NullDecimal
	if e.ConvertedAmount != nil {
		exchangeRate = decimal.NewNullDecimal(e.ExchangeRate)
	}

	query := `
		UPDATE expenses
		SET status = $1, converted_amount = $2, company_currency = $3, exchange_rate = $4,
			converted_at = $5, is_manager_approver_required = $6, submitted_at = $7,
			approved_at = $8, rejected_at = $9, version = version + 1, updated_at = NOW()
		WHERE id = $10 AND company_id = $11 AND version = $12
		RETURNING version, updated_at
	`

	err = dbTx.QueryRowContext(ctx, query,
		e.Status,
		e.ConvertedAmount,
		nullString(e.CompanyCurrency),
		exchangeRate,
		e.ConvertedAt,
		e.IsManagerApproverRequired,
		e.SubmittedAt,
		e.ApprovedAt,
		e.RejectedAt,
		e.ID,
		e.CompanyID,
		e.Version,
	).Scan(&e.Version, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return expense.ErrConflict
		}

		return fmt.Errorf("updating expense workflow: %w", err)
	}

	stepQuery := `
		INSERT INTO expense_approvals (expense_id, approver_id, step_order, status, comment, acted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (expense_id, step_order) DO UPDATE
		SET status = EXCLUDED.status, comment = EXCLUDED.comment, acted_at = EXCLUDED.acted_at
	`

	for _, step := range e.Approvals {
		if _, err := dbTx.ExecContext(ctx, stepQuery,
			e.ID,
			step.ApproverID,
			step.Order,
			step.Status,
			nullString(step.Comment),
			step.ActedAt,
		); err != nil {
			return fmt.Errorf("saving approval step %d: %w", step.Order, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
