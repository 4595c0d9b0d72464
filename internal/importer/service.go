package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/outlay/internal/expense"
	"github.com/MrJamesThe3rd/outlay/internal/matching"
	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

// ErrInvalidFile wraps every failure to read the uploaded statement.
var ErrInvalidFile = errors.New("invalid import file")

type Creator interface {
	Create(ctx context.Context, params expense.CreateParams) (*expense.Expense, error)
}

// Suggester proposes a cleaner description and category for a raw statement line.
type Suggester interface {
	Suggest(ctx context.Context, companyID uuid.UUID, rawDescription string) (*matching.Suggestion, error)
}

type Service struct {
	expenses  Creator
	suggester Suggester
}

// NewService builds an importer. suggester may be nil.
func NewService(expenses Creator, suggester Suggester) *Service {
	return &Service{expenses: expenses, suggester: suggester}
}

type Result struct {
	Profile  string
	Charset  string
	Imported []*expense.Expense
	Skipped  []RowError
}

// Import parses a statement and stores each row as a draft owned by userID.
// Rows that fail validation are reported in Skipped; any other failure stops
// the import, leaving earlier rows in place.
func (s *Service) Import(ctx context.Context, companyID, userID uuid.UUID, r io.Reader) (*Result, error) {
	parsed, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	res := &Result{
		Profile: parsed.Profile,
		Charset: parsed.Charset,
		Skipped: parsed.Skipped,
	}

	for _, row := range parsed.Rows {
		params := row.Params
		params.UserID = userID
		params.CompanyID = companyID

		s.applySuggestion(ctx, &params)

		e, err := s.expenses.Create(ctx, params)
		if errors.Is(err, validation.ErrValidation) {
			res.Skipped = append(res.Skipped, RowError{Line: row.Line, Err: err})
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("importing line %d: %w", row.Line, err)
		}

		res.Imported = append(res.Imported, e)
	}

	slog.InfoContext(ctx, "expenses imported",
		"user_id", userID,
		"profile", res.Profile,
		"charset", res.Charset,
		"imported", len(res.Imported),
		"skipped", len(res.Skipped),
	)

	return res, nil
}

func (s *Service) applySuggestion(ctx context.Context, params *expense.CreateParams) {
	if s.suggester == nil {
		return
	}

	sg, err := s.suggester.Suggest(ctx, params.CompanyID, params.Description)
	if err != nil {
		slog.WarnContext(ctx, "failed to suggest description", "error", err)
		return
	}

	if sg == nil {
		return
	}

	if sg.Description != "" {
		params.Description = sg.Description
	}

	if sg.Category != nil && params.Category == "" {
		params.Category = *sg.Category
	}
}
