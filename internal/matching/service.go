package matching

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/outlay/internal/expense"
	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

// Mapping rewrites statement descriptions containing Pattern. Matching is
// case-insensitive and the longest pattern wins.
type Mapping struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	Pattern     string
	Description string
	Category    *expense.Category
	CreatedAt   time.Time
}

// Suggestion is what a mapping proposes for a raw description.
type Suggestion struct {
	Description string
	Category    *expense.Category
}

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=matching
type Repository interface {
	// FindMatch returns nil when no mapping applies.
	FindMatch(ctx context.Context, companyID uuid.UUID, rawDescription string) (*Suggestion, error)
	CreateMapping(ctx context.Context, m *Mapping) error
	ListMappings(ctx context.Context, companyID uuid.UUID) ([]*Mapping, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest looks up a mapping for rawDescription. It returns nil when there is none.
func (s *Service) Suggest(ctx context.Context, companyID uuid.UUID, rawDescription string) (*Suggestion, error) {
	if strings.TrimSpace(rawDescription) == "" {
		return nil, nil
	}

	return s.repo.FindMatch(ctx, companyID, rawDescription)
}

type LearnParams struct {
	Pattern     string            `json:"pattern" validate:"required,min=3,max=200"`
	Description string            `json:"description" validate:"required,max=500"`
	Category    *expense.Category `json:"category"`
}

// Learn remembers a pattern so later imports get the preferred description.
func (s *Service) Learn(ctx context.Context, companyID uuid.UUID, params LearnParams) (*Mapping, error) {
	params.Pattern = strings.TrimSpace(params.Pattern)
	params.Description = strings.TrimSpace(params.Description)

	if err := validation.Struct(params); err != nil {
		return nil, err
	}

	if params.Category != nil && !params.Category.Valid() {
		return nil, validation.New("category", "is not a known category")
	}

	m := &Mapping{
		CompanyID:   companyID,
		Pattern:     params.Pattern,
		Description: params.Description,
		Category:    params.Category,
	}
	if err := s.repo.CreateMapping(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *Service) List(ctx context.Context, companyID uuid.UUID) ([]*Mapping, error) {
	return s.repo.ListMappings(ctx, companyID)
}
