package approval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=approval
type Repository interface {
	CreateRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, companyID, id uuid.UUID) (*Rule, error)
	UpdateRule(ctx context.Context, rule *Rule) error
	ListRules(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]*Rule, error)
	DeactivateRule(ctx context.Context, companyID, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Categories lists the expense categories a rule may be restricted to.
var Categories = []string{
	"Food", "Transportation", "Utilities", "Entertainment", "Healthcare",
	"Shopping", "Travel", "Education", "Other",
}

// RuleParams is the writable part of a rule. Approvers are given in order;
// their position becomes their approval order.
type RuleParams struct {
	Name                      string            `json:"name" validate:"required,max=120"`
	Description               string            `json:"description" validate:"max=500"`
	MinAmount                 int64             `json:"minAmount" validate:"gte=0"`
	MaxAmount                 *int64            `json:"maxAmount" validate:"omitempty,gte=0"`
	Approvers                 []uuid.UUID       `json:"approvers" validate:"min=1"`
	IsManagerApproverRequired *bool             `json:"isManagerApproverRequired"`
	IsSequential              bool              `json:"isSequential"`
	MinApprovalPercentage     *int              `json:"minApprovalPercentage" validate:"omitempty,min=1,max=100"`
	SpecificApprover          *SpecificApprover `json:"specificApprover"`
	Categories                []string          `json:"categories"`
	IsActive                  *bool             `json:"isActive"`
}

// ParamsFromRule returns params that reproduce rule. Decoding a partial
// payload over them yields a full update.
func ParamsFromRule(rule *Rule) RuleParams {
	approvers := make([]uuid.UUID, 0, len(rule.Approvers))
	for _, a := range rule.Approvers {
		approvers = append(approvers, a.UserID)
	}

	p := RuleParams{
		Name:                      rule.Name,
		Description:               rule.Description,
		MinAmount:                 rule.MinAmount,
		MaxAmount:                 rule.MaxAmount,
		Approvers:                 approvers,
		IsManagerApproverRequired: new(rule.IsManagerApproverRequired),
		IsSequential:              rule.IsSequential,
		MinApprovalPercentage:     new(rule.MinApprovalPercentage),
		Categories:                slices.Clone(rule.Categories),
		IsActive:                  new(rule.IsActive),
	}

	if rule.SpecificApprover != nil {
		p.SpecificApprover = new(*rule.SpecificApprover)
	}

	return p
}

func (p RuleParams) validate() error {
	if err := validation.Struct(p); err != nil {
		return err
	}

	if p.MaxAmount != nil && p.MinAmount > *p.MaxAmount {
		return validation.New("maxAmount", "must be greater than or equal to minAmount")
	}

	seen := make(map[uuid.UUID]struct{}, len(p.Approvers))

	for i, id := range p.Approvers {
		if id == uuid.Nil {
			return validation.New(fmt.Sprintf("approvers[%d]", i), "is required")
		}

		if _, dup := seen[id]; dup {
			return validation.New(fmt.Sprintf("approvers[%d]", i), "is listed more than once")
		}

		seen[id] = struct{}{}
	}

	if p.SpecificApprover != nil && p.SpecificApprover.Enabled && p.SpecificApprover.ApproverID == uuid.Nil {
		return validation.New("specificApprover.approverId", "is required when the specific approver is enabled")
	}

	for i, c := range p.Categories {
		if !slices.Contains(Categories, c) {
			return validation.New(fmt.Sprintf("categories[%d]", i), "is not a known category")
		}
	}

	return nil
}

// apply copies validated params onto rule, assigning approver orders by position.
func (p RuleParams) apply(rule *Rule) {
	rule.Name = p.Name
	rule.Description = p.Description
	rule.MinAmount = p.MinAmount
	rule.MaxAmount = p.MaxAmount
	rule.IsSequential = p.IsSequential
	rule.SpecificApprover = p.SpecificApprover
	rule.Categories = p.Categories

	rule.Approvers = make([]RuleApprover, len(p.Approvers))
	for i, id := range p.Approvers {
		rule.Approvers[i] = RuleApprover{UserID: id, Order: i + 1}
	}

	rule.IsManagerApproverRequired = true
	if p.IsManagerApproverRequired != nil {
		rule.IsManagerApproverRequired = *p.IsManagerApproverRequired
	}

	rule.MinApprovalPercentage = 100
	if p.MinApprovalPercentage != nil {
		rule.MinApprovalPercentage = *p.MinApprovalPercentage
	}

	if p.IsActive != nil {
		rule.IsActive = *p.IsActive
	}
}

func (s *Service) Create(ctx context.Context, companyID uuid.UUID, params RuleParams) (*Rule, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	rule := &Rule{CompanyID: companyID, IsActive: true}
	params.apply(rule)
	rule.IsActive = true

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.warnOverlaps(ctx, rule)

	return rule, nil
}

// Update replaces a rule's policy. Expenses already submitted keep the
// approval chain they were given.
func (s *Service) Update(ctx context.Context, companyID, id uuid.UUID, params RuleParams) (*Rule, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	rule, err := s.repo.GetRule(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	params.apply(rule)

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}

	s.warnOverlaps(ctx, rule)

	return rule, nil
}

func (s *Service) Deactivate(ctx context.Context, companyID, id uuid.UUID) error {
	return s.repo.DeactivateRule(ctx, companyID, id)
}

func (s *Service) Get(ctx context.Context, companyID, id uuid.UUID) (*Rule, error) {
	return s.repo.GetRule(ctx, companyID, id)
}

// List returns the company's active rules in matching order.
func (s *Service) List(ctx context.Context, companyID uuid.UUID) ([]*Rule, error) {
	return s.Active(ctx, companyID)
}

// Active returns the rules eligible for matching, sorted the way Match reads them.
func (s *Service) Active(ctx context.Context, companyID uuid.UUID) ([]*Rule, error) {
	rules, err := s.repo.ListRules(ctx, companyID, true)
	if err != nil {
		return nil, err
	}

	SortRules(rules)

	return rules, nil
}

func (s *Service) warnOverlaps(ctx context.Context, rule *Rule) {
	if !rule.IsActive {
		return
	}

	rules, err := s.repo.ListRules(ctx, rule.CompanyID, true)
	if err != nil {
		slog.Warn("failed to check approval rule overlaps", "rule_id", rule.ID, "error", err)
		return
	}

	for _, o := range Overlaps(rules) {
		var other *Rule

		switch rule.ID {
		case o.First.ID:
			other = o.Second
		case o.Second.ID:
			other = o.First
		default:
			continue
		}

		slog.Warn("approval rule overlaps another active rule",
			"rule_id", rule.ID,
			"other_rule_id", other.ID,
			"winner_rule_id", o.First.ID,
		)
	}
}
