package expense

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/currency"
	"github.com/MrJamesThe3rd/outlay/internal/directory"
	"github.com/MrJamesThe3rd/outlay/internal/notify"
	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

// Repository persists expenses. UpdateDraft and SaveWorkflow compare e.Version
// with the stored row, bump it on success and return ErrConflict on mismatch.
//
//go:generate mockgen -source=service.go -destination=repository_mock.go -package=expense
type Repository interface {
	CreateExpense(ctx context.Context, e *Expense) error
	GetExpense(ctx context.Context, companyID, id uuid.UUID) (*Expense, error)
	ListExpenses(ctx context.Context, filter ListFilter) ([]*Expense, error)
	UpdateDraft(ctx context.Context, e *Expense) error
	DeleteDraft(ctx context.Context, companyID, id uuid.UUID) error

	// SaveWorkflow writes status, conversion snapshot and approval steps atomically.
	SaveWorkflow(ctx context.Context, e *Expense) error
	ListPendingFor(ctx context.Context, companyID, approverID uuid.UUID) ([]*Expense, error)
}

type RuleSource interface {
	Active(ctx context.Context, companyID uuid.UUID) ([]*approval.Rule, error)
}

type Directory interface {
	GetUser(ctx context.Context, companyID, id uuid.UUID) (*directory.User, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*directory.Company, error)
}

type Converter interface {
	Convert(ctx context.Context, amount int64, from, to string) (currency.Conversion, error)
}

type Publisher interface {
	Publish(ctx context.Context, e notify.Event)
}

type Service struct {
	repo      Repository
	rules     RuleSource
	directory Directory
	converter Converter
	events    Publisher
	now       func() time.Time
}

func NewService(repo Repository, rules RuleSource, dir Directory, conv Converter, events Publisher) *Service {
	return &Service{
		repo:      repo,
		rules:     rules,
		directory: dir,
		converter: conv,
		events:    events,
		now:       time.Now,
	}
}

type CreateParams struct {
	UserID        uuid.UUID     `json:"-"`
	CompanyID     uuid.UUID     `json:"-"`
	Amount        int64         `json:"amount" validate:"gt=0"`
	Currency      string        `json:"currency" validate:"omitempty,len=3,alpha"`
	Category      Category      `json:"category"`
	Description   string        `json:"description" validate:"required,max=500"`
	Date          time.Time     `json:"date"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	ReceiptURL    string        `json:"receiptUrl" validate:"omitempty,url,max=2048"`
	Tags          []string      `json:"tags" validate:"max=20,dive,max=50"`
}

func (p *CreateParams) normalize() {
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.Description = strings.TrimSpace(p.Description)

	if p.Category == "" {
		p.Category = CategoryOther
	}

	if p.PaymentMethod == "" {
		p.PaymentMethod = PaymentOther
	}
}

func (p CreateParams) validate() error {
	if err := validation.Struct(p); err != nil {
		return err
	}

	if p.Date.IsZero() {
		return validation.New("date", "is required")
	}

	if !p.Category.Valid() {
		return validation.New("category", "is not a known category")
	}

	if !p.PaymentMethod.Valid() {
		return validation.New("paymentMethod", "is not a supported payment method")
	}

	return nil
}

// UpdateParams changes a draft. Nil fields are left as they are.
type UpdateParams struct {
	Amount        *int64         `json:"amount" validate:"omitempty,gt=0"`
	Currency      *string        `json:"currency" validate:"omitempty,len=3,alpha"`
	Category      *Category      `json:"category"`
	Description   *string        `json:"description" validate:"omitempty,max=500"`
	Date          *time.Time     `json:"date"`
	PaymentMethod *PaymentMethod `json:"paymentMethod"`
	ReceiptURL    *string        `json:"receiptUrl" validate:"omitempty,max=2048"`
	Tags          []string       `json:"tags" validate:"max=20,dive,max=50"`
}

func (p UpdateParams) validate() error {
	if err := validation.Struct(p); err != nil {
		return err
	}

	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return validation.New("description", "is required")
	}

	if p.Date != nil && p.Date.IsZero() {
		return validation.New("date", "is required")
	}

	if p.Category != nil && !p.Category.Valid() {
		return validation.New("category", "is not a known category")
	}

	if p.PaymentMethod != nil && !p.PaymentMethod.Valid() {
		return validation.New("paymentMethod", "is not a supported payment method")
	}

	return nil
}

type ListFilter struct {
	CompanyID uuid.UUID
	UserID    *uuid.UUID
	Status    *approval.Status
	Category  *Category
	From      *time.Time
	To        *time.Time
}

// Outcome is the result of an approver's action.
type Outcome struct {
	Expense  *Expense
	Decision approval.Decision
}

// Create stores a new draft. An empty currency defaults to the company's.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Expense, error) {
	params.normalize()

	if err := params.validate(); err != nil {
		return nil, err
	}

	if params.Currency == "" {
		company, err := s.directory.GetCompany(ctx, params.CompanyID)
		if err != nil {
			return nil, fmt.Errorf("loading company: %w", err)
		}

		params.Currency = company.Currency
	}

	e := &Expense{
		UserID:        params.UserID,
		CompanyID:     params.CompanyID,
		Amount:        params.Amount,
		Currency:      params.Currency,
		Category:      params.Category,
		Description:   params.Description,
		Date:          params.Date,
		PaymentMethod: params.PaymentMethod,
		ReceiptURL:    params.ReceiptURL,
		Tags:          params.Tags,
		Status:        approval.StatusDraft,
	}
	if err := s.repo.CreateExpense(ctx, e); err != nil {
		return nil, err
	}

	return e, nil
}

func (s *Service) Get(ctx context.Context, companyID, id uuid.UUID) (*Expense, error) {
	return s.repo.GetExpense(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Expense, error) {
	return s.repo.ListExpenses(ctx, filter)
}

// ownedDraft loads an expense the user may still edit.
func (s *Service) ownedDraft(ctx context.Context, companyID, userID, id uuid.UUID) (*Expense, error) {
	e, err := s.repo.GetExpense(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	if e.UserID != userID {
		return nil, ErrNotFound
	}

	if e.Status != approval.StatusDraft {
		return nil, fmt.Errorf("%w: expense is %s", ErrInvalidState, e.Status)
	}

	return e, nil
}

func (s *Service) Update(ctx context.Context, companyID, userID, id uuid.UUID, params UpdateParams) (*Expense, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	e, err := s.ownedDraft(ctx, companyID, userID, id)
	if err != nil {
		return nil, err
	}

	if params.Amount != nil {
		e.Amount = *params.Amount
	}

	if params.Currency != nil {
		e.Currency = strings.ToUpper(strings.TrimSpace(*params.Currency))
	}

	if params.Category != nil {
		e.Category = *params.Category
	}

	if params.Description != nil {
		e.Description = strings.TrimSpace(*params.Description)
	}

	if params.Date != nil {
		e.Date = *params.Date
	}

	if params.PaymentMethod != nil {
		e.PaymentMethod = *params.PaymentMethod
	}

	if params.ReceiptURL != nil {
		e.ReceiptURL = *params.ReceiptURL
	}

	if params.Tags != nil {
		e.Tags = params.Tags
	}

	if err := s.repo.UpdateDraft(ctx, e); err != nil {
		return nil, err
	}

	return e, nil
}

func (s *Service) Delete(ctx context.Context, companyID, userID, id uuid.UUID) error {
	if _, err := s.ownedDraft(ctx, companyID, userID, id); err != nil {
		return err
	}

	return s.repo.DeleteDraft(ctx, companyID, id)
}

// Submit converts a draft into the company currency, matches it to a rule,
// builds its approval chain and moves it to Submitted.
func (s *Service) Submit(ctx context.Context, companyID, userID, id uuid.UUID) (*Expense, error) {
	e, err := s.ownedDraft(ctx, companyID, userID, id)
	if err != nil {
		return nil, err
	}

	var (
		company   *directory.Company
		submitter *directory.User
		rules     []*approval.Rule
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c, err := s.directory.GetCompany(gctx, companyID)
		if err != nil {
			return fmt.Errorf("loading company: %w", err)
		}

		company = c

		return nil
	})

	g.Go(func() error {
		u, err := s.directory.GetUser(gctx, companyID, userID)
		if err != nil {
			return fmt.Errorf("loading submitter: %w", err)
		}

		submitter = u

		return nil
	})

	g.Go(func() error {
		r, err := s.rules.Active(gctx, companyID)
		if err != nil {
			return fmt.Errorf("loading approval rules: %w", err)
		}

		rules = r

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	conv, err := s.converter.Convert(ctx, e.Amount, e.Currency, company.Currency)
	if err != nil {
		return nil, fmt.Errorf("converting amount: %w", err)
	}

	rule := approval.Match(rules, conv.Amount, string(e.Category))

	steps, managerRequired, err := approval.BuildSteps(rule, submitter.ManagerID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	e.ConvertedAmount = &conv.Amount
	e.CompanyCurrency = company.Currency
	e.ExchangeRate = conv.Rate
	e.ConvertedAt = &now
	e.Approvals = steps
	e.IsManagerApproverRequired = managerRequired
	e.Status = approval.StatusSubmitted
	e.SubmittedAt = &now

	if err := s.repo.SaveWorkflow(ctx, e); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "expense submitted",
		"expense_id", e.ID,
		"rule_id", ruleID(rule),
		"approvers", len(steps),
	)

	s.events.Publish(ctx, s.event(notify.EventSubmitted, e, userID, "",
		approval.CurrentApprovers(steps, isSequential(rule))))

	return e, nil
}

func (s *Service) Approve(ctx context.Context, companyID, expenseID, approverID uuid.UUID, comment string) (*Outcome, error) {
	return s.act(ctx, companyID, expenseID, approverID, comment, approval.Approve)
}

// Reject requires a comment. A single rejection rejects the expense.
func (s *Service) Reject(ctx context.Context, companyID, expenseID, approverID uuid.UUID, comment string) (*Outcome, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, validation.New("comment", "is required when rejecting")
	}

	return s.act(ctx, companyID, expenseID, approverID, comment, approval.Reject)
}

type decideFunc func(approval.Status, []approval.Step, *approval.Rule, uuid.UUID, string, time.Time) (approval.Decision, error)

func (s *Service) act(ctx context.Context, companyID, expenseID, actorID uuid.UUID, comment string, decide decideFunc) (*Outcome, error) {
	e, err := s.repo.GetExpense(ctx, companyID, expenseID)
	if err != nil {
		return nil, err
	}

	if !e.Status.Pending() {
		return nil, fmt.Errorf("%w: expense is %s", ErrInvalidState, e.Status)
	}

	rules, err := s.rules.Active(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("loading approval rules: %w", err)
	}

	rule := approval.Match(rules, e.ApprovalAmount(), string(e.Category))

	d, err := decide(e.Status, e.Approvals, rule, actorID, comment, s.now())
	if err != nil {
		return nil, err
	}

	e.Status = d.Status
	e.Approvals = d.Steps

	if d.ApprovedAt != nil {
		e.ApprovedAt = d.ApprovedAt
	}

	if d.RejectedAt != nil {
		e.RejectedAt = d.RejectedAt
	}

	if err := s.repo.SaveWorkflow(ctx, e); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "expense approval step recorded",
		"expense_id", e.ID,
		"approver_id", actorID,
		"step", d.Step.Status,
		"status", e.Status,
		"resolution", d.Resolution,
	)

	s.announce(ctx, e, rule, actorID, d)

	return &Outcome{Expense: e, Decision: d}, nil
}

func (s *Service) announce(ctx context.Context, e *Expense, rule *approval.Rule, actorID uuid.UUID, d approval.Decision) {
	switch d.Status {
	case approval.StatusApproved:
		s.events.Publish(ctx, s.event(notify.EventApproved, e, actorID, d.Step.Comment, []uuid.UUID{e.UserID}))
	case approval.StatusRejected:
		s.events.Publish(ctx, s.event(notify.EventRejected, e, actorID, d.Step.Comment, []uuid.UUID{e.UserID}))
	default:
		// Parallel approvers were all notified on submission.
		if !isSequential(rule) {
			return
		}

		s.events.Publish(ctx, s.event(notify.EventApprovalRequired, e, actorID, "",
			approval.CurrentApprovers(d.Steps, true)))
	}
}

func (s *Service) event(t notify.EventType, e *Expense, actorID uuid.UUID, comment string, recipients []uuid.UUID) notify.Event {
	return notify.Event{
		Type:       t,
		CompanyID:  e.CompanyID,
		ExpenseID:  e.ID,
		ActorID:    actorID,
		Recipients: recipients,
		Status:     string(e.Status),
		Amount:     e.Amount,
		Currency:   e.Currency,
		Comment:    comment,
		OccurredAt: s.now(),
	}
}

// PendingFor returns the pending expenses in which approverID still holds a
// pending step.
func (s *Service) PendingFor(ctx context.Context, companyID, approverID uuid.UUID) ([]*Expense, error) {
	return s.repo.ListPendingFor(ctx, companyID, approverID)
}

func isSequential(rule *approval.Rule) bool {
	return rule != nil && rule.IsSequential
}

func ruleID(rule *approval.Rule) string {
	if rule == nil {
		return "none"
	}

	return rule.ID.String()
}
