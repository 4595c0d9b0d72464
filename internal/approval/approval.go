package approval

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an expense as driven by the approval workflow.
type Status string

const (
	StatusDraft           Status = "Draft"
	StatusSubmitted       Status = "Submitted"
	StatusWaitingApproval Status = "Waiting Approval"
	StatusApproved        Status = "Approved"
	StatusRejected        Status = "Rejected"
)

// Pending reports whether approvers may still act on an expense in this status.
func (s Status) Pending() bool {
	return s == StatusSubmitted || s == StatusWaitingApproval
}

// StepStatus is the state of a single approver's step.
type StepStatus string

const (
	StepPending  StepStatus = "Pending"
	StepApproved StepStatus = "Approved"
	StepRejected StepStatus = "Rejected"
)

// Step is one approver's slot in an expense's approval chain.
type Step struct {
	ApproverID uuid.UUID
	Order      int
	Status     StepStatus
	Comment    string
	ActedAt    *time.Time
}

// Rule is a company-scoped approval policy.
type Rule struct {
	ID                        uuid.UUID
	CompanyID                 uuid.UUID
	Name                      string
	Description               string
	MinAmount                 int64  // Minor units of the company currency
	MaxAmount                 *int64 // nil means unbounded
	Approvers                 []RuleApprover
	IsManagerApproverRequired bool
	IsSequential              bool
	MinApprovalPercentage     int
	SpecificApprover          *SpecificApprover
	Categories                []string // Empty matches every category
	IsActive                  bool
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// RuleApprover is an approver listed on a rule. Order is 1-based.
type RuleApprover struct {
	UserID uuid.UUID `json:"userId"`
	Order  int       `json:"order"`
}

// SpecificApprover names a user whose single approval approves the whole expense.
type SpecificApprover struct {
	Enabled    bool      `json:"enabled"`
	ApproverID uuid.UUID `json:"approverId"`
}

// Admits reports whether the rule's amount range and categories cover the given expense.
func (r *Rule) Admits(amount int64, category string) bool {
	if amount < r.MinAmount {
		return false
	}

	if r.MaxAmount != nil && amount > *r.MaxAmount {
		return false
	}

	return len(r.Categories) == 0 || slices.Contains(r.Categories, category)
}

func (r *Rule) isSpecificApprover(id uuid.UUID) bool {
	if r == nil || r.SpecificApprover == nil || !r.SpecificApprover.Enabled {
		return false
	}

	return r.SpecificApprover.ApproverID != uuid.Nil && r.SpecificApprover.ApproverID == id
}

func (r *Rule) sequential() bool {
	return r != nil && r.IsSequential
}

// threshold returns the approval percentage required under parallel evaluation.
// Without a rule every approver must agree.
func (r *Rule) threshold() int {
	if r == nil || r.MinApprovalPercentage <= 0 {
		return 100
	}

	return r.MinApprovalPercentage
}
