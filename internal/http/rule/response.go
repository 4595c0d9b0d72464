package rule

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/http/respond"
)

type ruleResponse struct {
	ID                        uuid.UUID                  `json:"id"`
	Name                      string                     `json:"name"`
	Description               string                     `json:"description,omitempty"`
	MinAmount                 decimal.Decimal            `json:"minAmount"`
	MaxAmount                 *decimal.Decimal           `json:"maxAmount"`
	Approvers                 []approval.RuleApprover    `json:"approvers"`
	IsManagerApproverRequired bool                       `json:"isManagerApproverRequired"`
	IsSequential              bool                       `json:"isSequential"`
	MinApprovalPercentage     int                        `json:"minApprovalPercentage"`
	SpecificApprover          *approval.SpecificApprover `json:"specificApprover,omitempty"`
	Categories                []string                   `json:"categories"`
	IsActive                  bool                       `json:"isActive"`
	CreatedAt                 time.Time                  `json:"createdAt"`
	UpdatedAt                 time.Time                  `json:"updatedAt"`
}

func toResponse(r *approval.Rule) ruleResponse {
	resp := ruleResponse{
		ID:                        r.ID,
		Name:                      r.Name,
		Description:               r.Description,
		MinAmount:                 respond.FromMinor(r.MinAmount),
		Approvers:                 r.Approvers,
		IsManagerApproverRequired: r.IsManagerApproverRequired,
		IsSequential:              r.IsSequential,
		MinApprovalPercentage:     r.MinApprovalPercentage,
		SpecificApprover:          r.SpecificApprover,
		Categories:                r.Categories,
		IsActive:                  r.IsActive,
		CreatedAt:                 r.CreatedAt,
		UpdatedAt:                 r.UpdatedAt,
	}

	if r.MaxAmount != nil {
		resp.MaxAmount = new(respond.FromMinor(*r.MaxAmount))
	}

	if resp.Approvers == nil {
		resp.Approvers = []approval.RuleApprover{}
	}

	if resp.Categories == nil {
		resp.Categories = []string{}
	}

	return resp
}

func toResponseList(rules []*approval.Rule) []ruleResponse {
	resp := make([]ruleResponse, len(rules))
	for i, r := range rules {
		resp[i] = toResponse(r)
	}

	return resp
}
