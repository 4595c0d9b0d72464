package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
	"github.com/MrJamesThe3rd/outlay/internal/http/respond"
)

type Response struct {
	ID                        uuid.UUID              `json:"id"`
	UserID                    uuid.UUID              `json:"userId"`
	Amount                    decimal.Decimal        `json:"amount"`
	Currency                  string                 `json:"currency"`
	ConvertedAmount           *decimal.Decimal       `json:"convertedAmount,omitempty"`
	CompanyCurrency           string                 `json:"companyCurrency,omitempty"`
	ExchangeRate              *decimal.Decimal       `json:"exchangeRate,omitempty"`
	Category                  expense.Category       `json:"category"`
	Description               string                 `json:"description"`
	Date                      string                 `json:"date"`
	PaymentMethod             expense.PaymentMethod  `json:"paymentMethod"`
	ReceiptURL                string                 `json:"receiptUrl,omitempty"`
	Tags                      []string               `json:"tags"`
	Status                    approval.Status        `json:"status"`
	Approvals                 []approvalStepResponse `json:"approvals"`
	IsManagerApproverRequired bool                   `json:"isManagerApproverRequired"`
	SubmittedAt               *time.Time             `json:"submittedAt,omitempty"`
	ApprovedAt                *time.Time             `json:"approvedAt,omitempty"`
	RejectedAt                *time.Time             `json:"rejectedAt,omitempty"`
	CreatedAt                 time.Time              `json:"createdAt"`
	UpdatedAt                 time.Time              `json:"updatedAt"`
}

type approvalStepResponse struct {
	ApproverID uuid.UUID           `json:"approverId"`
	Order      int                 `json:"order"`
	Status     approval.StepStatus `json:"status"`
	Comment    string              `json:"comment,omitempty"`
	ActedAt    *time.Time          `json:"actedAt,omitempty"`
}

// ToResponse is shared with the approvals handler.
func ToResponse(e *expense.Expense) Response {
	resp := Response{
		ID:                        e.ID,
		UserID:                    e.UserID,
		Amount:                    respond.FromMinor(e.Amount),
		Currency:                  e.Currency,
		CompanyCurrency:           e.CompanyCurrency,
		Category:                  e.Category,
		Description:               e.Description,
		Date:                      e.Date.Format(time.DateOnly),
		PaymentMethod:             e.PaymentMethod,
		ReceiptURL:                e.ReceiptURL,
		Tags:                      e.Tags,
		Status:                    e.Status,
		Approvals:                 make([]approvalStepResponse, len(e.Approvals)),
		IsManagerApproverRequired: e.IsManagerApproverRequired,
		SubmittedAt:               e.SubmittedAt,
		ApprovedAt:                e.ApprovedAt,
		RejectedAt:                e.RejectedAt,
		CreatedAt:                 e.CreatedAt,
		UpdatedAt:                 e.UpdatedAt,
	}

	if resp.Tags == nil {
		resp.Tags = []string{}
	}

	if e.ConvertedAmount != nil {
		resp.ConvertedAmount = new(respond.FromMinor(*e.ConvertedAmount))
		resp.ExchangeRate = new(e.ExchangeRate)
	}

	for i, s := range e.Approvals {
		resp.Approvals[i] = approvalStepResponse{
			ApproverID: s.ApproverID,
			Order:      s.Order,
			Status:     s.Status,
			Comment:    s.Comment,
			ActedAt:    s.ActedAt,
		}
	}

	return resp
}

func ToResponseList(expenses []*expense.Expense) []Response {
	resp := make([]Response, len(expenses))
	for i, e := range expenses {
		resp[i] = ToResponse(e)
	}

	return resp
}
