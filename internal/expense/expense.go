package expense

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
)

// Category classifies what an expense was spent on.
type Category string

const (
	CategoryFood           Category = "Food"
	CategoryTransportation Category = "Transportation"
	CategoryUtilities      Category = "Utilities"
	CategoryEntertainment  Category = "Entertainment"
	CategoryHealthcare     Category = "Healthcare"
	CategoryShopping       Category = "Shopping"
	CategoryTravel         Category = "Travel"
	CategoryEducation      Category = "Education"
	CategoryOther          Category = "Other"
)

var categories = []Category{
	CategoryFood, CategoryTransportation, CategoryUtilities, CategoryEntertainment,
	CategoryHealthcare, CategoryShopping, CategoryTravel, CategoryEducation, CategoryOther,
}

// Categories returns the known categories in display order.
func Categories() []Category {
	return slices.Clone(categories)
}

func (c Category) Valid() bool {
	return slices.Contains(categories, c)
}

// PaymentMethod is how the employee paid.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "Cash"
	PaymentCreditCard   PaymentMethod = "Credit Card"
	PaymentDebitCard    PaymentMethod = "Debit Card"
	PaymentUPI          PaymentMethod = "UPI"
	PaymentBankTransfer PaymentMethod = "Bank Transfer"
	PaymentOther        PaymentMethod = "Other"
)

var paymentMethods = []PaymentMethod{
	PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentUPI, PaymentBankTransfer, PaymentOther,
}

func PaymentMethods() []PaymentMethod {
	return slices.Clone(paymentMethods)
}

func (p PaymentMethod) Valid() bool {
	return slices.Contains(paymentMethods, p)
}

// Expense is an employee's claim for reimbursement.
type Expense struct {
	ID                        uuid.UUID
	UserID                    uuid.UUID
	CompanyID                 uuid.UUID
	Amount                    int64 // Minor units of Currency
	Currency                  string
	ConvertedAmount           *int64 // Minor units of CompanyCurrency, set on submission
	CompanyCurrency           string
	ExchangeRate              decimal.Decimal
	ConvertedAt               *time.Time
	Category                  Category
	Description               string
	Date                      time.Time
	PaymentMethod             PaymentMethod
	ReceiptURL                string
	Tags                      []string
	Status                    approval.Status
	Approvals                 []approval.Step
	IsManagerApproverRequired bool
	SubmittedAt               *time.Time
	ApprovedAt                *time.Time
	RejectedAt                *time.Time
	Version                   int
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// ApprovalAmount is the amount rules are evaluated against: the converted
// amount once known, else the original.
func (e *Expense) ApprovalAmount() int64 {
	if e.ConvertedAmount != nil {
		return *e.ConvertedAmount
	}

	return e.Amount
}
