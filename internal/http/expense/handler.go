package expense

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
	"github.com/MrJamesThe3rd/outlay/internal/http/respond"
	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

type Handler struct {
	svc *expense.Service
}

func NewHandler(svc *expense.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/submit", h.submit)
}

type createExpenseRequest struct {
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	Category      expense.Category      `json:"category"`
	Description   string                `json:"description"`
	Date          string                `json:"date"`
	PaymentMethod expense.PaymentMethod `json:"paymentMethod"`
	ReceiptURL    string                `json:"receiptUrl"`
	Tags          []string              `json:"tags"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	amount, err := respond.ToMinor("amount", req.Amount)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	date, err := ParseDate("date", req.Date)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	e, err := h.svc.Create(r.Context(), expense.CreateParams{
		UserID:        id.UserID,
		CompanyID:     id.CompanyID,
		Amount:        amount,
		Currency:      req.Currency,
		Category:      req.Category,
		Description:   req.Description,
		Date:          date,
		PaymentMethod: req.PaymentMethod,
		ReceiptURL:    req.ReceiptURL,
		Tags:          req.Tags,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, ToResponse(e))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	filter, err := ListFilter(r, id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	expenses, err := h.svc.List(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponseList(expenses))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	expenseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	e, err := h.svc.Get(r.Context(), id.CompanyID, expenseID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	// Employees only see their own claims.
	if !id.CanApprove() && e.UserID != id.UserID {
		respond.Error(w, r, expense.ErrNotFound)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponse(e))
}

type updateExpenseRequest struct {
	Amount        *decimal.Decimal       `json:"amount,omitempty"`
	Currency      *string                `json:"currency,omitempty"`
	Category      *expense.Category      `json:"category,omitempty"`
	Description   *string                `json:"description,omitempty"`
	Date          *string                `json:"date,omitempty"`
	PaymentMethod *expense.PaymentMethod `json:"paymentMethod,omitempty"`
	ReceiptURL    *string                `json:"receiptUrl,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	expenseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	var req updateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	params := expense.UpdateParams{
		Currency:      req.Currency,
		Category:      req.Category,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		ReceiptURL:    req.ReceiptURL,
		Tags:          req.Tags,
	}

	if req.Amount != nil {
		amount, err := respond.ToMinor("amount", *req.Amount)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		params.Amount = &amount
	}

	if req.Date != nil {
		date, err := ParseDate("date", *req.Date)
		if err != nil {
			respond.Error(w, r, err)
			return
		}

		params.Date = &date
	}

	e, err := h.svc.Update(r.Context(), id.CompanyID, id.UserID, expenseID, params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponse(e))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	expenseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	if err := h.svc.Delete(r.Context(), id.CompanyID, id.UserID, expenseID); err != nil {
		respond.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	expenseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	e, err := h.svc.Submit(r.Context(), id.CompanyID, id.UserID, expenseID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, ToResponse(e))
}

// ListFilter reads status, category, from, to and userId from the query.
// Callers who cannot approve are always limited to their own expenses.
func ListFilter(r *http.Request, id auth.Identity) (expense.ListFilter, error) {
	q := r.URL.Query()
	filter := expense.ListFilter{CompanyID: id.CompanyID}

	if s := q.Get("status"); s != "" {
		filter.Status = new(approval.Status(s))
	}

	if s := q.Get("category"); s != "" {
		c := expense.Category(s)
		if !c.Valid() {
			return filter, validation.New("category", "is not a known category")
		}

		filter.Category = &c
	}

	if s := q.Get("from"); s != "" {
		t, err := ParseDate("from", s)
		if err != nil {
			return filter, err
		}

		filter.From = &t
	}

	if s := q.Get("to"); s != "" {
		t, err := ParseDate("to", s)
		if err != nil {
			return filter, err
		}

		filter.To = &t
	}

	switch {
	case !id.CanApprove():
		filter.UserID = new(id.UserID)
	case q.Get("userId") != "":
		userID, err := uuid.Parse(q.Get("userId"))
		if err != nil {
			return filter, validation.New("userId", "must be a valid id")
		}

		filter.UserID = &userID
	}

	return filter, nil
}

// ParseDate accepts YYYY-MM-DD or RFC 3339.
func ParseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, validation.New(field, "is required")
	}

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, validation.New(field, "must be a date in YYYY-MM-DD format")
	}

	return t, nil
}
