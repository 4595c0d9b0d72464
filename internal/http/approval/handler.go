package approval

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
	expensehttp "github.com/MrJamesThe3rd/outlay/internal/http/expense"
	"github.com/MrJamesThe3rd/outlay/internal/http/respond"
)

// Handler serves the approver's inbox and approve/reject actions.
type Handler struct {
	svc *expense.Service
}

func NewHandler(svc *expense.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.inbox)
	r.Post("/{expenseID}/approve", h.approve)
	r.Post("/{expenseID}/reject", h.reject)
}

type actionRequest struct {
	Comment string `json:"comment"`
}

type actionResponse struct {
	Expense    expensehttp.Response `json:"expense"`
	Resolution approval.Resolution  `json:"resolution"`
	Percentage *int                 `json:"percentage,omitempty"`
}

func (h *Handler) inbox(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	expenses, err := h.svc.PendingFor(r.Context(), id.CompanyID, id.UserID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, expensehttp.ToResponseList(expenses))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.svc.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.svc.Reject)
}

type actionFunc func(ctx context.Context, companyID, expenseID, approverID uuid.UUID, comment string) (*expense.Outcome, error)

func (h *Handler) act(w http.ResponseWriter, r *http.Request, action actionFunc) {
	id, _ := auth.FromContext(r.Context())

	expenseID, err := uuid.Parse(chi.URLParam(r, "expenseID"))
	if err != nil {
		respond.BadRequest(w, "invalid expense id")
		return
	}

	// The body is optional for approvals.
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.BadRequest(w, err.Error())
		return
	}

	out, err := action(r.Context(), id.CompanyID, expenseID, id.UserID, req.Comment)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := actionResponse{
		Expense:    expensehttp.ToResponse(out.Expense),
		Resolution: out.Decision.Resolution,
	}

	if out.Decision.Resolution == approval.ResolutionPercentage {
		resp.Percentage = new(out.Decision.Percentage)
	}

	respond.JSON(w, http.StatusOK, resp)
}
