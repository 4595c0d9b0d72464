package rule

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/http/respond"
	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

type Handler struct {
	svc *approval.Service
}

func NewHandler(svc *approval.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

// ruleRequest is used for both create and patch. Absent fields keep their
// current value; maxAmount: null removes the upper bound.
type ruleRequest struct {
	Name                      *string                    `json:"name"`
	Description               *string                    `json:"description"`
	MinAmount                 *decimal.Decimal           `json:"minAmount"`
	MaxAmount                 json.RawMessage            `json:"maxAmount"`
	Approvers                 []uuid.UUID                `json:"approvers"`
	IsManagerApproverRequired *bool                      `json:"isManagerApproverRequired"`
	IsSequential              *bool                      `json:"isSequential"`
	MinApprovalPercentage     *int                       `json:"minApprovalPercentage"`
	SpecificApprover          *approval.SpecificApprover `json:"specificApprover"`
	Categories                []string                   `json:"categories"`
	IsActive                  *bool                      `json:"isActive"`
}

func (req ruleRequest) applyTo(p *approval.RuleParams) error {
	if req.Name != nil {
		p.Name = *req.Name
	}

	if req.Description != nil {
		p.Description = *req.Description
	}

	if req.MinAmount != nil {
		minor, err := respond.ToMinor("minAmount", *req.MinAmount)
		if err != nil {
			return err
		}

		p.MinAmount = minor
	}

	if len(req.MaxAmount) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.MaxAmount), []byte("null")) {
			p.MaxAmount = nil
		} else {
			var amount decimal.Decimal
			if err := json.Unmarshal(req.MaxAmount, &amount); err != nil {
				return validation.New("maxAmount", "must be a number")
			}

			minor, err := respond.ToMinor("maxAmount", amount)
			if err != nil {
				return err
			}

			p.MaxAmount = &minor
		}
	}

	if req.Approvers != nil {
		p.Approvers = req.Approvers
	}

	if req.IsManagerApproverRequired != nil {
		p.IsManagerApproverRequired = req.IsManagerApproverRequired
	}

	if req.IsSequential != nil {
		p.IsSequential = *req.IsSequential
	}

	if req.MinApprovalPercentage != nil {
		p.MinApprovalPercentage = req.MinApprovalPercentage
	}

	if req.SpecificApprover != nil {
		p.SpecificApprover = req.SpecificApprover
	}

	if req.Categories != nil {
		p.Categories = req.Categories
	}

	if req.IsActive != nil {
		p.IsActive = req.IsActive
	}

	return nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	rules, err := h.svc.List(r.Context(), id.CompanyID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(rules))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	var params approval.RuleParams
	if err := req.applyTo(&params); err != nil {
		respond.Error(w, r, err)
		return
	}

	rule, err := h.svc.Create(r.Context(), id.CompanyID, params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(rule))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	ruleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	rule, err := h.svc.Get(r.Context(), id.CompanyID, ruleID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(rule))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	ruleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	current, err := h.svc.Get(r.Context(), id.CompanyID, ruleID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	params := approval.ParamsFromRule(current)
	if err := req.applyTo(&params); err != nil {
		respond.Error(w, r, err)
		return
	}

	rule, err := h.svc.Update(r.Context(), id.CompanyID, ruleID, params)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(rule))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	ruleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	if err := h.svc.Deactivate(r.Context(), id.CompanyID, ruleID); err != nil {
		respond.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
