package matching

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
	"github.com/MrJamesThe3rd/outlay/internal/http/middleware"
	"github.com/MrJamesThe3rd/outlay/internal/http/respond"
	"github.com/MrJamesThe3rd/outlay/internal/matching"
)

type Handler struct {
	svc *matching.Service
}

func NewHandler(svc *matching.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/suggest", h.suggest)

	r.With(middleware.RequireRole(auth.Identity.CanApprove)).Post("/", h.learn)
}

type suggestResponse struct {
	RawDescription string            `json:"rawDescription"`
	Description    string            `json:"description,omitempty"`
	Category       *expense.Category `json:"category,omitempty"`
	Matched        bool              `json:"matched"`
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	raw := r.URL.Query().Get("raw")
	if raw == "" {
		respond.BadRequest(w, "raw query parameter is required")
		return
	}

	sg, err := h.svc.Suggest(r.Context(), id.CompanyID, raw)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := suggestResponse{RawDescription: raw}
	if sg != nil {
		resp.Matched = true
		resp.Description = sg.Description
		resp.Category = sg.Category
	}

	respond.JSON(w, http.StatusOK, resp)
}

type mappingResponse struct {
	ID          uuid.UUID         `json:"id"`
	Pattern     string            `json:"pattern"`
	Description string            `json:"description"`
	Category    *expense.Category `json:"category"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func toMappingResponse(m *matching.Mapping) mappingResponse {
	return mappingResponse{
		ID:          m.ID,
		Pattern:     m.Pattern,
		Description: m.Description,
		Category:    m.Category,
		CreatedAt:   m.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	mappings, err := h.svc.List(r.Context(), id.CompanyID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := make([]mappingResponse, 0, len(mappings))
	for _, m := range mappings {
		resp = append(resp, toMappingResponse(m))
	}

	respond.JSON(w, http.StatusOK, resp)
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req matching.LearnParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	m, err := h.svc.Learn(r.Context(), id.CompanyID, req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toMappingResponse(m))
}
