package importcsv

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/outlay/internal/auth"
	expensehttp "github.com/MrJamesThe3rd/outlay/internal/http/expense"
	"github.com/MrJamesThe3rd/outlay/internal/http/respond"
	"github.com/MrJamesThe3rd/outlay/internal/importer"
)

type Handler struct {
	svc      *importer.Service
	maxBytes int64
}

func NewHandler(svc *importer.Service, maxBytes int64) *Handler {
	return &Handler{svc: svc, maxBytes: maxBytes}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importCSV)
}

type skippedResponse struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type importResponse struct {
	Format   string                 `json:"format"`
	Charset  string                 `json:"charset"`
	Imported int                    `json:"imported"`
	Expenses []expensehttp.Response `json:"expenses"`
	Skipped  []skippedResponse      `json:"skipped"`
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		respond.BadRequest(w, "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respond.BadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	res, err := h.svc.Import(r.Context(), id.CompanyID, id.UserID, file)
	if err != nil {
		if errors.Is(err, importer.ErrInvalidFile) {
			respond.BadRequest(w, err.Error())
			return
		}

		respond.Error(w, r, err)

		return
	}

	resp := importResponse{
		Format:   res.Profile,
		Charset:  res.Charset,
		Imported: len(res.Imported),
		Expenses: expensehttp.ToResponseList(res.Imported),
		Skipped:  make([]skippedResponse, 0, len(res.Skipped)),
	}

	for _, s := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skippedResponse{Line: s.Line, Error: s.Err.Error()})
	}

	respond.JSON(w, http.StatusCreated, resp)
}
