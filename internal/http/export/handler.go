package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/export"
	expensehttp "github.com/MrJamesThe3rd/outlay/internal/http/expense"
	"github.com/MrJamesThe3rd/outlay/internal/http/respond"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/expenses", h.download)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	filter, err := expensehttp.ListFilter(r, id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	contentType, ext := format.ContentType()
	filename := fmt.Sprintf("expenses_%s.%s", time.Now().Format("20060102"), ext)

	// Bundles carry receipts and are streamed; failures past this point can
	// only be logged.
	if format == export.FormatZIP {
		setAttachment(w, contentType, filename)

		if err := h.svc.Export(r.Context(), filter, format, w); err != nil {
			slog.ErrorContext(r.Context(), "failed to write export bundle", "error", err)
		}

		return
	}

	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), filter, format, &buf); err != nil {
		respond.Error(w, r, err)
		return
	}

	setAttachment(w, contentType, filename)

	if _, err := buf.WriteTo(w); err != nil {
		slog.ErrorContext(r.Context(), "failed to write export", "error", err)
	}
}

func setAttachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
