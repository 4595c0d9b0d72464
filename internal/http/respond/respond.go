package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/currency"
	"github.com/MrJamesThe3rd/outlay/internal/directory"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Error writes err as a JSON error body with the status StatusFor picks.
// Internal errors are logged and replaced by a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		JSON(w, status, errorResponse{Error: "internal error"})

		return
	}

	body := errorResponse{Error: err.Error()}

	var verr *validation.Error
	if errors.As(err, &verr) {
		body.Error = verr.Reason
		body.Field = verr.Field
	}

	JSON(w, status, body)
}

// BadRequest reports malformed input that never reached a service.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, expense.ErrNotFound),
		errors.Is(err, approval.ErrNotFound),
		errors.Is(err, directory.ErrUserNotFound),
		errors.Is(err, directory.ErrCompanyNotFound):
		return http.StatusNotFound
	case errors.Is(err, approval.ErrInvalidState),
		errors.Is(err, expense.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, approval.ErrNotAuthorizedApprover):
		return http.StatusForbidden
	case errors.Is(err, approval.ErrNoApprovalPath),
		errors.Is(err, currency.ErrUnknownCurrency):
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

// ToMinor converts a major-unit amount such as 12.50 into minor units.
// More than two decimal places is rejected rather than rounded.
func ToMinor(field string, amount decimal.Decimal) (int64, error) {
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, validation.New(field, "must have at most 2 decimal places")
	}

	return minor.IntPart(), nil
}

// FromMinor is the inverse of ToMinor.
func FromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
