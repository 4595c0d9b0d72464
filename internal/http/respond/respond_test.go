package respond_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
	"github.com/MrJamesThe3rd/outlay/internal/currency"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
	"github.com/MrJamesThe3rd/outlay/internal/http/respond"
	"github.com/MrJamesThe3rd/outlay/internal/validation"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Validation", validation.New("amount", "must be greater than 0"), http.StatusBadRequest},
		{"ExpenseNotFound", fmt.Errorf("loading: %w", expense.ErrNotFound), http.StatusNotFound},
		{"RuleNotFound", approval.ErrNotFound, http.StatusNotFound},
		{"InvalidState", expense.ErrInvalidState, http.StatusConflict},
		{"Conflict", expense.ErrConflict, http.StatusConflict},
		{"NotApprover", approval.ErrNotAuthorizedApprover, http.StatusForbidden},
		{"NoPath", approval.ErrNoApprovalPath, http.StatusUnprocessableEntity},
		{"UnknownCurrency", fmt.Errorf("converting: %w", currency.ErrUnknownCurrency), http.StatusUnprocessableEntity},
		{"Other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, respond.StatusFor(tt.err))
		})
	}
}

func TestError(t *testing.T) {
	t.Run("ValidationCarriesField", func(t *testing.T) {
		rec := httptest.NewRecorder()
		respond.Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), validation.New("comment", "is required when rejecting"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "comment", body["field"])
		assert.Equal(t, "is required when rejecting", body["error"])
	})

	t.Run("InternalIsMasked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		respond.Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
	})
}

func TestToMinor(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.5", 1250, false},
		{"5000", 500000, false},
		{"0.01", 1, false},
		{"1.005", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := respond.ToMinor("amount", decimal.RequireFromString(tt.in))
			if tt.wantErr {
				assert.ErrorIs(t, err, validation.ErrValidation)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, respond.FromMinor(got).Equal(decimal.RequireFromString(tt.in)))
		})
	}
}
