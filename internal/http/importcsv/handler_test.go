package importcsv_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/directory"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
	"github.com/MrJamesThe3rd/outlay/internal/http/importcsv"
	"github.com/MrJamesThe3rd/outlay/internal/importer"
)

type creatorFunc func(ctx context.Context, params expense.CreateParams) (*expense.Expense, error)

func (f creatorFunc) Create(ctx context.Context, params expense.CreateParams) (*expense.Expense, error) {
	return f(ctx, params)
}

func upload(t *testing.T, field, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "statement.csv")
	require.NoError(t, err)

	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return req
}

func TestHandler_Import(t *testing.T) {
	id := auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: directory.RoleEmployee}

	svc := importer.NewService(creatorFunc(func(_ context.Context, p expense.CreateParams) (*expense.Expense, error) {
		assert.Equal(t, id.UserID, p.UserID)

		return &expense.Expense{
			ID:          uuid.New(),
			UserID:      p.UserID,
			CompanyID:   p.CompanyID,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Description: p.Description,
			Date:        p.Date,
		}, nil
	}), nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	})
	r.Route("/import", importcsv.NewHandler(svc, 1<<20).Routes)

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		imported int
	}{
		{
			name:     "Imported",
			req:      upload(t, "file", "Date,Description,Amount,Currency\n2025-03-01,Taxi,32.00,EUR\n2025-03-03,Dinner,48.20,EUR\n"),
			wantCode: http.StatusCreated,
			imported: 2,
		},
		{
			name:     "UnknownColumns",
			req:      upload(t, "file", "foo,bar\n1,2\n"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "MissingFile",
			req:      upload(t, "attachment", "Date,Description,Amount\n"),
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, tt.req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantCode != http.StatusCreated {
				return
			}

			var body struct {
				Format   string `json:"format"`
				Imported int    `json:"imported"`
				Skipped  []any  `json:"skipped"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "outlay", body.Format)
			assert.Equal(t, tt.imported, body.Imported)
			assert.Empty(t, body.Skipped)
		})
	}
}
