package matching_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/directory"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
	matchinghttp "github.com/MrJamesThe3rd/outlay/internal/http/matching"
	"github.com/MrJamesThe3rd/outlay/internal/matching"
)

func newRouter(t *testing.T, id auth.Identity) (*matching.MockRepository, chi.Router) {
	t.Helper()

	repo := matching.NewMockRepository(gomock.NewController(t))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	})
	r.Route("/merchants", matchinghttp.NewHandler(matching.NewService(repo)).Routes)

	return repo, r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func TestHandler_Suggest(t *testing.T) {
	id := auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: directory.RoleEmployee}

	t.Run("Match", func(t *testing.T) {
		repo, router := newRouter(t, id)
		repo.EXPECT().FindMatch(gomock.Any(), id.CompanyID, "UBER *TRIP").
			Return(&matching.Suggestion{Description: "Uber", Category: new(expense.CategoryTransportation)}, nil)

		rec := serve(router, http.MethodGet, "/merchants/suggest?raw=UBER+*TRIP", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["matched"])
		assert.Equal(t, "Uber", body["description"])
		assert.Equal(t, string(expense.CategoryTransportation), body["category"])
	})

	t.Run("NoMatch", func(t *testing.T) {
		repo, router := newRouter(t, id)
		repo.EXPECT().FindMatch(gomock.Any(), id.CompanyID, "ACME").Return(nil, nil)

		rec := serve(router, http.MethodGet, "/merchants/suggest?raw=ACME", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"rawDescription":"ACME","matched":false}`, rec.Body.String())
	})

	t.Run("MissingRaw", func(t *testing.T) {
		_, router := newRouter(t, id)

		rec := serve(router, http.MethodGet, "/merchants/suggest", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_Learn(t *testing.T) {
	tests := []struct {
		name      string
		role      directory.Role
		body      string
		setupMock func(repo *matching.MockRepository)
		wantCode  int
	}{
		{
			name: "Created",
			role: directory.RoleManager,
			body: `{"pattern":"STARBUCKS","description":"Starbucks","category":"Food"}`,
			setupMock: func(repo *matching.MockRepository) {
				repo.EXPECT().CreateMapping(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, m *matching.Mapping) error {
						m.ID = uuid.New()
						return nil
					})
			},
			wantCode: http.StatusCreated,
		},
		{
			name:     "EmployeeForbidden",
			role:     directory.RoleEmployee,
			body:     `{"pattern":"STARBUCKS","description":"Starbucks"}`,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "Invalid",
			role:     directory.RoleAdmin,
			body:     `{"pattern":"ab","description":"x"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Malformed",
			role:     directory.RoleAdmin,
			body:     `{`,
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: tt.role}

			repo, router := newRouter(t, id)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			rec := serve(router, http.MethodPost, "/merchants", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
