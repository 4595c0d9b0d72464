package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/directory"
	"github.com/MrJamesThe3rd/outlay/internal/http/middleware"
)

const (
	secret = "test-secret"
	issuer = "outlay"
)

func token(t *testing.T, role directory.Role) (string, auth.Identity) {
	t.Helper()

	id := auth.Identity{UserID: uuid.New(), CompanyID: uuid.New(), Role: role}

	tok, err := auth.GenerateToken(secret, issuer, id, time.Hour)
	require.NoError(t, err)

	return tok, id
}

func TestAuthenticate(t *testing.T) {
	var got auth.Identity

	h := middleware.Authenticate(secret, issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tok, want := token(t, directory.RoleEmployee)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"Valid", "Bearer " + tok, http.StatusNoContent},
		{"Missing", "", http.StatusUnauthorized},
		{"WrongScheme", "Basic " + tok, http.StatusUnauthorized},
		{"Garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Equal(t, want, got)
}

func TestRequireRole(t *testing.T) {
	h := middleware.Authenticate(secret, issuer)(
		middleware.RequireRole(auth.Identity.CanApprove)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	tests := []struct {
		role directory.Role
		want int
	}{
		{directory.RoleEmployee, http.StatusForbidden},
		{directory.RoleManager, http.StatusOK},
		{directory.RoleAdmin, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			tok, _ := token(t, tt.role)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tok)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
