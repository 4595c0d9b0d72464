package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/http/respond"
)

// Authenticate resolves the bearer token into an auth.Identity on the request context.
func Authenticate(secret, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			id, err := auth.ParseToken(secret, issuer, strings.TrimSpace(token))
			if err != nil {
				slog.DebugContext(r.Context(), "rejected token", "error", err)
				unauthorized(w, "invalid token")

				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole lets the request through only when allow accepts the caller.
func RequireRole(allow func(auth.Identity) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				unauthorized(w, "missing identity")
				return
			}

			if !allow(id) {
				respond.JSON(w, http.StatusForbidden, map[string]string{"error": "insufficient role"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="outlay"`)
	respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
}
