package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/outlay/internal/auth"
	"github.com/MrJamesThe3rd/outlay/internal/http/approval"
	"github.com/MrJamesThe3rd/outlay/internal/http/expense"
	"github.com/MrJamesThe3rd/outlay/internal/http/export"
	"github.com/MrJamesThe3rd/outlay/internal/http/importcsv"
	"github.com/MrJamesThe3rd/outlay/internal/http/matching"
	authmw "github.com/MrJamesThe3rd/outlay/internal/http/middleware"
	"github.com/MrJamesThe3rd/outlay/internal/http/rule"
)

type Options struct {
	JWTSecret      string
	JWTIssuer      string
	AllowedOrigins []string
}

type Handlers struct {
	Expenses  *expense.Handler
	Approvals *approval.Handler
	Rules     *rule.Handler
	Export    *export.Handler
	Import    *importcsv.Handler
	Merchants *matching.Handler
}

func New(opts Options, h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authmw.Authenticate(opts.JWTSecret, opts.JWTIssuer))

		r.Route("/expenses", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Expenses.Routes(r)
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Use(authmw.RequireRole(auth.Identity.CanApprove))
			r.Use(middleware.AllowContentType("application/json"))
			h.Approvals.Routes(r)
		})

		r.Route("/admin/approval-rules", func(r chi.Router) {
			r.Use(authmw.RequireRole(auth.Identity.IsAdmin))
			r.Use(middleware.AllowContentType("application/json"))
			h.Rules.Routes(r)
		})

		r.Route("/export", h.Export.Routes)
		r.Route("/import", h.Import.Routes)

		r.Route("/merchants", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Merchants.Routes(r)
		})
	})

	return router
}
