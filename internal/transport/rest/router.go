package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"snapexpense/internal/expense"
	"snapexpense/internal/extraction"
	"snapexpense/internal/session"
	"snapexpense/internal/snapshot"
	"snapexpense/internal/transport/middleware"
	"snapexpense/internal/transport/swagger"
	"snapexpense/internal/user"
)

// RouterDeps carries everything the route table needs. Demoted is nil when
// the process runs in pure local mode.
type RouterDeps struct {
	Snapshots      *snapshot.Store
	CloudMode      bool
	Demoted        func() bool
	AllowedOrigins string

	SessionHandler    *session.Handler
	SessionManager    *session.Manager
	UserHandler       *user.Handler
	ExpenseHandler    *expense.Handler
	ExtractionHandler *extraction.Handler

	Logger *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, deps RouterDeps) {
	healthHandler := NewHealthHandler(deps.Snapshots, deps.CloudMode, deps.Demoted)

	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.LoggingMiddleware(deps.Logger))
	router.Use(middleware.RecoveryMiddleware(deps.Logger))

	// OpenAPI spec and swagger UI live outside the API prefix.
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", deps.SessionHandler.Login)
			sr.Post("/signup", deps.SessionHandler.Signup)
			sr.Post("/logout", deps.SessionHandler.Logout)
		})

		// Category enumeration is static and public.
		r.Get("/categories", deps.ExpenseHandler.GetCategories)

		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticate(deps.SessionManager))

			pr.Get("/users/me", deps.SessionHandler.Me)

			pr.Route("/expenses", func(er chi.Router) {
				er.Post("/", deps.ExpenseHandler.CreateExpense)
				er.Get("/", deps.ExpenseHandler.ListExpenses)
				er.Get("/{id}", deps.ExpenseHandler.GetExpense)
				er.Patch("/{id}", deps.ExpenseHandler.UpdateExpense)
				er.Delete("/{id}", deps.ExpenseHandler.DeleteExpense)

				er.Group(func(mr chi.Router) {
					mr.Use(middleware.RequireManager)
					mr.Patch("/{id}/status", deps.ExpenseHandler.UpdateStatus)
				})
			})

			pr.Group(func(mr chi.Router) {
				mr.Use(middleware.RequireManager)
				mr.Get("/reports/categories", deps.ExpenseHandler.CategoryReport)
				mr.Get("/reports/users", deps.ExpenseHandler.OwnerReport)
			})

			pr.Post("/receipts/scan", deps.ExtractionHandler.ScanReceipt)

			pr.Route("/users", func(ur chi.Router) {
				ur.Put("/me/avatar", deps.UserHandler.UpdateAvatar)
				ur.Put("/me/password", deps.UserHandler.UpdatePassword)
				ur.Post("/me/profile-update", deps.UserHandler.RequestProfileUpdate)

				ur.Group(func(mr chi.Router) {
					mr.Use(middleware.RequireManager)
					mr.Get("/", deps.UserHandler.ListUsers)
					mr.Get("/{id}", deps.UserHandler.GetUser)
				})

				ur.Group(func(ar chi.Router) {
					ar.Use(middleware.RequireAdmin)
					ar.Put("/{id}/role", deps.UserHandler.UpdateRole)
					ar.Post("/{id}/profile-update/resolve", deps.UserHandler.ResolveProfileUpdate)
					ar.Delete("/{id}", deps.UserHandler.DeleteUser)
				})
			})
		})
	})
}
