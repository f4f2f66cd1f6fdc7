// Package api assembles the HTTP surface: routes, handlers and the
// middleware chain.
package api

import (
	"net/http"

	"github.com/dvloznov/finance-analytics/internal/api/handlers"
	"github.com/dvloznov/finance-analytics/internal/api/middleware"
	"github.com/dvloznov/finance-analytics/internal/auth"
	"github.com/dvloznov/finance-analytics/internal/finance"
	"github.com/dvloznov/finance-analytics/internal/ingest"
	"github.com/dvloznov/finance-analytics/internal/reports"
	"github.com/rs/zerolog"
)

// Services are the application services the routes call into.
type Services struct {
	Auth     *auth.Service
	Finance  *finance.Service
	Importer *ingest.Importer
	Reports  *reports.Orchestrator
}

// publicPaths skip bearer authentication.
var publicPaths = []string{"/health", "/auth/register", "/auth/login"}

// NewRouter wires every endpoint and wraps the mux in the middleware chain.
func NewRouter(svc Services, log zerolog.Logger) http.Handler {
	authH := handlers.NewAuthHandler(svc.Auth, svc.Finance, log)
	categoriesH := handlers.NewCategoriesHandler(svc.Finance, log)
	transactionsH := handlers.NewTransactionsHandler(svc.Finance, svc.Importer, log)
	budgetsH := handlers.NewBudgetsHandler(svc.Finance, log)
	analyticsH := handlers.NewAnalyticsHandler(svc.Finance, log)
	reportsH := handlers.NewReportsHandler(svc.Reports, log)
	healthH := handlers.NewHealthHandler()

	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", healthH.Health)

	// Auth endpoints
	mux.HandleFunc("POST /auth/register", authH.Register)
	mux.HandleFunc("POST /auth/login", authH.Login)
	mux.HandleFunc("GET /users/me", authH.Me)

	// Categories endpoints
	handleCollection(mux, "/categories", categoriesH.ListCategories, categoriesH.CreateCategory)
	mux.HandleFunc("DELETE /categories/{id}", categoriesH.DeleteCategory)

	// Transactions endpoints
	handleCollection(mux, "/transactions", transactionsH.ListTransactions, transactionsH.CreateTransaction)
	mux.HandleFunc("POST /transactions/upload", transactionsH.Upload)
	mux.HandleFunc("GET /transactions/summary", transactionsH.Summary)
	mux.HandleFunc("GET /transactions/{id}", transactionsH.GetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", transactionsH.UpdateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", transactionsH.DeleteTransaction)

	// Budgets endpoints
	handleCollection(mux, "/budgets", budgetsH.ListBudgets, budgetsH.CreateBudget)
	mux.HandleFunc("GET /budgets/performance", budgetsH.Performance)
	mux.HandleFunc("DELETE /budgets/{id}", budgetsH.DeleteBudget)

	// Analytics endpoints
	mux.HandleFunc("GET /analytics/trends", analyticsH.Trends)
	mux.HandleFunc("GET /analytics/forecast", analyticsH.Forecast)

	// Reports endpoints
	mux.HandleFunc("POST /reports/generate", reportsH.Generate)
	mux.HandleFunc("GET /reports/status/{task_id}", reportsH.Status)
	mux.HandleFunc("GET /reports/download/{filename}", reportsH.Download)

	// Apply middleware
	return middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.Auth(svc.Auth, publicPaths...)(mux),
				),
			),
		),
	)
}

// handleCollection registers list and create on both "/x" and "/x/".
func handleCollection(mux *http.ServeMux, path string, list, create http.HandlerFunc) {
	for _, p := range []string{path, path + "/{$}"} {
		mux.HandleFunc("GET "+p, list)
		mux.HandleFunc("POST "+p, create)
	}
}
