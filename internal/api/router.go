/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LedgerRoutes creates and returns a new router for the ledger service.
func LedgerRoutes(h *LedgerHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Service-to-service endpoints guarded by the shared internal key.
	r.Group(func(r chi.Router) {
		r.Use(InternalKeyMiddleware(internalAPIKey))
		r.Post("/internal/accounts", h.CreateAccountHandler)
	})

	// Endpoints available to any authenticated partner.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Post("/transfers", h.CreateTransferHandler)
		r.Post("/transfers/{transactionID}/confirm", h.ConfirmTransferHandler)
		r.Post("/transfers/{transactionID}/cancel", h.CancelTransferHandler)

		r.Get("/accounts/{userID}/balance", h.GetBalanceHandler)
		r.Get("/accounts/{userID}/transactions", h.ListTransactionsHandler)
		r.Get("/transactions/{transactionID}", h.GetTransactionHandler)
	})

	// Admin-only endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))
		r.Use(RequireAdmin)

		r.Post("/transfers/{transactionID}/review", h.ReviewTransferHandler)

		r.Post("/ledger/grants", h.AdminGrantHandler)
		r.Post("/ledger/deductions", h.AdminDeductHandler)
		r.Post("/ledger/dividends", h.DistributeDividendHandler)

		r.Get("/grant-tasks/pending", h.ListPendingGrantTasksHandler)
		r.Get("/grant-tasks/{taskID}", h.GetGrantTaskHandler)
		r.Post("/grant-tasks/{taskID}/approve", h.ApproveGrantTaskHandler)
		r.Post("/grant-tasks/{taskID}/reject", h.RejectGrantTaskHandler)
	})

	return r
}
