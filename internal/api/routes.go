package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes. Everything under /api/v1 requires a
// bearer token signed with secret; writing quotes also requires RoleAdmin.
func SetupRoutes(handler *Handler, secret []byte) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(AuthMiddleware(secret))

	// Portfolio routes
	api.HandleFunc("/portfolios", handler.ListPortfolios).Methods("GET")
	api.HandleFunc("/portfolios", handler.CreatePortfolio).Methods("POST")
	api.HandleFunc("/portfolios/{id}", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{id}", handler.DeletePortfolio).Methods("DELETE")
	api.HandleFunc("/portfolios/{id}/cash", handler.AdjustCash).Methods("POST")

	// Journal routes
	api.HandleFunc("/portfolios/{id}/transactions", handler.ListTransactions).Methods("GET")
	api.HandleFunc("/portfolios/{id}/transactions", handler.CreateTransaction).Methods("POST")
	api.HandleFunc("/portfolios/{id}/transactions/{txId}", handler.GetTransaction).Methods("GET")
	api.HandleFunc("/portfolios/{id}/transactions/{txId}", handler.AmendTransaction).Methods("PATCH")
	api.HandleFunc("/portfolios/{id}/transactions/{txId}", handler.RemoveTransaction).Methods("DELETE")

	// Reports
	api.HandleFunc("/portfolios/{id}/holdings", handler.GetHoldings).Methods("GET")
	api.HandleFunc("/portfolios/{id}/lots", handler.GetTaxLots).Methods("GET")
	api.HandleFunc("/portfolios/{id}/gains", handler.GetRealizedGains).Methods("GET")
	api.HandleFunc("/portfolios/{id}/valuation", handler.GetValuation).Methods("GET")

	// Quotes
	api.Handle("/quotes", RequireRole(RoleAdmin)(http.HandlerFunc(handler.UpsertQuotes))).Methods("PUT")
	api.HandleFunc("/quotes/{symbol}", handler.GetQuoteHistory).Methods("GET")

	return r
}
