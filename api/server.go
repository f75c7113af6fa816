/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboards

ROUTE GROUPS:
  /api/accounts/*          Chart of accounts and balances
  /api/cost-centers/*      Cost centers and budget utilization
  /api/journal-entries/*   Journal posting, drafts, reversals
  /api/trial-balance       Trial balance
  /api/invoices/*          Billing, payments, revenue shares
  /api/revenue-shares/*    Share payouts
  /api/stakeholders/*      Revenue share parties
  /api/insurance-policies  Policies and coverage limits
  /api/integrations/*      Event hooks, pending queues, finance sync
  /api/setup/seed          Default chart and demo staff

SECURITY NOTE:
  No authentication middleware. All endpoints are public; deploy behind
  the hospital's gateway.

SEE ALSO:
  - handlers.go, integrations.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}/balance", h.GetAccountBalance)
		})

		r.Route("/cost-centers", func(r chi.Router) {
			r.Get("/", h.ListCostCenters)
			r.Post("/", h.CreateCostCenter)
			r.Get("/{id}/utilization", h.CostCenterUtilization)
		})

		r.Route("/journal-entries", func(r chi.Router) {
			r.Get("/", h.ListJournalEntries)
			r.Post("/", h.PostJournalEntry)
			r.Post("/{id}/post", h.PostDraftJournalEntry)
			r.Post("/{id}/reverse", h.ReverseJournalEntry)
		})

		r.Get("/trial-balance", h.TrialBalance)

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Post("/{id}/cancel", h.CancelInvoice)
			r.Post("/{id}/refund", h.RefundInvoice)
			r.Post("/{id}/unpaid", h.MarkInvoiceUnpaid)
			r.Get("/{id}/revenue-shares", h.ListRevenueShares)
			r.Post("/{id}/revenue-shares", h.AllocateRevenueShares)
		})

		r.Post("/revenue-shares/{id}/payments", h.MarkSharePaid)

		r.Route("/stakeholders", func(r chi.Router) {
			r.Get("/", h.ListStakeholders)
			r.Post("/", h.CreateStakeholder)
			r.Put("/{id}", h.UpdateStakeholder)
			r.Delete("/{id}", h.DeleteStakeholder)
		})

		r.Route("/insurance-policies", func(r chi.Router) {
			r.Post("/", h.CreateInsurancePolicy)
			r.Get("/{id}", h.GetInsurancePolicy)
			r.Post("/{id}/status", h.SetPolicyStatus)
		})

		r.Route("/integrations", func(r chi.Router) {
			r.Post("/events/{event}", h.HandleEvent)
			r.Get("/pending", h.GetPendingIntegrations)
			r.Get("/pending/count", h.GetPendingCount)
			r.Delete("/pending", h.ClearPendingIntegrations)
			r.Post("/sync", h.SyncFinance)
		})

		r.Post("/setup/seed", h.Seed)
	})

	return r
}
