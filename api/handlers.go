/*
handlers.go - HTTP request handlers for the hospital ledger

PURPOSE:
  Implements the REST endpoints that back the finance dashboards and the
  HR/inventory pages. Each handler:
  1. Parses the request (path params, query, JSON body)
  2. Calls finance.Service or integration.Manager
  3. Writes the JSON response

HANDLER STRUCTURE:
  Handler holds the services, which share one generic.UnitOfWork. Every
  operation is a single unit of work, so handlers never coordinate writes.

ERROR RESPONSES:
  All errors return JSON: {"error": "message", "details": "..."}
  Status codes follow the error taxonomy in generic/errors.go:
  - 400 Bad Request:          Malformed JSON or query parameters
  - 404 Not Found:            ErrNotFound
  - 409 Conflict:             ErrDuplicateKey, ErrConcurrentModification
  - 422 Unprocessable Entity: Validation and business-rule errors
  - 500 Internal Error:       Persistence and anything unclassified

ENDPOINT GROUPS:
  Accounts:      List, create, balance
  Cost centers:  List, create, utilization
  Journal:       List by range, post or save draft, post draft, reverse
  Invoices:      Create, list, get, pay, cancel, refund, mark unpaid
  Revenue:       Allocate shares, list shares, pay a share
  Stakeholders:  CRUD
  Insurance:     Create, get, change status
  Integrations:  see integrations.go

SEE ALSO:
  - dto.go: Request/response types
  - server.go: Route definitions
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/hospital-ledger/factory"
	"github.com/warp/hospital-ledger/finance"
	"github.com/warp/hospital-ledger/generic"
	"github.com/warp/hospital-ledger/integration"
)

// Handler contains all HTTP handlers and their dependencies.
type Handler struct {
	Finance      *finance.Service
	Integrations *integration.Manager
	Syncer       *integration.Syncer

	uow *generic.UnitOfWork
	log *zap.Logger
}

// NewHandler creates a handler. All services must be built on uow.
func NewHandler(uow *generic.UnitOfWork, fin *finance.Service, mgr *integration.Manager, syncer *integration.Syncer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Finance:      fin,
		Integrations: mgr,
		Syncer:       syncer,
		uow:          uow,
		log:          log.Named("api"),
	}
}

func (h *Handler) currency() generic.Currency { return h.Finance.Rules().Currency }

// =============================================================================
// ACCOUNT ENDPOINTS
// =============================================================================

// ListAccounts returns the chart of accounts, optionally filtered by type.
// GET /api/accounts?type=EXPENSE
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	t := finance.AccountType(r.URL.Query().Get("type"))
	if t != "" && !t.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid account type", fmt.Errorf("unknown type %q", t))
		return
	}
	accounts, err := h.Finance.ListAccountsByType(r.Context(), t)
	if err != nil {
		h.writeDomainError(w, "Failed to list accounts", err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a, h.currency())
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount adds an account to the chart.
// POST /api/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	acc, err := h.Finance.CreateAccount(r.Context(), finance.AccountSpec{
		Number:        req.Number,
		Name:          req.Name,
		Type:          finance.AccountType(req.Type),
		NormalBalance: finance.NormalBalance(req.NormalBalance),
		ParentID:      req.ParentID,
		Header:        req.Header,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acc, h.currency()))
}

// GetAccountBalance returns one account's balance on its normal side.
// GET /api/accounts/{id}/balance
func (h *Handler) GetAccountBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bal, err := h.Finance.GetAccountBalance(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{AccountID: id, Balance: bal, Display: h.currency().Format(bal)})
}

// TrialBalance returns the debit and credit columns of every account.
// GET /api/trial-balance
func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := h.Finance.TrialBalance(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to build trial balance", err)
		return
	}
	writeJSON(w, http.StatusOK, tb)
}

// =============================================================================
// COST CENTER ENDPOINTS
// =============================================================================

// GET /api/cost-centers
func (h *Handler) ListCostCenters(w http.ResponseWriter, r *http.Request) {
	ccs, err := h.Finance.ListCostCenters(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list cost centers", err)
		return
	}
	writeJSON(w, http.StatusOK, ccs)
}

// POST /api/cost-centers
func (h *Handler) CreateCostCenter(w http.ResponseWriter, r *http.Request) {
	var req CreateCostCenterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cc, err := h.Finance.CreateCostCenter(r.Context(), finance.CostCenterSpec{
		Code:         req.Code,
		Name:         req.Name,
		Type:         finance.CostCenterType(req.Type),
		AnnualBudget: req.AnnualBudget,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create cost center", err)
		return
	}
	writeJSON(w, http.StatusCreated, cc)
}

// GET /api/cost-centers/{id}/utilization
func (h *Handler) CostCenterUtilization(w http.ResponseWriter, r *http.Request) {
	u, err := h.Finance.CostCenterUtilization(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get utilization", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// =============================================================================
// JOURNAL ENDPOINTS
// =============================================================================

// ListJournalEntries returns entries dated within [from, to], newest first.
// Either bound may be omitted.
// GET /api/journal-entries?from=2025-01-01&to=2025-03-31
func (h *Handler) ListJournalEntries(w http.ResponseWriter, r *http.Request) {
	from, ok := queryDate(w, r, "from")
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to")
	if !ok {
		return
	}
	entries, err := h.Finance.ListJournalEntriesByDateRange(r.Context(), from, to)
	if err != nil {
		h.writeDomainError(w, "Failed to list journal entries", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// PostJournalEntry posts a balanced entry, or saves a draft.
// POST /api/journal-entries
func (h *Handler) PostJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req JournalEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var (
		entry finance.JournalEntry
		err   error
	)
	if req.Draft {
		entry, err = h.Finance.SaveDraftJournalEntry(r.Context(), req.toDraft())
	} else {
		entry, err = h.Finance.PostJournalEntry(r.Context(), req.toDraft())
	}
	if err != nil {
		h.writeDomainError(w, "Failed to post journal entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// POST /api/journal-entries/{id}/post
func (h *Handler) PostDraftJournalEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Finance.PostDraftJournalEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to post draft", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ReverseJournalEntry posts the compensating entry of a posted entry.
// POST /api/journal-entries/{id}/reverse
func (h *Handler) ReverseJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req ReverseEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.Finance.ReverseJournalEntry(r.Context(), chi.URLParam(r, "id"), req.Date, req.Reason)
	if err != nil {
		h.writeDomainError(w, "Failed to reverse journal entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// =============================================================================
// INVOICE ENDPOINTS
// =============================================================================

// GET /api/invoices?status=PENDING
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	status := finance.InvoiceStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid invoice status", fmt.Errorf("unknown status %q", status))
		return
	}
	invoices, err := h.Finance.ListInvoices(r.Context(), status)
	if err != nil {
		h.writeDomainError(w, "Failed to list invoices", err)
		return
	}
	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv, h.currency())
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateInvoice prices the items, applies discount and insurance coverage.
// POST /api/invoices
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.Finance.CreateInvoice(r.Context(), req.toInvoiceRequest())
	if err != nil {
		h.writeDomainError(w, "Failed to create invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv, h.currency()))
}

// GET /api/invoices/{id}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Finance.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, h.currency()))
}

// RecordPayment applies a payment and posts the PAYMENT entry.
// POST /api/invoices/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.Finance.RecordPayment(r.Context(), chi.URLParam(r, "id"), finance.PaymentRequest{
		Amount: req.Amount,
		Method: finance.PaymentMethod(req.Method),
		Date:   req.Date,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, h.currency()))
}

// POST /api/invoices/{id}/cancel
func (h *Handler) CancelInvoice(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.Finance.CancelInvoice(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeDomainError(w, "Failed to cancel invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, h.currency()))
}

// POST /api/invoices/{id}/refund
func (h *Handler) RefundInvoice(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.Finance.RefundInvoice(r.Context(), chi.URLParam(r, "id"), req.Reason, req.Date)
	if err != nil {
		h.writeDomainError(w, "Failed to refund invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, h.currency()))
}

// POST /api/invoices/{id}/unpaid
func (h *Handler) MarkInvoiceUnpaid(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Finance.MarkInvoiceUnpaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to mark invoice unpaid", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv, h.currency()))
}

// =============================================================================
// REVENUE SHARE ENDPOINTS
// =============================================================================

// GET /api/invoices/{id}/revenue-shares
func (h *Handler) ListRevenueShares(w http.ResponseWriter, r *http.Request) {
	shares, err := h.Finance.ListRevenueShares(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to list revenue shares", err)
		return
	}
	writeJSON(w, http.StatusOK, shares)
}

// AllocateRevenueShares splits an invoice total among stakeholders.
// POST /api/invoices/{id}/revenue-shares
func (h *Handler) AllocateRevenueShares(w http.ResponseWriter, r *http.Request) {
	var req AllocateSharesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	shares, err := h.Finance.AllocateRevenueShares(r.Context(), chi.URLParam(r, "id"), req.toSpecs())
	if err != nil {
		h.writeDomainError(w, "Failed to allocate revenue shares", err)
		return
	}
	writeJSON(w, http.StatusCreated, shares)
}

// POST /api/revenue-shares/{id}/payments
func (h *Handler) MarkSharePaid(w http.ResponseWriter, r *http.Request) {
	var req SharePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	share, err := h.Finance.MarkSharePaid(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		h.writeDomainError(w, "Failed to pay revenue share", err)
		return
	}
	writeJSON(w, http.StatusOK, share)
}

// =============================================================================
// STAKEHOLDER ENDPOINTS
// =============================================================================

// GET /api/stakeholders
func (h *Handler) ListStakeholders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Finance.ListStakeholders(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list stakeholders", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// POST /api/stakeholders
func (h *Handler) CreateStakeholder(w http.ResponseWriter, r *http.Request) {
	var req StakeholderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.Finance.CreateStakeholder(r.Context(), req.toSpec())
	if err != nil {
		h.writeDomainError(w, "Failed to create stakeholder", err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// PUT /api/stakeholders/{id}
func (h *Handler) UpdateStakeholder(w http.ResponseWriter, r *http.Request) {
	var req StakeholderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.Finance.UpdateStakeholder(r.Context(), chi.URLParam(r, "id"), req.toSpec())
	if err != nil {
		h.writeDomainError(w, "Failed to update stakeholder", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteStakeholder is rejected while revenue shares reference the stakeholder.
// DELETE /api/stakeholders/{id}
func (h *Handler) DeleteStakeholder(w http.ResponseWriter, r *http.Request) {
	if err := h.Finance.DeleteStakeholder(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "Failed to delete stakeholder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// INSURANCE ENDPOINTS
// =============================================================================

// POST /api/insurance-policies
func (h *Handler) CreateInsurancePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Finance.CreateInsurancePolicy(r.Context(), req.toSpec())
	if err != nil {
		h.writeDomainError(w, "Failed to create insurance policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GET /api/insurance-policies/{id}
func (h *Handler) GetInsurancePolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.Finance.GetInsurancePolicy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get insurance policy", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/insurance-policies/{id}/status
func (h *Handler) SetPolicyStatus(w http.ResponseWriter, r *http.Request) {
	var req PolicyStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Finance.SetPolicyStatus(r.Context(), chi.URLParam(r, "id"), finance.PolicyStatus(req.Status))
	if err != nil {
		h.writeDomainError(w, "Failed to change policy status", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// =============================================================================
// SETUP
// =============================================================================

// Seed applies the default hospital chart and the demo staff roster.
// Existing records are kept, so repeated calls are harmless.
// POST /api/setup/seed
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	rep, err := factory.Seed(r.Context(), h.uow)
	if err != nil {
		h.writeDomainError(w, "Failed to seed", err)
		return
	}
	h.log.Info("seed applied",
		zap.Int("accounts", rep.Chart.AccountsCreated),
		zap.Int("employees", rep.EmployeesCreated))
	writeJSON(w, http.StatusOK, rep)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return true // empty body: every field keeps its zero value
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func queryDate(w http.ResponseWriter, r *http.Request, name string) (generic.Date, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return generic.Date{}, true
	}
	d, err := generic.ParseDate(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name+" date", err)
		return generic.Date{}, false
	}
	return d, true
}
