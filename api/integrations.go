package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/hospital-ledger/integration"
)

// =============================================================================
// INTEGRATION EVENT ENDPOINTS
// =============================================================================

// HandleEvent dispatches POST /api/integrations/events/{event} to the
// matching manager hook. A hook that did not succeed is answered with the
// status of its underlying error and the Result as body.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var res integration.Result

	switch chi.URLParam(r, "event") {
	case "employee-created":
		var ev EmployeeCreatedEvent
		if !decodeJSON(w, r, &ev) {
			return
		}
		res = h.Integrations.OnEmployeeCreated(ctx, ev.EmployeeID)
	case "attendance-processed":
		var ev AttendanceProcessedEvent
		if !decodeJSON(w, r, &ev) {
			return
		}
		res = h.Integrations.OnAttendanceProcessed(ctx, ev.Date, ev.EmployeeIDs)
	case "leave-approved":
		var ev LeaveApprovedEvent
		if !decodeJSON(w, r, &ev) {
			return
		}
		res = h.Integrations.OnLeaveApproved(ctx, ev.LeaveRequestID)
	case "payroll-processed":
		var ev PayrollProcessedEvent
		if !decodeJSON(w, r, &ev) {
			return
		}
		res = h.Integrations.OnPayrollProcessed(ctx, ev.Period, ev.TotalAmount, ev.EmployeeCount)
	case "purchase-received":
		var ev integration.PurchaseReceipt
		if !decodeJSON(w, r, &ev) {
			return
		}
		res = h.Integrations.OnPurchaseReceived(ctx, ev)
	default:
		writeError(w, http.StatusNotFound, "Unknown integration event", fmt.Errorf("event %q", chi.URLParam(r, "event")))
		return
	}

	if !res.Success {
		writeJSON(w, statusFor(res.Err), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// PENDING QUEUE ENDPOINTS
// =============================================================================

// GET /api/integrations/pending
func (h *Handler) GetPendingIntegrations(w http.ResponseWriter, r *http.Request) {
	q, err := h.Integrations.GetPendingIntegrations(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to read pending integrations", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// GET /api/integrations/pending/count
func (h *Handler) GetPendingCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Integrations.GetPendingCount(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to count pending integrations", err)
		return
	}
	writeJSON(w, http.StatusOK, PendingCountResponse{Count: n})
}

// ClearPendingIntegrations empties every queue.
// DELETE /api/integrations/pending
func (h *Handler) ClearPendingIntegrations(w http.ResponseWriter, r *http.Request) {
	n, err := h.Integrations.ClearPendingIntegrations(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to clear pending integrations", err)
		return
	}
	writeJSON(w, http.StatusOK, ClearedResponse{Cleared: n})
}

// SyncFinance posts queued payroll and purchase actions to the ledger.
// POST /api/integrations/sync
func (h *Handler) SyncFinance(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Syncer.PostPending(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to sync finance", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
