/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines the JSON shapes of request bodies and of the responses that add
  display data to domain types. Domain types that already carry JSON tags
  (finance.Invoice, finance.JournalEntry, integration.Queues) are returned
  as they are.

NAMING CONVENTION:
  *Request:  Incoming request bodies
  *Event:    Integration event bodies
  *DTO:      Domain type plus display fields
  *Response: Other response shapes

MONEY:
  Amounts travel as decimal strings or numbers ("1234.50" or 1234.5) and are
  decoded with shopspring/decimal, never through float64. Display strings
  ("$1,234.50") are formatted by go-money for the configured currency.

SEE ALSO:
  - handlers.go: Uses these DTOs
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/hospital-ledger/finance"
	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// LEDGER REQUESTS
// =============================================================================

type CreateAccountRequest struct {
	Number        string `json:"number"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	NormalBalance string `json:"normalBalance,omitempty"`
	ParentID      string `json:"parentId,omitempty"`
	Header        bool   `json:"header,omitempty"`
}

type CreateCostCenterRequest struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Type         string          `json:"type,omitempty"`
	AnnualBudget decimal.Decimal `json:"annualBudget"`
}

// JournalEntryRequest posts an entry, or stores it as a draft when Draft is set.
type JournalEntryRequest struct {
	Date        generic.Date         `json:"date"`
	Type        string               `json:"type,omitempty"`
	Description string               `json:"description"`
	SourceRef   string               `json:"sourceRef,omitempty"`
	Lines       []JournalLineRequest `json:"lines"`
	Draft       bool                 `json:"draft,omitempty"`
}

type JournalLineRequest struct {
	AccountID    string          `json:"accountId"`
	CostCenterID string          `json:"costCenterId,omitempty"`
	Description  string          `json:"description,omitempty"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
}

type ReverseEntryRequest struct {
	Date   generic.Date `json:"date"`
	Reason string       `json:"reason"`
}

// =============================================================================
// INVOICE REQUESTS
// =============================================================================

type CreateInvoiceRequest struct {
	PatientID    string               `json:"patientId"`
	Date         generic.Date         `json:"date"`
	Items        []InvoiceItemRequest `json:"items"`
	PolicyID     string               `json:"policyId,omitempty"`
	DiscountPct  decimal.Decimal      `json:"discountPct"`
	CostCenterID string               `json:"costCenterId,omitempty"`
}

type InvoiceItemRequest struct {
	ServiceID   string          `json:"serviceId"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method,omitempty"`
	Date   generic.Date    `json:"date"`
}

// ReasonRequest is the body of cancel and refund.
type ReasonRequest struct {
	Reason string       `json:"reason"`
	Date   generic.Date `json:"date"`
}

type AllocateSharesRequest struct {
	Shares []ShareRequest `json:"shares"`
}

// ShareRequest sets Pct or Amount; with neither, the stakeholder's default
// percentage applies.
type ShareRequest struct {
	StakeholderID string           `json:"stakeholderId"`
	Pct           *decimal.Decimal `json:"pct,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
}

type SharePaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type StakeholderRequest struct {
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Role            string          `json:"role"`
	DefaultSharePct decimal.Decimal `json:"defaultSharePct"`
}

type CreatePolicyRequest struct {
	PatientID    string           `json:"patientId"`
	ProviderID   string           `json:"providerId"`
	PolicyNumber string           `json:"policyNumber,omitempty"`
	CoveragePct  decimal.Decimal  `json:"coveragePct"`
	CoverageType string           `json:"coverageType,omitempty"`
	LimitAmt     *decimal.Decimal `json:"limitAmt,omitempty"`
	UsedAmt      decimal.Decimal  `json:"usedAmt"`
	Status       string           `json:"status,omitempty"`
}

type PolicyStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// INTEGRATION EVENTS
// =============================================================================

type EmployeeCreatedEvent struct {
	EmployeeID string `json:"employeeId"`
}

type AttendanceProcessedEvent struct {
	Date        generic.Date `json:"date"`
	EmployeeIDs []string     `json:"employeeIds"`
}

type LeaveApprovedEvent struct {
	LeaveRequestID string `json:"leaveRequestId"`
}

type PayrollProcessedEvent struct {
	Period        string          `json:"period"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	EmployeeCount int             `json:"employeeCount"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type AccountDTO struct {
	finance.Account
	BalanceDisplay string `json:"balanceDisplay"`
}

type BalanceResponse struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
	Display   string          `json:"display"`
}

type InvoiceDTO struct {
	finance.Invoice
	TotalDisplay      string `json:"totalDisplay"`
	BalanceDueDisplay string `json:"balanceDueDisplay"`
}

type PendingCountResponse struct {
	Count int `json:"count"`
}

type ClearedResponse struct {
	Cleared int `json:"cleared"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func (r JournalEntryRequest) toDraft() finance.DraftEntry {
	d := finance.DraftEntry{
		Date:        r.Date,
		Type:        finance.EntryType(r.Type),
		Description: r.Description,
		SourceRef:   r.SourceRef,
		Lines:       make([]finance.DraftLine, len(r.Lines)),
	}
	for i, l := range r.Lines {
		d.Lines[i] = finance.DraftLine{
			AccountID:    l.AccountID,
			CostCenterID: l.CostCenterID,
			Description:  l.Description,
			Debit:        l.Debit,
			Credit:       l.Credit,
		}
	}
	return d
}

func (r CreateInvoiceRequest) toInvoiceRequest() finance.InvoiceRequest {
	req := finance.InvoiceRequest{
		PatientID:    r.PatientID,
		Date:         r.Date,
		PolicyID:     r.PolicyID,
		DiscountPct:  r.DiscountPct,
		CostCenterID: r.CostCenterID,
		Items:        make([]finance.ItemSpec, len(r.Items)),
	}
	for i, it := range r.Items {
		req.Items[i] = finance.ItemSpec{
			ServiceID:   it.ServiceID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return req
}

func (r AllocateSharesRequest) toSpecs() []finance.ShareSpec {
	specs := make([]finance.ShareSpec, len(r.Shares))
	for i, s := range r.Shares {
		specs[i] = finance.ShareSpec{StakeholderID: s.StakeholderID, Pct: s.Pct, Amount: s.Amount}
	}
	return specs
}

func (r StakeholderRequest) toSpec() finance.StakeholderSpec {
	return finance.StakeholderSpec{
		Code:            r.Code,
		Name:            r.Name,
		Role:            finance.StakeholderRole(r.Role),
		DefaultSharePct: r.DefaultSharePct,
	}
}

func (r CreatePolicyRequest) toSpec() finance.PolicySpec {
	return finance.PolicySpec{
		PatientID:    r.PatientID,
		ProviderID:   r.ProviderID,
		PolicyNumber: r.PolicyNumber,
		CoveragePct:  r.CoveragePct,
		CoverageType: r.CoverageType,
		LimitAmt:     r.LimitAmt,
		UsedAmt:      r.UsedAmt,
		Status:       finance.PolicyStatus(r.Status),
	}
}

func toAccountDTO(a finance.Account, cur generic.Currency) AccountDTO {
	return AccountDTO{Account: a, BalanceDisplay: cur.Format(a.Balance)}
}

func toInvoiceDTO(inv finance.Invoice, cur generic.Currency) InvoiceDTO {
	return InvoiceDTO{
		Invoice:           inv,
		TotalDisplay:      cur.Format(inv.Total),
		BalanceDueDisplay: cur.Format(inv.BalanceDue),
	}
}
