/*
invoice.go - Patient invoices, insurance coverage, payments

PURPOSE:
  Invoice arithmetic and the invoice state machine. Payments and refunds
  post balancing journal entries in the same book, so the invoice change
  and its ledger effect commit or fail together.

ARITHMETIC (percentages in percent units):
  Subtotal              = Σ quantity × unitPrice
  DiscountAmt           = round(Subtotal × discountPct / 100)
  Total                 = Subtotal − DiscountAmt
  InsuranceCoverageAmt  = min(round(Total × coveragePct / 100), LimitAmt − UsedAmt)
  PatientResponsibility = Total − InsuranceCoverageAmt
  BalanceDue            = PatientResponsibility − AmountPaid

STATE MACHINE:
  DRAFT → PENDING → PARTIALLY_PAID → PAID
                  → UNPAID → PARTIALLY_PAID → PAID
  Any non-terminal state → CANCELLED | REFUNDED (operator action)
  PAID, CANCELLED, REFUNDED are terminal.
*/
package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// CREATE
// =============================================================================

type ItemSpec struct {
	ServiceID   string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// InvoiceRequest carries the inputs of CreateInvoice. PolicyID and
// CostCenterID are optional.
type InvoiceRequest struct {
	PatientID    string
	Date         generic.Date
	Items        []ItemSpec
	PolicyID     string
	DiscountPct  decimal.Decimal
	CostCenterID string
}

func (b *Book) CreateInvoice(r Rules, req InvoiceRequest, at time.Time) (Invoice, error) {
	if req.PatientID == "" {
		return Invoice{}, generic.NewValidation("patientId", "patient is required")
	}
	if len(req.Items) == 0 {
		return Invoice{}, generic.NewValidation("items", "an invoice needs at least one item")
	}
	if !generic.ValidPercent(req.DiscountPct) {
		return Invoice{}, generic.NewValidation("discountPct", "discount must be between 0 and 100")
	}
	if req.CostCenterID != "" && b.costCenter(req.CostCenterID) == nil {
		return Invoice{}, generic.NewNotFound("cost center", req.CostCenterID)
	}
	var policy *InsurancePolicy
	if req.PolicyID != "" {
		policy = b.policy(req.PolicyID)
		if policy == nil {
			return Invoice{}, generic.NewNotFound("insurance policy", req.PolicyID)
		}
		if policy.PatientID != req.PatientID {
			return Invoice{}, generic.NewValidation("policyId",
				fmt.Sprintf("policy %s belongs to another patient", policy.ID))
		}
	}
	if req.Date.IsZero() {
		req.Date = generic.DateOf(at)
	}

	inv := Invoice{
		ID:             generic.NewID("inv"),
		Number:         b.nextInvoiceNumber(req.Date.Year()),
		Date:           req.Date,
		PatientID:      req.PatientID,
		PolicyID:       req.PolicyID,
		CostCenterID:   req.CostCenterID,
		DiscountPct:    req.DiscountPct,
		AmountPaid:     decimal.Zero,
		AmountRefunded: decimal.Zero,
	}

	lineTotals := make([]decimal.Decimal, 0, len(req.Items))
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case it.Quantity < 1:
			return Invoice{}, generic.NewValidation(field+".quantity", "quantity must be at least 1")
		case it.UnitPrice.IsNegative():
			return Invoice{}, generic.NewValidation(field+".unitPrice", "unit price must be non-negative")
		case !r.Currency.IsRounded(it.UnitPrice):
			return Invoice{}, generic.NewValidation(field+".unitPrice", "unit price is finer than the currency's smallest unit")
		}
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		lineTotals = append(lineTotals, line)
		inv.Items = append(inv.Items, InvoiceItem{
			ID:          generic.NewID("item"),
			InvoiceID:   inv.ID,
			ServiceID:   it.ServiceID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   line,
		})
	}

	inv.Subtotal = sum(lineTotals...)
	inv.DiscountAmt = r.Currency.Round(generic.PercentOf(inv.Subtotal, inv.DiscountPct))
	inv.Total = inv.Subtotal.Sub(inv.DiscountAmt)
	inv.InsuranceCoveragePct = decimal.Zero
	inv.InsuranceCoverageAmt = decimal.Zero

	if policy != nil && policy.Status == PolicyActive {
		coverage := r.Currency.Round(generic.PercentOf(inv.Total, policy.CoveragePct))
		if remaining := policy.Remaining(); remaining != nil && coverage.GreaterThan(*remaining) {
			coverage = *remaining
		}
		inv.InsuranceCoveragePct = policy.CoveragePct
		inv.InsuranceCoverageAmt = coverage
		policy.UsedAmt = policy.UsedAmt.Add(coverage)
	}

	inv.PatientResponsibility = inv.Total.Sub(inv.InsuranceCoverageAmt)
	inv.BalanceDue = inv.PatientResponsibility
	if inv.BalanceDue.IsPositive() {
		inv.Status = InvoicePending
	} else {
		inv.Status = InvoicePaid
	}

	b.Invoices = append(b.Invoices, inv)
	b.InvoiceItems = append(b.InvoiceItems, inv.Items...)
	return inv, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentRequest struct {
	Amount decimal.Decimal
	Method PaymentMethod // empty = CASH
	Date   generic.Date
}

// RecordPayment applies a payment and posts Dr cash/bank, Cr patient revenue.
func (b *Book) RecordPayment(r Rules, invoiceID string, req PaymentRequest, at time.Time) (Invoice, error) {
	inv := b.invoice(invoiceID)
	if inv == nil {
		return Invoice{}, generic.NewNotFound("invoice", invoiceID)
	}
	if req.Method == "" {
		req.Method = PayCash
	}
	if !req.Method.Valid() {
		return Invoice{}, generic.NewValidation("method", fmt.Sprintf("unknown payment method %q", req.Method))
	}
	if !req.Amount.IsPositive() {
		return Invoice{}, generic.NewValidation("amount", "payment amount must be positive")
	}
	if !r.Currency.IsRounded(req.Amount) {
		return Invoice{}, generic.NewValidation("amount", "amount is finer than the currency's smallest unit")
	}
	if !inv.Status.AcceptsPayment() {
		return Invoice{}, &generic.InvalidTransitionError{Kind: "invoice", From: string(inv.Status), Action: "record payment on"}
	}
	if req.Amount.GreaterThan(inv.BalanceDue) {
		return Invoice{}, &generic.OverpaymentError{Amount: req.Amount, Due: inv.BalanceDue}
	}

	cash, err := b.postingAccount(r.Accounts.accountFor(req.Method))
	if err != nil {
		return Invoice{}, err
	}
	revenue, err := b.postingAccount(r.Accounts.PatientRevenue)
	if err != nil {
		return Invoice{}, err
	}
	cashID, revenueID := cash.ID, revenue.ID

	paymentID := generic.NewID("pay")
	entry, err := b.PostEntry(r, DraftEntry{
		Date:        req.Date,
		Type:        EntryPayment,
		Description: fmt.Sprintf("Payment for %s (%s)", inv.Number, req.Method),
		SourceRef:   "payment:" + paymentID,
		Lines: []DraftLine{
			{AccountID: cashID, Debit: req.Amount, Credit: decimal.Zero},
			{AccountID: revenueID, CostCenterID: inv.CostCenterID, Debit: decimal.Zero, Credit: req.Amount},
		},
	}, at)
	if err != nil {
		return Invoice{}, err
	}

	inv.AmountPaid = inv.AmountPaid.Add(req.Amount)
	inv.BalanceDue = inv.PatientResponsibility.Sub(inv.AmountPaid)
	if inv.BalanceDue.IsZero() {
		inv.Status = InvoicePaid
	} else {
		inv.Status = InvoicePartiallyPaid
	}
	inv.Payments = append(inv.Payments, Payment{
		ID:             paymentID,
		Amount:         req.Amount,
		Method:         req.Method,
		PaidAt:         entry.Date,
		JournalEntryID: entry.ID,
	})
	return *inv, nil
}

// =============================================================================
// STATUS CHANGES
// =============================================================================

// MarkUnpaid flags a PENDING invoice as overdue.
func (b *Book) MarkUnpaid(invoiceID string) (Invoice, error) {
	inv := b.invoice(invoiceID)
	if inv == nil {
		return Invoice{}, generic.NewNotFound("invoice", invoiceID)
	}
	if inv.Status != InvoicePending {
		return Invoice{}, &generic.InvalidTransitionError{Kind: "invoice", From: string(inv.Status), Action: "mark unpaid"}
	}
	inv.Status = InvoiceUnpaid
	return *inv, nil
}

// Cancel is legal from PENDING, UNPAID and PARTIALLY_PAID. Posted payment
// entries are left alone; reverse them explicitly if needed.
func (b *Book) Cancel(invoiceID, reason string) (Invoice, error) {
	inv := b.invoice(invoiceID)
	if inv == nil {
		return Invoice{}, generic.NewNotFound("invoice", invoiceID)
	}
	if !inv.Status.AcceptsPayment() {
		return Invoice{}, &generic.InvalidTransitionError{Kind: "invoice", From: string(inv.Status), Action: "cancel"}
	}
	inv.Status = InvoiceCancelled
	inv.CancelReason = reason
	return *inv, nil
}

// Refund is legal from any non-terminal state. Money received so far is
// returned through the accounts it arrived in (Dr revenue, Cr cash/bank).
func (b *Book) Refund(r Rules, invoiceID, reason string, date generic.Date, at time.Time) (Invoice, error) {
	inv := b.invoice(invoiceID)
	if inv == nil {
		return Invoice{}, generic.NewNotFound("invoice", invoiceID)
	}
	if inv.Status.Terminal() {
		return Invoice{}, &generic.InvalidTransitionError{Kind: "invoice", From: string(inv.Status), Action: "refund"}
	}

	if inv.AmountPaid.IsPositive() {
		revenue, err := b.postingAccount(r.Accounts.PatientRevenue)
		if err != nil {
			return Invoice{}, err
		}
		revenueID := revenue.ID

		// One credit line per receiving account, in first-payment order.
		var order []string
		byAccount := map[string]decimal.Decimal{}
		for _, p := range inv.Payments {
			acct, err := b.postingAccount(r.Accounts.accountFor(p.Method))
			if err != nil {
				return Invoice{}, err
			}
			if _, seen := byAccount[acct.ID]; !seen {
				order = append(order, acct.ID)
				byAccount[acct.ID] = decimal.Zero
			}
			byAccount[acct.ID] = byAccount[acct.ID].Add(p.Amount)
		}

		lines := []DraftLine{{AccountID: revenueID, Debit: inv.AmountPaid, Credit: decimal.Zero}}
		for _, id := range order {
			lines = append(lines, DraftLine{AccountID: id, Debit: decimal.Zero, Credit: byAccount[id]})
		}
		desc := "Refund of " + inv.Number
		if reason != "" {
			desc += ": " + reason
		}
		if _, err := b.PostEntry(r, DraftEntry{
			Date:        date,
			Type:        EntryRefund,
			Description: desc,
			SourceRef:   "refund:" + inv.ID,
			Lines:       lines,
		}, at); err != nil {
			return Invoice{}, err
		}
	}

	inv.AmountRefunded = inv.AmountPaid
	inv.Status = InvoiceRefunded
	inv.CancelReason = reason
	return *inv, nil
}

// =============================================================================
// INSURANCE POLICIES
// =============================================================================

type PolicySpec struct {
	PatientID    string
	ProviderID   string
	PolicyNumber string
	CoveragePct  decimal.Decimal
	CoverageType string
	LimitAmt     *decimal.Decimal
	UsedAmt      decimal.Decimal
	Status       PolicyStatus // empty = ACTIVE
}

func (b *Book) CreatePolicy(s PolicySpec) (InsurancePolicy, error) {
	if s.PatientID == "" {
		return InsurancePolicy{}, generic.NewValidation("patientId", "patient is required")
	}
	if s.ProviderID == "" {
		return InsurancePolicy{}, generic.NewValidation("providerId", "provider is required")
	}
	if !generic.ValidPercent(s.CoveragePct) {
		return InsurancePolicy{}, generic.NewValidation("coveragePct", "coverage must be between 0 and 100")
	}
	if s.Status == "" {
		s.Status = PolicyActive
	}
	if !s.Status.Valid() {
		return InsurancePolicy{}, generic.NewValidation("status", fmt.Sprintf("unknown policy status %q", s.Status))
	}
	if s.UsedAmt.IsNegative() {
		return InsurancePolicy{}, generic.NewValidation("usedAmt", "used amount must be non-negative")
	}
	if s.LimitAmt != nil {
		if s.LimitAmt.IsNegative() {
			return InsurancePolicy{}, generic.NewValidation("limitAmt", "limit must be non-negative")
		}
		if s.UsedAmt.GreaterThan(*s.LimitAmt) {
			return InsurancePolicy{}, &generic.OverCoverageError{Limit: *s.LimitAmt, Requested: s.UsedAmt}
		}
	}

	p := InsurancePolicy{
		ID:           generic.NewID("pol"),
		PatientID:    s.PatientID,
		ProviderID:   s.ProviderID,
		PolicyNumber: s.PolicyNumber,
		CoveragePct:  s.CoveragePct,
		CoverageType: s.CoverageType,
		LimitAmt:     s.LimitAmt,
		UsedAmt:      s.UsedAmt,
		Status:       s.Status,
	}
	b.InsurancePolicies = append(b.InsurancePolicies, p)
	return p, nil
}

func (b *Book) Policy(id string) (InsurancePolicy, error) {
	p := b.policy(id)
	if p == nil {
		return InsurancePolicy{}, generic.NewNotFound("insurance policy", id)
	}
	return *p, nil
}

func (b *Book) SetPolicyStatus(id string, status PolicyStatus) (InsurancePolicy, error) {
	if !status.Valid() {
		return InsurancePolicy{}, generic.NewValidation("status", fmt.Sprintf("unknown policy status %q", status))
	}
	p := b.policy(id)
	if p == nil {
		return InsurancePolicy{}, generic.NewNotFound("insurance policy", id)
	}
	p.Status = status
	return *p, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (b *Book) Invoice(id string) (Invoice, error) {
	inv := b.invoice(id)
	if inv == nil {
		return Invoice{}, generic.NewNotFound("invoice", id)
	}
	return *inv, nil
}

// InvoicesByStatus returns invoices in status (all when empty), newest first.
func (b *Book) InvoicesByStatus(status InvoiceStatus) []Invoice {
	var out []Invoice
	for i := len(b.Invoices) - 1; i >= 0; i-- {
		if status == "" || b.Invoices[i].Status == status {
			out = append(out, b.Invoices[i])
		}
	}
	return out
}
