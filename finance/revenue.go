package finance

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// REVENUE SHARES
// =============================================================================

// ShareSpec allocates part of an invoice to a stakeholder. Set Pct, or
// Amount for a fixed share, or neither to use the stakeholder's default.
type ShareSpec struct {
	StakeholderID string
	Pct           *decimal.Decimal
	Amount        *decimal.Decimal
}

// pctScale is the precision of a percentage derived from a fixed amount.
const pctScale = 4

// AllocateShares adds shares to an invoice. Existing shares count toward
// the 100% and invoice-total bounds; either bound exceeded rejects the
// whole allocation.
func (b *Book) AllocateShares(r Rules, invoiceID string, specs []ShareSpec) ([]RevenueShare, error) {
	inv := b.invoice(invoiceID)
	if inv == nil {
		return nil, generic.NewNotFound("invoice", invoiceID)
	}
	if inv.Status == InvoiceCancelled || inv.Status == InvoiceRefunded {
		return nil, &generic.InvalidTransitionError{Kind: "invoice", From: string(inv.Status), Action: "allocate revenue on"}
	}
	if len(specs) == 0 {
		return nil, generic.NewValidation("shares", "at least one share is required")
	}

	totalPct, totalAmt := decimal.Zero, decimal.Zero
	for _, s := range b.sharesFor(invoiceID) {
		totalPct = totalPct.Add(s.Pct)
		totalAmt = totalAmt.Add(s.Amount)
	}

	shares := make([]RevenueShare, 0, len(specs))
	for i, spec := range specs {
		field := fmt.Sprintf("shares[%d]", i)
		sh := b.stakeholder(spec.StakeholderID)
		if sh == nil {
			return nil, generic.NewNotFound("stakeholder", spec.StakeholderID)
		}

		var pct, amount decimal.Decimal
		switch {
		case spec.Amount != nil:
			amount = *spec.Amount
			if amount.IsNegative() || !r.Currency.IsRounded(amount) {
				return nil, generic.NewValidation(field+".amount", "amount must be non-negative in the currency's smallest unit")
			}
			pct = decimal.Zero
			if inv.Total.IsPositive() {
				// Truncated so back-derived percentages never sum past 100.
				pct = amount.Mul(generic.Hundred).Div(inv.Total).Truncate(pctScale)
			}
		default:
			pct = sh.DefaultSharePct
			if spec.Pct != nil {
				pct = *spec.Pct
			}
			if !generic.ValidPercent(pct) {
				return nil, generic.NewValidation(field+".pct", "share must be between 0 and 100")
			}
			amount = r.Currency.Truncate(generic.PercentOf(inv.Total, pct))
		}

		totalPct = totalPct.Add(pct)
		totalAmt = totalAmt.Add(amount)
		shares = append(shares, RevenueShare{
			ID:            generic.NewID("share"),
			InvoiceID:     invoiceID,
			StakeholderID: sh.ID,
			Pct:           pct,
			Amount:        amount,
			PaymentStatus: SharePending,
			AmountPaid:    decimal.Zero,
		})
	}

	if totalPct.GreaterThan(generic.Hundred) || totalAmt.GreaterThan(inv.Total) {
		return nil, &generic.OverAllocationError{TotalPct: totalPct, TotalAmount: totalAmt, InvoiceTotal: inv.Total}
	}

	b.RevenueShares = append(b.RevenueShares, shares...)
	return shares, nil
}

// MarkSharePaid records a payout to a stakeholder. It is independent of
// the invoice status.
func (b *Book) MarkSharePaid(shareID string, amount decimal.Decimal) (RevenueShare, error) {
	s := b.share(shareID)
	if s == nil {
		return RevenueShare{}, generic.NewNotFound("revenue share", shareID)
	}
	if !amount.IsPositive() {
		return RevenueShare{}, generic.NewValidation("amount", "payout must be positive")
	}
	outstanding := s.Amount.Sub(s.AmountPaid)
	if amount.GreaterThan(outstanding) {
		return RevenueShare{}, &generic.OverpaymentError{Amount: amount, Due: outstanding}
	}

	s.AmountPaid = s.AmountPaid.Add(amount)
	if s.AmountPaid.Equal(s.Amount) {
		s.PaymentStatus = SharePaid
	}
	return *s, nil
}

func (b *Book) SharesForInvoice(invoiceID string) ([]RevenueShare, error) {
	if b.invoice(invoiceID) == nil {
		return nil, generic.NewNotFound("invoice", invoiceID)
	}
	return b.sharesFor(invoiceID), nil
}

// =============================================================================
// STAKEHOLDERS
// =============================================================================

type StakeholderSpec struct {
	Code            string
	Name            string
	Role            StakeholderRole
	DefaultSharePct decimal.Decimal
}

func (s StakeholderSpec) validate() error {
	if s.Code == "" {
		return generic.NewValidation("code", "stakeholder code is required")
	}
	if s.Name == "" {
		return generic.NewValidation("name", "stakeholder name is required")
	}
	if !s.Role.Valid() {
		return generic.NewValidation("role", fmt.Sprintf("unknown stakeholder role %q", s.Role))
	}
	if !generic.ValidPercent(s.DefaultSharePct) {
		return generic.NewValidation("defaultSharePct", "default share must be between 0 and 100")
	}
	return nil
}

func (b *Book) codeTaken(code, exceptID string) bool {
	for _, s := range b.Stakeholders {
		if s.Code == code && s.ID != exceptID {
			return true
		}
	}
	return false
}

func (b *Book) CreateStakeholder(spec StakeholderSpec) (Stakeholder, error) {
	if err := spec.validate(); err != nil {
		return Stakeholder{}, err
	}
	if b.codeTaken(spec.Code, "") {
		return Stakeholder{}, &generic.DuplicateKeyError{Kind: "stakeholder code", Key: spec.Code}
	}
	s := Stakeholder{
		ID:              generic.NewID("sh"),
		Code:            spec.Code,
		Name:            spec.Name,
		Role:            spec.Role,
		DefaultSharePct: spec.DefaultSharePct,
	}
	b.Stakeholders = append(b.Stakeholders, s)
	return s, nil
}

func (b *Book) UpdateStakeholder(id string, spec StakeholderSpec) (Stakeholder, error) {
	s := b.stakeholder(id)
	if s == nil {
		return Stakeholder{}, generic.NewNotFound("stakeholder", id)
	}
	if err := spec.validate(); err != nil {
		return Stakeholder{}, err
	}
	if b.codeTaken(spec.Code, id) {
		return Stakeholder{}, &generic.DuplicateKeyError{Kind: "stakeholder code", Key: spec.Code}
	}
	s.Code, s.Name, s.Role, s.DefaultSharePct = spec.Code, spec.Name, spec.Role, spec.DefaultSharePct
	return *s, nil
}

// DeleteStakeholder refuses while any revenue share references the stakeholder.
func (b *Book) DeleteStakeholder(id string) error {
	idx := -1
	for i := range b.Stakeholders {
		if b.Stakeholders[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return generic.NewNotFound("stakeholder", id)
	}
	for _, s := range b.RevenueShares {
		if s.StakeholderID == id {
			return generic.NewValidation("id", "stakeholder has revenue shares and cannot be deleted")
		}
	}
	b.Stakeholders = append(b.Stakeholders[:idx], b.Stakeholders[idx+1:]...)
	return nil
}
