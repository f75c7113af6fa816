package finance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// SERVICE - Transactional entry points
// =============================================================================

// Service runs every ledger and invoice operation as one unit of work over
// the finance snapshot. Reads use View; writes use Update, so a failed
// validation or a failed store write leaves the persisted book untouched.
type Service struct {
	uow   *generic.UnitOfWork
	rules Rules
	log   *zap.Logger
	now   func() time.Time
}

func NewService(uow *generic.UnitOfWork, rules Rules, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{uow: uow, rules: rules, log: log.Named("finance"), now: time.Now}
}

// SetClock replaces the time source (tests).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Rules() Rules { return s.rules }

func (s *Service) update(ctx context.Context, fn func(b *Book) error) error {
	return s.uow.Update(ctx, func(tx *generic.Tx) error {
		b, err := LoadBook(tx)
		if err != nil {
			return err
		}
		return fn(b)
	})
}

func (s *Service) view(ctx context.Context, fn func(b *Book) error) error {
	return s.uow.View(ctx, func(tx *generic.Tx) error {
		b, err := LoadBook(tx)
		if err != nil {
			return err
		}
		return fn(b)
	})
}

func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	if generic.IsClientError(err) || generic.IsNotFound(err) {
		s.log.Debug(op+" rejected", append(fields, zap.Error(err))...)
	} else {
		s.log.Warn(op+" failed", append(fields, zap.Error(err))...)
	}
	return err
}

// =============================================================================
// LEDGER
// =============================================================================

func (s *Service) PostJournalEntry(ctx context.Context, d DraftEntry) (JournalEntry, error) {
	var out JournalEntry
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.PostEntry(s.rules, d, s.now())
		return err
	})
	if err != nil {
		return JournalEntry{}, s.fail("post journal entry", err, zap.String("source_ref", d.SourceRef))
	}
	s.log.Info("journal entry posted",
		zap.String("entry_number", out.Number),
		zap.String("type", string(out.Type)),
		zap.String("total", out.TotalDebits.String()))
	return out, nil
}

func (s *Service) SaveDraftJournalEntry(ctx context.Context, d DraftEntry) (JournalEntry, error) {
	var out JournalEntry
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.SaveDraft(s.rules, d, s.now())
		return err
	})
	if err != nil {
		return JournalEntry{}, s.fail("save draft entry", err)
	}
	return out, nil
}

func (s *Service) PostDraftJournalEntry(ctx context.Context, id string) (JournalEntry, error) {
	var out JournalEntry
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.PostDraft(id, s.now())
		return err
	})
	if err != nil {
		return JournalEntry{}, s.fail("post draft entry", err, zap.String("entry_id", id))
	}
	s.log.Info("draft entry posted", zap.String("entry_number", out.Number))
	return out, nil
}

func (s *Service) ReverseJournalEntry(ctx context.Context, id string, date generic.Date, reason string) (JournalEntry, error) {
	var out JournalEntry
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.Reverse(s.rules, id, date, reason, s.now())
		return err
	})
	if err != nil {
		return JournalEntry{}, s.fail("reverse journal entry", err, zap.String("entry_id", id))
	}
	s.log.Info("journal entry reversed", zap.String("entry_id", id), zap.String("entry_number", out.Number))
	return out, nil
}

func (s *Service) GetAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := s.view(ctx, func(b *Book) (err error) {
		out, err = b.AccountBalance(accountID)
		return err
	})
	return out, err
}

func (s *Service) ListJournalEntriesByDateRange(ctx context.Context, from, to generic.Date) ([]JournalEntry, error) {
	var out []JournalEntry
	err := s.view(ctx, func(b *Book) error {
		out = b.EntriesBetween(from, to)
		return nil
	})
	return out, err
}

func (s *Service) ListAccountsByType(ctx context.Context, t AccountType) ([]Account, error) {
	if t != "" && !t.Valid() {
		return nil, generic.NewValidation("type", "unknown account type "+string(t))
	}
	var out []Account
	err := s.view(ctx, func(b *Book) error {
		out = b.AccountsByType(t)
		return nil
	})
	return out, err
}

func (s *Service) CreateAccount(ctx context.Context, spec AccountSpec) (Account, error) {
	var out Account
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.CreateAccount(spec)
		return err
	})
	if err != nil {
		return Account{}, s.fail("create account", err, zap.String("number", spec.Number))
	}
	return out, nil
}

func (s *Service) CreateCostCenter(ctx context.Context, spec CostCenterSpec) (CostCenter, error) {
	var out CostCenter
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.CreateCostCenter(spec)
		return err
	})
	if err != nil {
		return CostCenter{}, s.fail("create cost center", err, zap.String("code", spec.Code))
	}
	return out, nil
}

func (s *Service) ListCostCenters(ctx context.Context) ([]CostCenter, error) {
	var out []CostCenter
	err := s.view(ctx, func(b *Book) error {
		out = append(out, b.CostCenters...)
		return nil
	})
	return out, err
}

func (s *Service) TrialBalance(ctx context.Context) (TrialBalance, error) {
	var out TrialBalance
	err := s.view(ctx, func(b *Book) error {
		out = b.TrialBalance()
		return nil
	})
	return out, err
}

func (s *Service) CostCenterUtilization(ctx context.Context, id string) (Utilization, error) {
	var out Utilization
	err := s.view(ctx, func(b *Book) (err error) {
		out, err = b.CostCenterUtilization(id)
		return err
	})
	return out, err
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Service) CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	var out Invoice
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.CreateInvoice(s.rules, req, s.now())
		return err
	})
	if err != nil {
		return Invoice{}, s.fail("create invoice", err, zap.String("patient_id", req.PatientID))
	}
	s.log.Info("invoice created",
		zap.String("invoice_id", out.ID),
		zap.String("number", out.Number),
		zap.String("total", out.Total.String()),
		zap.String("coverage", out.InsuranceCoverageAmt.String()))
	return out, nil
}

func (s *Service) RecordPayment(ctx context.Context, invoiceID string, req PaymentRequest) (Invoice, error) {
	var out Invoice
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.RecordPayment(s.rules, invoiceID, req, s.now())
		return err
	})
	if err != nil {
		return Invoice{}, s.fail("record payment", err, zap.String("invoice_id", invoiceID))
	}
	s.log.Info("payment recorded",
		zap.String("invoice_id", invoiceID),
		zap.String("amount", req.Amount.String()),
		zap.String("status", string(out.Status)))
	return out, nil
}

func (s *Service) MarkInvoiceUnpaid(ctx context.Context, invoiceID string) (Invoice, error) {
	var out Invoice
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.MarkUnpaid(invoiceID)
		return err
	})
	if err != nil {
		return Invoice{}, s.fail("mark invoice unpaid", err, zap.String("invoice_id", invoiceID))
	}
	return out, nil
}

func (s *Service) CancelInvoice(ctx context.Context, invoiceID, reason string) (Invoice, error) {
	var out Invoice
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.Cancel(invoiceID, reason)
		return err
	})
	if err != nil {
		return Invoice{}, s.fail("cancel invoice", err, zap.String("invoice_id", invoiceID))
	}
	s.log.Info("invoice cancelled", zap.String("invoice_id", invoiceID), zap.String("reason", reason))
	return out, nil
}

func (s *Service) RefundInvoice(ctx context.Context, invoiceID, reason string, date generic.Date) (Invoice, error) {
	var out Invoice
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.Refund(s.rules, invoiceID, reason, date, s.now())
		return err
	})
	if err != nil {
		return Invoice{}, s.fail("refund invoice", err, zap.String("invoice_id", invoiceID))
	}
	s.log.Info("invoice refunded", zap.String("invoice_id", invoiceID), zap.String("amount", out.AmountRefunded.String()))
	return out, nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	var out Invoice
	err := s.view(ctx, func(b *Book) (err error) {
		out, err = b.Invoice(id)
		return err
	})
	return out, err
}

func (s *Service) ListInvoices(ctx context.Context, status InvoiceStatus) ([]Invoice, error) {
	if status != "" && !status.Valid() {
		return nil, generic.NewValidation("status", "unknown invoice status "+string(status))
	}
	var out []Invoice
	err := s.view(ctx, func(b *Book) error {
		out = b.InvoicesByStatus(status)
		return nil
	})
	return out, err
}

// =============================================================================
// INSURANCE
// =============================================================================

func (s *Service) CreateInsurancePolicy(ctx context.Context, spec PolicySpec) (InsurancePolicy, error) {
	var out InsurancePolicy
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.CreatePolicy(spec)
		return err
	})
	if err != nil {
		return InsurancePolicy{}, s.fail("create insurance policy", err, zap.String("patient_id", spec.PatientID))
	}
	return out, nil
}

func (s *Service) GetInsurancePolicy(ctx context.Context, id string) (InsurancePolicy, error) {
	var out InsurancePolicy
	err := s.view(ctx, func(b *Book) (err error) {
		out, err = b.Policy(id)
		return err
	})
	return out, err
}

func (s *Service) SetPolicyStatus(ctx context.Context, id string, status PolicyStatus) (InsurancePolicy, error) {
	var out InsurancePolicy
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.SetPolicyStatus(id, status)
		return err
	})
	if err != nil {
		return InsurancePolicy{}, s.fail("set policy status", err, zap.String("policy_id", id))
	}
	return out, nil
}

// =============================================================================
// REVENUE SHARING
// =============================================================================

func (s *Service) AllocateRevenueShares(ctx context.Context, invoiceID string, specs []ShareSpec) ([]RevenueShare, error) {
	var out []RevenueShare
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.AllocateShares(s.rules, invoiceID, specs)
		return err
	})
	if err != nil {
		return nil, s.fail("allocate revenue shares", err, zap.String("invoice_id", invoiceID))
	}
	s.log.Info("revenue shares allocated", zap.String("invoice_id", invoiceID), zap.Int("count", len(out)))
	return out, nil
}

func (s *Service) MarkSharePaid(ctx context.Context, shareID string, amount decimal.Decimal) (RevenueShare, error) {
	var out RevenueShare
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.MarkSharePaid(shareID, amount)
		return err
	})
	if err != nil {
		return RevenueShare{}, s.fail("mark share paid", err, zap.String("share_id", shareID))
	}
	return out, nil
}

func (s *Service) ListRevenueShares(ctx context.Context, invoiceID string) ([]RevenueShare, error) {
	var out []RevenueShare
	err := s.view(ctx, func(b *Book) (err error) {
		out, err = b.SharesForInvoice(invoiceID)
		return err
	})
	return out, err
}

func (s *Service) CreateStakeholder(ctx context.Context, spec StakeholderSpec) (Stakeholder, error) {
	var out Stakeholder
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.CreateStakeholder(spec)
		return err
	})
	if err != nil {
		return Stakeholder{}, s.fail("create stakeholder", err, zap.String("code", spec.Code))
	}
	return out, nil
}

func (s *Service) UpdateStakeholder(ctx context.Context, id string, spec StakeholderSpec) (Stakeholder, error) {
	var out Stakeholder
	err := s.update(ctx, func(b *Book) (err error) {
		out, err = b.UpdateStakeholder(id, spec)
		return err
	})
	if err != nil {
		return Stakeholder{}, s.fail("update stakeholder", err, zap.String("stakeholder_id", id))
	}
	return out, nil
}

func (s *Service) DeleteStakeholder(ctx context.Context, id string) error {
	err := s.update(ctx, func(b *Book) error {
		return b.DeleteStakeholder(id)
	})
	if err != nil {
		return s.fail("delete stakeholder", err, zap.String("stakeholder_id", id))
	}
	return nil
}

func (s *Service) ListStakeholders(ctx context.Context) ([]Stakeholder, error) {
	var out []Stakeholder
	err := s.view(ctx, func(b *Book) error {
		out = append(out, b.Stakeholders...)
		return nil
	})
	return out, err
}
