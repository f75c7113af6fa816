package integration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/hospital-ledger/finance"
	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// FINANCE SYNC - Pending payroll/inventory actions to journal entries
// =============================================================================

// SyncReport summarizes one PostPending run.
type SyncReport struct {
	Posted  int      `json:"posted"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Syncer posts queued PAYROLL_TO_FINANCE and INVENTORY_EXPENSE actions to
// the ledger. Each action's entry carries SourceRef "payroll:<id>" or
// "inventory:<id>", so replaying the queue posts nothing twice. Queues are
// read, never cleared.
type Syncer struct {
	uow   *generic.UnitOfWork
	rules finance.Rules
	log   *zap.Logger
	now   func() time.Time
}

func NewSyncer(uow *generic.UnitOfWork, rules finance.Rules, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{uow: uow, rules: rules, log: log.Named("sync"), now: time.Now}
}

// SetClock replaces the time source (tests).
func (s *Syncer) SetClock(now func() time.Time) { s.now = now }

// PostPending posts every queued action that has no entry yet. An action
// that cannot be posted is counted as failed and does not stop the run;
// only a store failure aborts it.
func (s *Syncer) PostPending(ctx context.Context) (SyncReport, error) {
	var rep SyncReport
	err := s.uow.Update(ctx, func(tx *generic.Tx) error {
		rep = SyncReport{}
		book, err := finance.LoadBook(tx)
		if err != nil {
			return err
		}
		q, err := LoadQueues(tx)
		if err != nil {
			return err
		}
		at := s.now()

		for _, a := range q.PayrollToFinance {
			s.apply(&rep, book, a, "payroll:"+a.ID, func() (finance.Transfer, error) {
				var run PayrollRun
				if err := a.Decode(&run); err != nil {
					return finance.Transfer{}, err
				}
				return finance.Transfer{
					Type:          finance.EntryPayroll,
					Date:          generic.DateOf(a.QueuedAt),
					Description:   fmt.Sprintf("Payroll %s (%d employees)", run.Period, run.EmployeeCount),
					DebitAccount:  s.rules.Accounts.SalariesExpense,
					CreditAccount: s.rules.Accounts.SalariesPayable,
					Amount:        run.TotalAmount,
				}, nil
			}, at)
		}
		for _, a := range q.InventoryExpenses {
			s.apply(&rep, book, a, "inventory:"+a.ID, func() (finance.Transfer, error) {
				var p PurchaseReceipt
				if err := a.Decode(&p); err != nil {
					return finance.Transfer{}, err
				}
				return finance.Transfer{
					Type:          finance.EntryInventory,
					Date:          p.Date,
					Description:   fmt.Sprintf("Supplies received, PO %s from %s", p.PurchaseOrderID, p.SupplierID),
					DebitAccount:  s.rules.Accounts.SuppliesExpense,
					CreditAccount: s.rules.Accounts.AccountsPayable,
					Amount:        p.Amount,
				}, nil
			}, at)
		}
		return nil
	})
	if err != nil {
		s.log.Warn("finance sync failed", zap.Error(err))
		return SyncReport{}, err
	}
	s.log.Info("finance sync finished",
		zap.Int("posted", rep.Posted), zap.Int("skipped", rep.Skipped), zap.Int("failed", rep.Failed))
	return rep, nil
}

func (s *Syncer) apply(rep *SyncReport, book *finance.Book, a PendingAction, ref string,
	build func() (finance.Transfer, error), at time.Time) {
	if _, done := book.EntryBySourceRef(ref); done {
		rep.Skipped++
		return
	}
	t, err := build()
	if err == nil && t.Amount.IsZero() {
		rep.Skipped++
		return
	}
	if err == nil {
		t.SourceRef = ref
		_, err = book.PostTransfer(s.rules, t, at)
	}
	if err != nil {
		// A rejected entry leaves the book unchanged, so the run goes on.
		rep.Failed++
		rep.Errors = append(rep.Errors, fmt.Sprintf("%s %s: %v", a.Kind, a.ID, err))
		s.log.Warn("pending action not posted", zap.String("action_id", a.ID), zap.String("kind", string(a.Kind)), zap.Error(err))
		return
	}
	rep.Posted++
}
