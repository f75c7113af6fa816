/*
Package integration keeps the HR-side modules and finance eventually
consistent.

PURPOSE:
  HR, attendance and payroll collaborators call the event hooks on Manager
  after their own operation succeeded. Each hook produces its side effects
  (leave balances, attendance rows, pending queue entries) in a single unit
  of work over the HR and integration snapshots.

IDEMPOTENCY:
  Hooks are keyed by a natural key so re-delivery is a no-op:

  | Hook                  | Natural key                       |
  |-----------------------|-----------------------------------|
  | OnEmployeeCreated     | employee + year, employee + today |
  | OnAttendanceProcessed | date                              |
  | OnLeaveApproved       | employee + each leave day         |
  | OnPurchaseReceived    | purchase order                    |
  | OnPayrollProcessed    | none, every run is queued         |

FAILURE REPORTING:
  Hooks never return an error. A failed side effect must not fail the
  operation that triggered it, so the failure is reported in Result and
  logged, and the snapshots are left untouched.

SEE ALSO:
  - sync.go: Posts queued payroll and inventory actions to the ledger
*/
package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/hospital-ledger/generic"
	"github.com/warp/hospital-ledger/hr"
)

// Result reports the outcome of an event hook.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Created int    `json:"created"`
	Skipped bool   `json:"skipped,omitempty"`

	Err error `json:"-"`
}

// Manager runs the integration event hooks.
type Manager struct {
	uow      *generic.UnitOfWork
	currency generic.Currency
	weekend  []time.Weekday
	log      *zap.Logger
	now      func() time.Time
}

// NewManager creates a manager. Queued amounts must fit cur's smallest
// unit. weekend lists the non-working weekdays; nil means Saturday and
// Sunday.
func NewManager(uow *generic.UnitOfWork, cur generic.Currency, weekend []time.Weekday, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{uow: uow, currency: cur, weekend: weekend, log: log.Named("integration"), now: time.Now}
}

// SetClock replaces the time source (tests).
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func (m *Manager) precisionMessage() string {
	return fmt.Sprintf("amount has more than %d decimal places", m.currency.Fraction())
}

type hookFunc func(r *hr.Records, q *Queues, res *Result) error

// run executes fn in one unit of work and converts its error into a Result.
func (m *Manager) run(ctx context.Context, hook string, fields []zap.Field, fn hookFunc) Result {
	var res Result
	err := m.uow.Update(ctx, func(tx *generic.Tx) error {
		records, err := hr.LoadRecords(tx)
		if err != nil {
			return err
		}
		q, err := LoadQueues(tx)
		if err != nil {
			return err
		}
		return fn(records, q, &res)
	})

	if err != nil {
		m.log.Warn(hook+" failed", append(fields, zap.Error(err))...)
		return Result{Success: false, Error: err.Error(), Err: err}
	}
	res.Success = true
	m.log.Info(hook+" handled", append(fields, zap.Int("created", res.Created), zap.Bool("skipped", res.Skipped))...)
	return res
}

// =============================================================================
// EVENT HOOKS
// =============================================================================

// OnEmployeeCreated creates the employee's leave balance for the current
// year and today's PRESENT attendance row, each only if missing.
func (m *Manager) OnEmployeeCreated(ctx context.Context, employeeID string) Result {
	return m.run(ctx, "employee created", []zap.Field{zap.String("employee_id", employeeID)},
		func(r *hr.Records, _ *Queues, res *Result) error {
			emp, ok := r.Employee(employeeID)
			if !ok {
				return generic.NewNotFound("employee", employeeID)
			}
			today := generic.DateOf(m.now())

			err := r.AddBalance(hr.NewLeaveBalance(emp, today.Year()))
			if err := tolerateDuplicate(err, res); err != nil {
				return err
			}
			err = r.AddSummary(hr.AttendanceSummary{
				ID:         generic.NewID("att"),
				EmployeeID: emp.ID,
				Date:       today,
				Status:     hr.Present,
				Source:     "employee_created",
			})
			if err := tolerateDuplicate(err, res); err != nil {
				return err
			}
			res.Skipped = res.Created == 0
			return nil
		})
}

// OnAttendanceProcessed queues one PAYROLL_UPDATE per processed date.
func (m *Manager) OnAttendanceProcessed(ctx context.Context, date generic.Date, employeeIDs []string) Result {
	key := date.String()
	return m.run(ctx, "attendance processed", []zap.Field{zap.String("key", key), zap.Int("employees", len(employeeIDs))},
		func(_ *hr.Records, q *Queues, res *Result) error {
			if date.IsZero() {
				return generic.NewValidation("date", "date is required")
			}
			if hasKey(q.PayrollUpdates, key) {
				res.Skipped = true
				return nil
			}
			a, err := newAction(KindPayrollUpdate, key, PayrollUpdate{Date: date, EmployeeIDs: employeeIDs}, m.now())
			if err != nil {
				return err
			}
			q.PayrollUpdates = append(q.PayrollUpdates, a)
			res.Created = 1
			return nil
		})
}

// OnLeaveApproved creates a LEAVE attendance row for every working day of
// the request that has no row yet. Created is the number of rows added.
func (m *Manager) OnLeaveApproved(ctx context.Context, leaveRequestID string) Result {
	return m.run(ctx, "leave approved", []zap.Field{zap.String("leave_request_id", leaveRequestID)},
		func(r *hr.Records, _ *Queues, res *Result) error {
			req, ok := r.LeaveRequest(leaveRequestID)
			if !ok {
				return generic.NewNotFound("leave request", leaveRequestID)
			}
			if req.Status == hr.RequestRejected || req.Status == hr.RequestCancelled {
				return &generic.InvalidTransitionError{Kind: "leave request", From: string(req.Status), Action: "apply"}
			}
			if _, ok := r.Employee(req.EmployeeID); !ok {
				return generic.NewNotFound("employee", req.EmployeeID)
			}
			span := req.Range()
			if err := span.Validate(); err != nil {
				return err
			}

			cal := generic.NewCalendar(m.weekend, r.Leaves.Holidays)
			for _, day := range cal.Workdays(span) {
				err := r.AddSummary(hr.AttendanceSummary{
					ID:             generic.NewID("att"),
					EmployeeID:     req.EmployeeID,
					Date:           day,
					Status:         hr.OnLeave,
					LeaveRequestID: req.ID,
					Source:         "leave_approved",
				})
				if err := tolerateDuplicate(err, res); err != nil {
					return err
				}
			}
			res.Skipped = res.Created == 0
			return nil
		})
}

// OnPayrollProcessed queues a PAYROLL_TO_FINANCE action. Runs for the same
// period are separate events and are all queued.
func (m *Manager) OnPayrollProcessed(ctx context.Context, period string, totalAmount decimal.Decimal, employeeCount int) Result {
	return m.run(ctx, "payroll processed", []zap.Field{zap.String("key", period), zap.String("total", totalAmount.String())},
		func(_ *hr.Records, q *Queues, res *Result) error {
			switch {
			case strings.TrimSpace(period) == "":
				return generic.NewValidation("period", "period is required")
			case totalAmount.IsNegative():
				return generic.NewValidation("totalAmount", "total must be non-negative")
			case !m.currency.IsRounded(totalAmount):
				return generic.NewValidation("totalAmount", m.precisionMessage())
			case employeeCount < 0:
				return generic.NewValidation("employeeCount", "employee count must be non-negative")
			}
			a, err := newAction(KindPayrollToFinance, period,
				PayrollRun{Period: period, TotalAmount: totalAmount, EmployeeCount: employeeCount}, m.now())
			if err != nil {
				return err
			}
			q.PayrollToFinance = append(q.PayrollToFinance, a)
			res.Created = 1
			return nil
		})
}

// OnPurchaseReceived queues RECEIVED_PURCHASE and INVENTORY_EXPENSE
// actions for a received purchase order, once per order.
func (m *Manager) OnPurchaseReceived(ctx context.Context, p PurchaseReceipt) Result {
	return m.run(ctx, "purchase received", []zap.Field{zap.String("key", p.PurchaseOrderID)},
		func(_ *hr.Records, q *Queues, res *Result) error {
			switch {
			case p.PurchaseOrderID == "":
				return generic.NewValidation("purchaseOrderId", "purchase order is required")
			case !p.Amount.IsPositive():
				return generic.NewValidation("amount", "amount must be positive")
			case !m.currency.IsRounded(p.Amount):
				return generic.NewValidation("amount", m.precisionMessage())
			}
			if p.Date.IsZero() {
				p.Date = generic.DateOf(m.now())
			}
			if hasKey(q.ReceivedPurchases, p.PurchaseOrderID) {
				res.Skipped = true
				return nil
			}
			received, err := newAction(KindReceivedPurchase, p.PurchaseOrderID, p, m.now())
			if err != nil {
				return err
			}
			expense, err := newAction(KindInventoryExpense, p.PurchaseOrderID, p, m.now())
			if err != nil {
				return err
			}
			q.ReceivedPurchases = append(q.ReceivedPurchases, received)
			q.InventoryExpenses = append(q.InventoryExpenses, expense)
			res.Created = 2
			return nil
		})
}

// tolerateDuplicate counts a successful creation and swallows the
// duplicate-key signal.
func tolerateDuplicate(err error, res *Result) error {
	switch {
	case err == nil:
		res.Created++
		return nil
	case errors.Is(err, generic.ErrDuplicateKey):
		return nil
	default:
		return err
	}
}

// =============================================================================
// PENDING QUEUES
// =============================================================================

// GetPendingIntegrations returns a copy of every queue.
func (m *Manager) GetPendingIntegrations(ctx context.Context) (Queues, error) {
	var out Queues
	err := m.uow.View(ctx, func(tx *generic.Tx) error {
		q, err := LoadQueues(tx)
		if err != nil {
			return err
		}
		out = *q
		return nil
	})
	return out, err
}

func (m *Manager) GetPendingCount(ctx context.Context) (int, error) {
	q, err := m.GetPendingIntegrations(ctx)
	if err != nil {
		return 0, err
	}
	return q.Count(), nil
}

// ClearPendingIntegrations empties every queue and returns how many
// actions were dropped.
func (m *Manager) ClearPendingIntegrations(ctx context.Context) (int, error) {
	var cleared int
	err := m.uow.Update(ctx, func(tx *generic.Tx) error {
		q, err := LoadQueues(tx)
		if err != nil {
			return err
		}
		cleared = q.Count()
		q.Clear()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear pending integrations: %w", err)
	}
	m.log.Info("pending integrations cleared", zap.Int("cleared", cleared))
	return cleared, nil
}
