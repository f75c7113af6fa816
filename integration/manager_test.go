package integration_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/hospital-ledger/generic"
	"github.com/warp/hospital-ledger/generic/store"
	"github.com/warp/hospital-ledger/hr"
	"github.com/warp/hospital-ledger/integration"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Monday.
var testNow = time.Date(2025, time.March, 10, 8, 30, 0, 0, time.UTC)

const hrBlob = `{
  "employees": [
    {"id": "emp-ana", "name": "Dr. Ana Ruiz", "category": "MEDICAL", "grade": "MID", "gender": "FEMALE", "employment_status": "ACTIVE"},
    {"id": "emp-ben", "name": "Ben Okafor", "category": "ADMINISTRATIVE", "grade": "SENIOR", "gender": "MALE", "employment_status": "ACTIVE"}
  ],
  "departments": [{"id": "dep-card", "name": "Cardiology"}],
  "leaves": {
    "leave_requests": [
      {"id": "lr-week", "employee_id": "emp-ana", "leave_type": "ANNUAL", "start_date": "2025-03-04", "end_date": "2025-03-08", "status": "APPROVED"},
      {"id": "lr-holiday", "employee_id": "emp-ana", "leave_type": "SICK", "start_date": "2025-03-10", "end_date": "2025-03-12", "status": "APPROVED"},
      {"id": "lr-rejected", "employee_id": "emp-ben", "leave_type": "ANNUAL", "start_date": "2025-03-04", "end_date": "2025-03-05", "status": "REJECTED"},
      {"id": "lr-backwards", "employee_id": "emp-ben", "leave_type": "ANNUAL", "start_date": "2025-03-06", "end_date": "2025-03-04", "status": "APPROVED"},
      {"id": "lr-ghost", "employee_id": "emp-gone", "leave_type": "ANNUAL", "start_date": "2025-03-04", "end_date": "2025-03-05", "status": "APPROVED"}
    ],
    "leave_balances": [],
    "leave_types": [{"code": "ANNUAL", "name": "Annual leave"}],
    "holidays": [{"id": "hol-1", "date": "2025-03-11", "name": "Founders Day", "recurring": false}]
  },
  "attendance": {"processed_summaries": []}
}`

type fixture struct {
	mgr *integration.Manager
	mem *store.Memory
	uow *generic.UnitOfWork
}

func newFixture(t *testing.T, weekend []time.Weekday) *fixture {
	t.Helper()
	mem := store.NewMemory()
	mem.Put(generic.KeyHR, []byte(hrBlob))
	mem.Put(generic.KeyIntegrations, []byte(`{"pendingInvoices": [{"invoiceId": "inv-1"}], "lastSync": "never"}`))
	uow := generic.NewUnitOfWork(mem)
	mgr := integration.NewManager(uow, generic.MustCurrency(generic.DefaultCurrencyCode), weekend, zap.NewNop())
	mgr.SetClock(func() time.Time { return testNow })
	return &fixture{mgr: mgr, mem: mem, uow: uow}
}

func (f *fixture) records(t *testing.T) *hr.Records {
	t.Helper()
	var out *hr.Records
	require.NoError(t, f.uow.View(context.Background(), func(tx *generic.Tx) error {
		r, err := hr.LoadRecords(tx)
		out = r
		return err
	}))
	return out
}

func (f *fixture) pending(t *testing.T) integration.Queues {
	t.Helper()
	q, err := f.mgr.GetPendingIntegrations(context.Background())
	require.NoError(t, err)
	return q
}

// =============================================================================
// EMPLOYEE CREATED
// =============================================================================

func TestOnEmployeeCreated_Idempotent(t *testing.T) {
	// GIVEN: A new medical employee with no balance or attendance
	// WHEN: The hook runs twice
	// THEN: Exactly one LeaveBalance (2025, annual 30, maternity 90) and one
	//       PRESENT row for today exist; the second run is a skipped no-op

	f := newFixture(t, nil)
	ctx := context.Background()

	res := f.mgr.OnEmployeeCreated(ctx, "emp-ana")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Created)
	assert.False(t, res.Skipped)

	res = f.mgr.OnEmployeeCreated(ctx, "emp-ana")
	require.True(t, res.Success, res.Error)
	assert.Zero(t, res.Created)
	assert.True(t, res.Skipped)

	r := f.records(t)
	balances := r.BalancesFor("emp-ana")
	require.Len(t, balances, 1)
	assert.Equal(t, 2025, balances[0].Year)
	assert.Equal(t, 30, balances[0].Annual)
	assert.Equal(t, 90, balances[0].Maternity)
	assert.Zero(t, balances[0].Paternity)

	rows := r.SummariesFor("emp-ana")
	require.Len(t, rows, 1)
	assert.Equal(t, hr.Present, rows[0].Status)
	assert.Equal(t, "2025-03-10", rows[0].Date.String())
}

func TestOnEmployeeCreated_SeniorGrade(t *testing.T) {
	f := newFixture(t, nil)
	res := f.mgr.OnEmployeeCreated(context.Background(), "emp-ben")
	require.True(t, res.Success, res.Error)

	b := f.records(t).BalancesFor("emp-ben")
	require.Len(t, b, 1)
	assert.Equal(t, 25, b[0].Annual)
	assert.Equal(t, 3, b[0].Paternity)
}

func TestOnEmployeeCreated_UnknownEmployeeReported(t *testing.T) {
	f := newFixture(t, nil)
	res := f.mgr.OnEmployeeCreated(context.Background(), "emp-nobody")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.ErrorIs(t, res.Err, generic.ErrNotFound)
}

func TestOnEmployeeCreated_StoreFailureLeavesSnapshotUntouched(t *testing.T) {
	f := newFixture(t, nil)
	f.mem.FailWrites = errors.New("quota exceeded")

	res := f.mgr.OnEmployeeCreated(context.Background(), "emp-ana")
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, generic.ErrPersistence)

	f.mem.FailWrites = nil
	assert.Empty(t, f.records(t).BalancesFor("emp-ana"))
}

// =============================================================================
// LEAVE APPROVED
// =============================================================================

func TestOnLeaveApproved_SkipsWeekendAndIsReplayable(t *testing.T) {
	// GIVEN: Leave Tue 2025-03-04 .. Sat 2025-03-08
	// WHEN: The approval hook runs, then runs again
	// THEN: 4 LEAVE rows (Saturday excluded), then 0 more

	f := newFixture(t, nil)
	ctx := context.Background()

	res := f.mgr.OnLeaveApproved(ctx, "lr-week")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 4, res.Created)

	res = f.mgr.OnLeaveApproved(ctx, "lr-week")
	require.True(t, res.Success, res.Error)
	assert.Zero(t, res.Created)
	assert.True(t, res.Skipped)

	rows := f.records(t).SummariesFor("emp-ana")
	require.Len(t, rows, 4)
	var days []string
	for _, r := range rows {
		assert.Equal(t, hr.OnLeave, r.Status)
		assert.Equal(t, "lr-week", r.LeaveRequestID)
		days = append(days, r.Date.String())
	}
	assert.Equal(t, []string{"2025-03-04", "2025-03-05", "2025-03-06", "2025-03-07"}, days)
}

func TestOnLeaveApproved_HolidayAndExistingRow(t *testing.T) {
	// GIVEN: Today's PRESENT row already exists and 2025-03-11 is a holiday
	// WHEN: Approving leave Mon 03-10 .. Wed 03-12
	// THEN: Only 03-12 gets a new row

	f := newFixture(t, nil)
	ctx := context.Background()
	require.True(t, f.mgr.OnEmployeeCreated(ctx, "emp-ana").Success)

	res := f.mgr.OnLeaveApproved(ctx, "lr-holiday")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Created)

	rows := f.records(t).SummariesFor("emp-ana")
	require.Len(t, rows, 2)
	assert.Equal(t, hr.Present, rows[0].Status, "existing row is not overwritten")
	assert.Equal(t, "2025-03-12", rows[1].Date.String())
}

func TestOnLeaveApproved_CustomWeekend(t *testing.T) {
	f := newFixture(t, []time.Weekday{time.Friday, time.Saturday})
	res := f.mgr.OnLeaveApproved(context.Background(), "lr-week")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 3, res.Created)
}

func TestOnLeaveApproved_Failures(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		id   string
		want error
	}{
		{"lr-missing", generic.ErrNotFound},
		{"lr-rejected", generic.ErrInvalidTransition},
		{"lr-backwards", generic.ErrValidation},
		{"lr-ghost", generic.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			res := f.mgr.OnLeaveApproved(ctx, tt.id)
			assert.False(t, res.Success)
			assert.ErrorIs(t, res.Err, tt.want)
		})
	}
	assert.Empty(t, f.records(t).Attendance.Summaries)
}

// =============================================================================
// QUEUES
// =============================================================================

func TestOnAttendanceProcessed_DedupByDate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	day := generic.NewDate(2025, time.March, 7)

	res := f.mgr.OnAttendanceProcessed(ctx, day, []string{"emp-ana", "emp-ben"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Created)

	// Different content, same key.
	res = f.mgr.OnAttendanceProcessed(ctx, day, []string{"emp-ana"})
	require.True(t, res.Success, res.Error)
	assert.True(t, res.Skipped)

	q := f.pending(t)
	require.Len(t, q.PayrollUpdates, 1)
	a := q.PayrollUpdates[0]
	assert.Equal(t, integration.KindPayrollUpdate, a.Kind)
	assert.Equal(t, "2025-03-07", a.Key)
	var p integration.PayrollUpdate
	require.NoError(t, a.Decode(&p))
	assert.Equal(t, []string{"emp-ana", "emp-ben"}, p.EmployeeIDs)

	res = f.mgr.OnAttendanceProcessed(ctx, generic.Date{}, nil)
	assert.ErrorIs(t, res.Err, generic.ErrValidation)
}

func TestOnPayrollProcessed_EveryRunQueued(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res := f.mgr.OnPayrollProcessed(ctx, "2025-02", decimal.RequireFromString("120000"), 42)
		require.True(t, res.Success, res.Error)
	}
	q := f.pending(t)
	require.Len(t, q.PayrollToFinance, 2)
	assert.NotEqual(t, q.PayrollToFinance[0].ID, q.PayrollToFinance[1].ID)

	var run integration.PayrollRun
	require.NoError(t, q.PayrollToFinance[0].Decode(&run))
	assert.Equal(t, "2025-02", run.Period)
	assert.True(t, run.TotalAmount.Equal(decimal.RequireFromString("120000")))
	assert.Equal(t, 42, run.EmployeeCount)

	res := f.mgr.OnPayrollProcessed(ctx, " ", decimal.Zero, 0)
	assert.ErrorIs(t, res.Err, generic.ErrValidation)
}

func TestOnPurchaseReceived_DedupByOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := integration.PurchaseReceipt{PurchaseOrderID: "PO-77", SupplierID: "sup-1", Amount: decimal.RequireFromString("3200.50")}

	res := f.mgr.OnPurchaseReceived(ctx, p)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Created)
	res = f.mgr.OnPurchaseReceived(ctx, p)
	assert.True(t, res.Skipped)

	q := f.pending(t)
	assert.Len(t, q.ReceivedPurchases, 1)
	require.Len(t, q.InventoryExpenses, 1)
	var got integration.PurchaseReceipt
	require.NoError(t, q.InventoryExpenses[0].Decode(&got))
	assert.Equal(t, "2025-03-10", got.Date.String(), "date defaults to today")

	p.Amount = decimal.Zero
	p.PurchaseOrderID = "PO-78"
	assert.False(t, f.mgr.OnPurchaseReceived(ctx, p).Success)
}

func TestQueuedAmounts_MustFitCurrencyUnit(t *testing.T) {
	// GIVEN: A USD manager with empty finance queues
	f := newFixture(t, nil)
	ctx := context.Background()

	// WHEN: Payroll and a purchase arrive with sub-cent amounts
	payroll := f.mgr.OnPayrollProcessed(ctx, "2025-03", decimal.RequireFromString("1000.005"), 3)
	purchase := f.mgr.OnPurchaseReceived(ctx, integration.PurchaseReceipt{
		PurchaseOrderID: "PO-90", SupplierID: "sup-1", Amount: decimal.RequireFromString("12.345"),
	})

	// THEN: Both are rejected at intake and nothing is queued
	assert.False(t, payroll.Success)
	assert.ErrorIs(t, payroll.Err, generic.ErrValidation)
	assert.Contains(t, payroll.Error, "more than 2 decimal places")
	assert.False(t, purchase.Success)
	assert.ErrorIs(t, purchase.Err, generic.ErrValidation)

	q := f.pending(t)
	assert.Empty(t, q.PayrollToFinance)
	assert.Empty(t, q.ReceivedPurchases)
	assert.Empty(t, q.InventoryExpenses)

	// Whole cents are still accepted
	res := f.mgr.OnPayrollProcessed(ctx, "2025-03", decimal.RequireFromString("1000.01"), 3)
	assert.True(t, res.Success, res.Error)
}

func TestPendingIntegrations_CountAndClear(t *testing.T) {
	// GIVEN: Attendance, payroll and purchase actions plus one pending invoice
	// WHEN: Counting, then clearing
	// THEN: Count is 5 (a purchase fills two queues), then 0;
	//       unrelated members of the blob survive the clear

	f := newFixture(t, nil)
	ctx := context.Background()
	f.mgr.OnAttendanceProcessed(ctx, generic.NewDate(2025, time.March, 7), nil)
	f.mgr.OnPayrollProcessed(ctx, "2025-02", decimal.NewFromInt(10), 1)
	f.mgr.OnPurchaseReceived(ctx, integration.PurchaseReceipt{PurchaseOrderID: "PO-1", Amount: decimal.NewFromInt(5)})

	n, err := f.mgr.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	cleared, err := f.mgr.ClearPendingIntegrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, cleared)

	n, err = f.mgr.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	blob, err := f.mem.Read(ctx, generic.KeyIntegrations)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(blob.Data, &raw))
	assert.Equal(t, "never", raw["lastSync"])
	assert.Equal(t, []any{}, raw["pendingInvoices"])
}
