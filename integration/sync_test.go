package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/hospital-ledger/factory"
	"github.com/warp/hospital-ledger/finance"
	"github.com/warp/hospital-ledger/generic"
	"github.com/warp/hospital-ledger/integration"
)

func seedChart(t *testing.T, uow *generic.UnitOfWork) {
	t.Helper()
	setup, err := factory.ParseSetup(factory.DefaultHospitalSetupJSON)
	require.NoError(t, err)
	require.NoError(t, uow.Update(context.Background(), func(tx *generic.Tx) error {
		b, err := finance.LoadBook(tx)
		if err != nil {
			return err
		}
		_, err = setup.Apply(b)
		return err
	}))
}

func balanceOf(t *testing.T, svc *finance.Service, number string) decimal.Decimal {
	t.Helper()
	accounts, err := svc.ListAccountsByType(context.Background(), "")
	require.NoError(t, err)
	for _, a := range accounts {
		if a.Number == number {
			return a.Balance
		}
	}
	t.Fatalf("account %s not found", number)
	return decimal.Zero
}

func TestSyncer_PostsQueuedActionsOnce(t *testing.T) {
	// GIVEN: A payroll run of 120000 and a 3200.50 purchase in the queues
	// WHEN: PostPending runs twice
	// THEN: The first run posts a PAYROLL and an INVENTORY entry, the second
	//       posts nothing; the queues are left in place

	f := newFixture(t, nil)
	ctx := context.Background()
	seedChart(t, f.uow)
	require.True(t, f.mgr.OnPayrollProcessed(ctx, "2025-02", decimal.RequireFromString("120000"), 42).Success)
	require.True(t, f.mgr.OnPurchaseReceived(ctx, integration.PurchaseReceipt{
		PurchaseOrderID: "PO-77", SupplierID: "sup-1", Amount: decimal.RequireFromString("3200.50"),
	}).Success)

	syncer := integration.NewSyncer(f.uow, finance.DefaultRules(), zap.NewNop())
	syncer.SetClock(func() time.Time { return testNow })

	rep, err := syncer.PostPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Posted)
	assert.Zero(t, rep.Failed)

	rep, err = syncer.PostPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Posted)
	assert.Equal(t, 2, rep.Skipped)

	svc := finance.NewService(f.uow, finance.DefaultRules(), zap.NewNop())
	assert.True(t, balanceOf(t, svc, "5100").Equal(decimal.RequireFromString("120000")))
	assert.True(t, balanceOf(t, svc, "2200").Equal(decimal.RequireFromString("120000")))
	assert.True(t, balanceOf(t, svc, "5200").Equal(decimal.RequireFromString("3200.50")))
	assert.True(t, balanceOf(t, svc, "2100").Equal(decimal.RequireFromString("3200.50")))

	entries, err := svc.ListJournalEntriesByDateRange(ctx, generic.Date{}, generic.Date{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	types := map[finance.EntryType]bool{}
	for _, e := range entries {
		types[e.Type] = true
	}
	assert.True(t, types[finance.EntryPayroll])
	assert.True(t, types[finance.EntryInventory])

	n, err := f.mgr.GetPendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "sync does not clear queues")
}

func TestSyncer_FailedActionDoesNotStopRun(t *testing.T) {
	// GIVEN: Rules whose supplies account is missing from the chart
	// WHEN: Syncing a payroll run and a purchase
	// THEN: Payroll posts, the purchase is reported as failed

	f := newFixture(t, nil)
	ctx := context.Background()
	seedChart(t, f.uow)
	f.mgr.OnPayrollProcessed(ctx, "2025-02", decimal.NewFromInt(500), 2)
	f.mgr.OnPurchaseReceived(ctx, integration.PurchaseReceipt{PurchaseOrderID: "PO-1", Amount: decimal.NewFromInt(80)})

	rules := finance.DefaultRules()
	rules.Accounts.SuppliesExpense = "5999"
	rep, err := integration.NewSyncer(f.uow, rules, zap.NewNop()).PostPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Posted)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], string(integration.KindInventoryExpense))
}

func TestSyncer_ZeroPayrollSkipped(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seedChart(t, f.uow)
	f.mgr.OnPayrollProcessed(ctx, "2025-02", decimal.Zero, 0)

	rep, err := integration.NewSyncer(f.uow, finance.DefaultRules(), zap.NewNop()).PostPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Posted)
	assert.Equal(t, 1, rep.Skipped)
}
