package finance_test

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/hospital-ledger/factory"
	"github.com/warp/hospital-ledger/finance"
	"github.com/warp/hospital-ledger/generic"
	"github.com/warp/hospital-ledger/generic/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *finance.Service
	mem   *store.Memory
	uow   *generic.UnitOfWork
	accts map[string]string // number -> id
	ccs   map[string]string // code -> id
	shs   map[string]string // code -> id
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	uow := generic.NewUnitOfWork(mem)
	ctx := context.Background()

	setup, err := factory.ParseSetup(factory.DefaultHospitalSetupJSON)
	require.NoError(t, err)
	require.NoError(t, uow.Update(ctx, func(tx *generic.Tx) error {
		b, err := finance.LoadBook(tx)
		if err != nil {
			return err
		}
		_, err = setup.Apply(b)
		return err
	}))

	svc := finance.NewService(uow, finance.DefaultRules(), zap.NewNop())
	svc.SetClock(func() time.Time { return testNow })

	f := &fixture{svc: svc, mem: mem, uow: uow,
		accts: map[string]string{}, ccs: map[string]string{}, shs: map[string]string{}}
	accounts, err := svc.ListAccountsByType(ctx, "")
	require.NoError(t, err)
	for _, a := range accounts {
		f.accts[a.Number] = a.ID
	}
	ccs, err := svc.ListCostCenters(ctx)
	require.NoError(t, err)
	for _, cc := range ccs {
		f.ccs[cc.Code] = cc.ID
	}
	shs, err := svc.ListStakeholders(ctx)
	require.NoError(t, err)
	for _, s := range shs {
		f.shs[s.Code] = s.ID
	}
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func debit(accountID, amount string) finance.DraftLine {
	return finance.DraftLine{AccountID: accountID, Debit: dec(amount), Credit: decimal.Zero}
}

func credit(accountID, amount string) finance.DraftLine {
	return finance.DraftLine{AccountID: accountID, Debit: decimal.Zero, Credit: dec(amount)}
}

func (f *fixture) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	bal, err := f.svc.GetAccountBalance(context.Background(), f.accts[number])
	require.NoError(t, err)
	return bal
}

func (f *fixture) balances(t *testing.T) map[string]string {
	t.Helper()
	out := map[string]string{}
	for number := range f.accts {
		out[number] = f.balance(t, number).String()
	}
	return out
}

// =============================================================================
// POSTING
// =============================================================================

func TestPostJournalEntry_UpdatesBalancesByNormalSide(t *testing.T) {
	// GIVEN: Default chart, all balances zero
	// WHEN: Posting Dr Cash 1000 / Cr Patient Revenue 1000
	// THEN: Both balances are +1000 (debit-normal and credit-normal), entry is POSTED

	f := newFixture(t)
	entry, err := f.svc.PostJournalEntry(context.Background(), finance.DraftEntry{
		Description: "Walk-in consultation",
		Lines:       []finance.DraftLine{debit(f.accts["1110"], "1000"), credit(f.accts["4100"], "1000")},
	})
	require.NoError(t, err)

	assert.Equal(t, finance.EntryPosted, entry.Status)
	assert.Equal(t, "JE-2025-0001", entry.Number)
	assert.Equal(t, finance.EntryGeneral, entry.Type)
	assert.True(t, entry.TotalDebits.Equal(dec("1000")))
	assert.True(t, entry.TotalCredits.Equal(dec("1000")))
	assert.Equal(t, "2025-03-10", entry.Date.String())
	require.NotNil(t, entry.PostedAt)

	assert.True(t, f.balance(t, "1110").Equal(dec("1000")))
	assert.True(t, f.balance(t, "4100").Equal(dec("1000")))
}

func TestPostJournalEntry_ContraAccount(t *testing.T) {
	// GIVEN: Sales Discounts is a REVENUE account with DEBIT normal balance
	// WHEN: Debiting it 50 against cash
	// THEN: Its balance grows by 50 and cash falls by 50

	f := newFixture(t)
	_, err := f.svc.PostJournalEntry(context.Background(), finance.DraftEntry{
		Lines: []finance.DraftLine{debit(f.accts["4900"], "50"), credit(f.accts["1110"], "50")},
	})
	require.NoError(t, err)
	assert.True(t, f.balance(t, "4900").Equal(dec("50")))
	assert.True(t, f.balance(t, "1110").Equal(dec("-50")))
}

func TestPostJournalEntry_UnbalancedLeavesBalancesUnchanged(t *testing.T) {
	// GIVEN: A posted entry so balances are non-zero
	// WHEN: Posting [debit 500, credit 400]
	// THEN: UnbalancedEntryError and every balance is unchanged

	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.PostJournalEntry(ctx, finance.DraftEntry{
		Lines: []finance.DraftLine{debit(f.accts["1120"], "300"), credit(f.accts["3100"], "300")},
	})
	require.NoError(t, err)
	before := f.balances(t)

	_, err = f.svc.PostJournalEntry(ctx, finance.DraftEntry{
		Lines: []finance.DraftLine{debit(f.accts["1110"], "500"), credit(f.accts["4100"], "400")},
	})

	var unbalanced *generic.UnbalancedEntryError
	require.ErrorAs(t, err, &unbalanced)
	assert.True(t, unbalanced.Debits.Equal(dec("500")))
	assert.True(t, unbalanced.Credits.Equal(dec("400")))
	assert.Equal(t, before, f.balances(t))

	entries, err := f.svc.ListJournalEntriesByDateRange(ctx, generic.Date{}, generic.Date{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPostJournalEntry_BalanceInvariantProperty(t *testing.T) {
	// GIVEN: Randomly generated line sets over all posting accounts
	// WHEN: Balanced sets are posted and a one-cent perturbation of each is posted too
	// THEN: Every balanced set posts, every perturbed set fails without
	//       touching balances, and the trial balance always agrees

	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var posting []string
	accounts, err := f.svc.ListAccountsByType(ctx, "")
	require.NoError(t, err)
	for _, a := range accounts {
		if a.AllowsPosting {
			posting = append(posting, a.ID)
		}
	}

	for i := 0; i < 40; i++ {
		n := 2 + rng.Intn(4)
		var lines []finance.DraftLine
		total := decimal.Zero
		for j := 0; j < n-1; j++ {
			amt := decimal.New(int64(1+rng.Intn(1_000_000)), -2)
			total = total.Add(amt)
			lines = append(lines, finance.DraftLine{AccountID: posting[rng.Intn(len(posting))], Debit: amt, Credit: decimal.Zero})
		}
		lines = append(lines, finance.DraftLine{AccountID: posting[rng.Intn(len(posting))], Debit: decimal.Zero, Credit: total})

		// Unbalanced variant first: must fail and change nothing.
		broken := append([]finance.DraftLine(nil), lines...)
		last := broken[len(broken)-1]
		last.Credit = last.Credit.Add(dec("0.01"))
		broken[len(broken)-1] = last
		before := f.balances(t)
		_, err := f.svc.PostJournalEntry(ctx, finance.DraftEntry{Lines: broken})
		require.ErrorIs(t, err, generic.ErrUnbalancedEntry)
		require.Equal(t, before, f.balances(t))

		entry, err := f.svc.PostJournalEntry(ctx, finance.DraftEntry{Lines: lines})
		require.NoError(t, err)
		require.True(t, entry.TotalDebits.Equal(entry.TotalCredits))

		tb, err := f.svc.TrialBalance(ctx)
		require.NoError(t, err)
		require.True(t, tb.Balanced(), "trial balance out of balance after entry %d", i)
	}
}

func TestPostJournalEntry_RejectsMalformedLines(t *testing.T) {
	f := newFixture(t)
	cash, revenue := f.accts["1110"], f.accts["4100"]

	cases := []struct {
		name  string
		lines []finance.DraftLine
		want  error
	}{
		{"single line", []finance.DraftLine{debit(cash, "10")}, generic.ErrValidation},
		{"header account", []finance.DraftLine{debit(f.accts["1000"], "10"), credit(revenue, "10")}, generic.ErrValidation},
		{"unknown account", []finance.DraftLine{debit("acc_missing", "10"), credit(revenue, "10")}, generic.ErrNotFound},
		{"both sides", []finance.DraftLine{
			{AccountID: cash, Debit: dec("10"), Credit: dec("10")}, credit(revenue, "0.01")}, generic.ErrValidation},
		{"neither side", []finance.DraftLine{
			{AccountID: cash, Debit: decimal.Zero, Credit: decimal.Zero}, credit(revenue, "10")}, generic.ErrValidation},
		{"negative", []finance.DraftLine{
			{AccountID: cash, Debit: dec("-10"), Credit: decimal.Zero}, credit(revenue, "10")}, generic.ErrValidation},
		{"sub-cent", []finance.DraftLine{debit(cash, "10.005"), credit(revenue, "10.005")}, generic.ErrValidation},
		{"unknown cost center", []finance.DraftLine{
			debit(cash, "10"), {AccountID: revenue, CostCenterID: "cc_missing", Credit: dec("10")}}, generic.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.PostJournalEntry(context.Background(), finance.DraftEntry{Lines: tc.lines})
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.True(t, f.balance(t, "1110").IsZero())
}

func TestPostJournalEntry_DuplicateSourceRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := finance.DraftEntry{
		SourceRef: "import:batch-7",
		Lines:     []finance.DraftLine{debit(f.accts["1110"], "10"), credit(f.accts["4100"], "10")},
	}
	_, err := f.svc.PostJournalEntry(ctx, d)
	require.NoError(t, err)

	_, err = f.svc.PostJournalEntry(ctx, d)
	var dup *generic.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "import:batch-7", dup.Key)
	assert.True(t, f.balance(t, "1110").Equal(dec("10")))
}

// =============================================================================
// COST CENTERS AND REVERSALS
// =============================================================================

func TestCostCenterSpending_AccumulatesAndReverses(t *testing.T) {
	// GIVEN: Administration cost center with a 300000 budget
	// WHEN: A tagged 1500 utilities expense is posted, then reversed
	// THEN: Spending is 1500 (0.5% utilization), then back to 0

	f := newFixture(t)
	ctx := context.Background()
	admin := f.ccs["ADMIN"]

	entry, err := f.svc.PostJournalEntry(ctx, finance.DraftEntry{
		Lines: []finance.DraftLine{
			{AccountID: f.accts["5300"], CostCenterID: admin, Debit: dec("1500"), Credit: decimal.Zero},
			credit(f.accts["1120"], "1500"),
		},
	})
	require.NoError(t, err)

	u, err := f.svc.CostCenterUtilization(ctx, admin)
	require.NoError(t, err)
	assert.True(t, u.CostCenter.ActualSpending.Equal(dec("1500")))
	assert.True(t, u.Pct.Equal(dec("0.5")))
	assert.True(t, u.Remaining.Equal(dec("298500")))

	rev, err := f.svc.ReverseJournalEntry(ctx, entry.ID, generic.Date{}, "posted to wrong period")
	require.NoError(t, err)
	assert.Equal(t, finance.EntryReversal, rev.Type)
	assert.Equal(t, entry.ID, rev.ReversesID)
	assert.Equal(t, "JE-2025-0002", rev.Number)

	u, err = f.svc.CostCenterUtilization(ctx, admin)
	require.NoError(t, err)
	assert.True(t, u.CostCenter.ActualSpending.IsZero())
	assert.True(t, f.balance(t, "5300").IsZero())
	assert.True(t, f.balance(t, "1120").IsZero())
}

func TestReverseJournalEntry_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry, err := f.svc.PostJournalEntry(ctx, finance.DraftEntry{
		Lines: []finance.DraftLine{debit(f.accts["1110"], "10"), credit(f.accts["4100"], "10")},
	})
	require.NoError(t, err)
	rev, err := f.svc.ReverseJournalEntry(ctx, entry.ID, generic.Date{}, "")
	require.NoError(t, err)

	_, err = f.svc.ReverseJournalEntry(ctx, entry.ID, generic.Date{}, "")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
	_, err = f.svc.ReverseJournalEntry(ctx, rev.ID, generic.Date{}, "")
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
	_, err = f.svc.ReverseJournalEntry(ctx, "je_missing", generic.Date{}, "")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// DRAFTS
// =============================================================================

func TestDraftEntry_SavedUnbalancedButNotPosted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.SaveDraftJournalEntry(ctx, finance.DraftEntry{
		Lines: []finance.DraftLine{debit(f.accts["1110"], "100"), credit(f.accts["4100"], "90")},
	})
	require.NoError(t, err)
	assert.Equal(t, finance.EntryDraft, draft.Status)
	assert.Empty(t, draft.Number)
	assert.True(t, f.balance(t, "1110").IsZero())

	_, err = f.svc.PostDraftJournalEntry(ctx, draft.ID)
	assert.ErrorIs(t, err, generic.ErrUnbalancedEntry)
	assert.True(t, f.balance(t, "1110").IsZero())
}

func TestDraftEntry_PostInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.SaveDraftJournalEntry(ctx, finance.DraftEntry{
		Lines: []finance.DraftLine{debit(f.accts["1110"], "100"), credit(f.accts["4100"], "100")},
	})
	require.NoError(t, err)

	posted, err := f.svc.PostDraftJournalEntry(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, posted.ID)
	assert.Equal(t, finance.EntryPosted, posted.Status)
	assert.True(t, f.balance(t, "1110").Equal(dec("100")))

	_, err = f.svc.PostDraftJournalEntry(ctx, draft.ID)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestListJournalEntriesByDateRange_OrderAndBounds(t *testing.T) {
	// GIVEN: Entries on Mar 1, Mar 5 (x2) and Mar 9
	// WHEN: Listing Mar 1 .. Mar 5
	// THEN: Mar 5 entries first (higher number first), then Mar 1; Mar 9 excluded

	f := newFixture(t)
	ctx := context.Background()
	post := func(day int) finance.JournalEntry {
		e, err := f.svc.PostJournalEntry(ctx, finance.DraftEntry{
			Date:  generic.NewDate(2025, time.March, day),
			Lines: []finance.DraftLine{debit(f.accts["1110"], "1"), credit(f.accts["4100"], "1")},
		})
		require.NoError(t, err)
		return e
	}
	e5a := post(5)
	e1 := post(1)
	e9 := post(9)
	e5b := post(5)

	got, err := f.svc.ListJournalEntriesByDateRange(ctx, generic.NewDate(2025, time.March, 1), generic.NewDate(2025, time.March, 5))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{e5b.ID, e5a.ID, e1.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
	for _, e := range got {
		assert.NotEqual(t, e9.ID, e.ID)
	}
}

func TestEntriesBetween_SequenceComparedNumerically(t *testing.T) {
	// GIVEN: Same-day entries on both sides of the four-digit padding
	day := generic.NewDate(2025, time.March, 1)
	book := &finance.Book{JournalEntries: []finance.JournalEntry{
		{ID: "a", Number: "JE-2025-9998", Date: day},
		{ID: "b", Number: "JE-2025-10000", Date: day},
		{ID: "c", Number: "JE-2025-9999", Date: day},
		{ID: "d", Number: "JE-2024-10001", Date: day},
	}}

	// WHEN: Listing that day
	got := book.EntriesBetween(day, day)

	// THEN: Year then sequence, descending
	var numbers []string
	for _, e := range got {
		numbers = append(numbers, e.Number)
	}
	assert.Equal(t, []string{"JE-2025-10000", "JE-2025-9999", "JE-2025-9998", "JE-2024-10001"}, numbers)
}

func TestAccountsByType_MixedWidthNumbers(t *testing.T) {
	book := &finance.Book{Accounts: []finance.Account{
		{ID: "a", Number: "1110", Type: finance.Asset},
		{ID: "b", Number: "900", Type: finance.Asset},
		{ID: "c", Number: "1100-A", Type: finance.Asset},
		{ID: "d", Number: "10000", Type: finance.Asset},
	}}

	var numbers []string
	for _, a := range book.AccountsByType(finance.Asset) {
		numbers = append(numbers, a.Number)
	}
	assert.Equal(t, []string{"900", "1110", "10000", "1100-A"}, numbers)
}

func TestListAccountsByType_OrderedByNumber(t *testing.T) {
	f := newFixture(t)
	got, err := f.svc.ListAccountsByType(context.Background(), finance.Expense)
	require.NoError(t, err)

	var numbers []string
	for _, a := range got {
		numbers = append(numbers, a.Number)
		assert.Equal(t, finance.Expense, a.Type)
	}
	assert.Equal(t, []string{"5000", "5100", "5200", "5300"}, numbers)

	_, err = f.svc.ListAccountsByType(context.Background(), "GOODWILL")
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestGetAccountBalance_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetAccountBalance(context.Background(), "acc_missing")
	var nf *generic.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "account", nf.Kind)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestCreateAccount_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.svc.CreateAccount(ctx, finance.AccountSpec{
		Number: "1130", Name: "Petty Cash", Type: finance.Asset, ParentID: f.accts["1100"],
	})
	require.NoError(t, err)
	assert.Equal(t, finance.DebitNormal, acc.NormalBalance)
	assert.True(t, acc.AllowsPosting)
	assert.True(t, acc.Balance.IsZero())

	_, err = f.svc.CreateAccount(ctx, finance.AccountSpec{Number: "1130", Name: "Again", Type: finance.Asset})
	assert.ErrorIs(t, err, generic.ErrDuplicateKey)

	_, err = f.svc.CreateAccount(ctx, finance.AccountSpec{
		Number: "2300", Name: "Accrued Wages", Type: finance.Liability, ParentID: f.accts["1000"],
	})
	assert.ErrorIs(t, err, generic.ErrValidation, "parent type mismatch")

	_, err = f.svc.CreateAccount(ctx, finance.AccountSpec{
		Number: "1111", Name: "Till 2", Type: finance.Asset, ParentID: f.accts["1110"],
	})
	assert.ErrorIs(t, err, generic.ErrValidation, "parent is a posting account")

	_, err = f.svc.CreateAccount(ctx, finance.AccountSpec{Number: "9000", Name: "Odd", Type: "MISC"})
	assert.ErrorIs(t, err, generic.ErrValidation)

	liab, err := f.svc.CreateAccount(ctx, finance.AccountSpec{Number: "2300", Name: "Accrued Wages", Type: finance.Liability})
	require.NoError(t, err)
	assert.Equal(t, finance.CreditNormal, liab.NormalBalance)
}

func TestCreateCostCenter_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cc, err := f.svc.CreateCostCenter(ctx, finance.CostCenterSpec{Code: "RAD", Name: "Radiology", AnnualBudget: dec("1000")})
	require.NoError(t, err)
	assert.Equal(t, finance.CostCenterKind, cc.Type)

	_, err = f.svc.CreateCostCenter(ctx, finance.CostCenterSpec{Code: "RAD", Name: "Radiology 2"})
	assert.ErrorIs(t, err, generic.ErrDuplicateKey)

	_, err = f.svc.CreateCostCenter(ctx, finance.CostCenterSpec{Code: "NEG", Name: "Negative", AnnualBudget: dec("-1")})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestService_StaleSnapshotRejected(t *testing.T) {
	// GIVEN: Another process rewrote the finance blob after our read
	// WHEN: The next write is attempted against the old version
	// THEN: The store rejects it; the service surfaces ErrConcurrentModification

	f := newFixture(t)
	ctx := context.Background()
	err := f.uow.Update(ctx, func(tx *generic.Tx) error {
		b, err := finance.LoadBook(tx)
		if err != nil {
			return err
		}
		blob, _ := f.mem.Read(ctx, generic.KeyFinance)
		f.mem.Put(generic.KeyFinance, blob.Data)
		_, err = b.PostEntry(finance.DefaultRules(), finance.DraftEntry{
			Lines: []finance.DraftLine{debit(f.accts["1110"], "5"), credit(f.accts["4100"], "5")},
		}, testNow)
		return err
	})
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)
	assert.True(t, f.balance(t, "1110").IsZero())
}

func TestBook_PreservesForeignCollections(t *testing.T) {
	// GIVEN: A finance blob that also carries inventory collections
	// WHEN: A ledger operation rewrites the blob
	// THEN: The inventory collections survive byte-for-byte in meaning

	f := newFixture(t)
	ctx := context.Background()
	blob, err := f.mem.Read(ctx, generic.KeyFinance)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(blob.Data, &raw))
	raw["suppliers"] = []any{map[string]any{"id": "sup-1", "name": "MedSupply Co"}}
	raw["stockMovements"] = []any{}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	f.mem.Put(generic.KeyFinance, data)

	_, err = f.svc.PostJournalEntry(ctx, finance.DraftEntry{
		Lines: []finance.DraftLine{debit(f.accts["1110"], "5"), credit(f.accts["4100"], "5")},
	})
	require.NoError(t, err)

	blob, err = f.mem.Read(ctx, generic.KeyFinance)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(blob.Data, &raw))
	assert.Equal(t, []any{map[string]any{"id": "sup-1", "name": "MedSupply Co"}}, raw["suppliers"])
	assert.Equal(t, []any{}, raw["stockMovements"])
}
