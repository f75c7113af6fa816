/*
ledger.go - Chart of accounts, cost centers and journal posting

PURPOSE:
  Posting is the only path that changes account balances and cost-center
  spending. Every check runs before the first mutation so a rejected
  entry leaves the book exactly as it was.

POSTING RULES:
  - At least two lines
  - Each line references an existing account that allows posting
  - Each line has exactly one of Debit/Credit non-zero, both non-negative,
    and no digits below the currency's smallest unit
  - Tagged cost centers exist
  - ΣDebit == ΣCredit, else UnbalancedEntryError
  - SourceRef, when set, is unique across the journal

BALANCE EFFECT:
  DEBIT-normal account:  balance += debit − credit
  CREDIT-normal account: balance += credit − debit
  Cost center (tagged line): spending += debit, or −= credit for REVERSAL entries

SEE ALSO:
  - invoice.go: Payment and refund entries
  - integration/sync.go: Payroll and inventory entries
*/
package finance

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// POSTING
// =============================================================================

// PostEntry validates d and posts it. The returned entry is a copy.
func (b *Book) PostEntry(r Rules, d DraftEntry, at time.Time) (JournalEntry, error) {
	entry, err := b.buildEntry(r, d, at)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := b.checkPostable(&entry); err != nil {
		return JournalEntry{}, err
	}

	b.applyPosting(&entry, at)
	b.JournalEntries = append(b.JournalEntries, entry)
	return entry, nil
}

// SaveDraft stores d as a DRAFT entry. Structure is validated; balance is not.
func (b *Book) SaveDraft(r Rules, d DraftEntry, at time.Time) (JournalEntry, error) {
	entry, err := b.buildEntry(r, d, at)
	if err != nil {
		return JournalEntry{}, err
	}
	b.JournalEntries = append(b.JournalEntries, entry)
	return entry, nil
}

// PostDraft posts a stored draft in place.
func (b *Book) PostDraft(id string, at time.Time) (JournalEntry, error) {
	e := b.entry(id)
	if e == nil {
		return JournalEntry{}, generic.NewNotFound("journal entry", id)
	}
	if e.Status != EntryDraft {
		return JournalEntry{}, &generic.InvalidTransitionError{Kind: "journal entry", From: string(e.Status), Action: "post"}
	}
	// Accounts may have changed since the draft was saved.
	for i, l := range e.Lines {
		if err := b.checkLineRefs(i, l.AccountID, l.CostCenterID); err != nil {
			return JournalEntry{}, err
		}
	}
	if err := b.checkPostable(e); err != nil {
		return JournalEntry{}, err
	}

	b.applyPosting(e, at)
	return *e, nil
}

// Reverse posts a REVERSAL entry that swaps every line of a posted entry.
func (b *Book) Reverse(r Rules, id string, date generic.Date, reason string, at time.Time) (JournalEntry, error) {
	orig := b.entry(id)
	if orig == nil {
		return JournalEntry{}, generic.NewNotFound("journal entry", id)
	}
	switch {
	case orig.Status != EntryPosted:
		return JournalEntry{}, &generic.InvalidTransitionError{Kind: "journal entry", From: string(orig.Status), Action: "reverse"}
	case orig.Type == EntryReversal:
		return JournalEntry{}, &generic.InvalidTransitionError{Kind: "reversal entry", From: string(orig.Status), Action: "reverse"}
	case orig.ReversedByID != "":
		return JournalEntry{}, &generic.InvalidTransitionError{Kind: "journal entry", From: "REVERSED", Action: "reverse"}
	}

	desc := "Reversal of " + orig.Number
	if reason != "" {
		desc += ": " + reason
	}
	d := DraftEntry{
		Date:        date,
		Type:        EntryReversal,
		Description: desc,
		SourceRef:   "reversal:" + orig.ID,
	}
	for _, l := range orig.Lines {
		d.Lines = append(d.Lines, DraftLine{
			AccountID:    l.AccountID,
			CostCenterID: l.CostCenterID,
			Description:  l.Description,
			Debit:        l.Credit,
			Credit:       l.Debit,
		})
	}
	origID := orig.ID

	rev, err := b.PostEntry(r, d, at)
	if err != nil {
		return JournalEntry{}, err
	}
	// PostEntry appended, so re-resolve both.
	b.entry(origID).ReversedByID = rev.ID
	b.entry(rev.ID).ReversesID = origID
	rev.ReversesID = origID
	return rev, nil
}

// Transfer is a two-line entry between configured accounts, given by
// account number.
type Transfer struct {
	Type          EntryType
	Date          generic.Date
	Description   string
	SourceRef     string
	DebitAccount  string
	CreditAccount string
	CostCenterID  string // tags the debit line
	Amount        decimal.Decimal
}

// PostTransfer posts t as Dr DebitAccount, Cr CreditAccount.
func (b *Book) PostTransfer(r Rules, t Transfer, at time.Time) (JournalEntry, error) {
	dr, err := b.postingAccount(t.DebitAccount)
	if err != nil {
		return JournalEntry{}, err
	}
	cr, err := b.postingAccount(t.CreditAccount)
	if err != nil {
		return JournalEntry{}, err
	}
	return b.PostEntry(r, DraftEntry{
		Date:        t.Date,
		Type:        t.Type,
		Description: t.Description,
		SourceRef:   t.SourceRef,
		Lines: []DraftLine{
			{AccountID: dr.ID, CostCenterID: t.CostCenterID, Debit: t.Amount, Credit: decimal.Zero},
			{AccountID: cr.ID, Debit: decimal.Zero, Credit: t.Amount},
		},
	}, at)
}

func (b *Book) buildEntry(r Rules, d DraftEntry, at time.Time) (JournalEntry, error) {
	if d.Type == "" {
		d.Type = EntryGeneral
	}
	if !d.Type.Valid() {
		return JournalEntry{}, generic.NewValidation("type", fmt.Sprintf("unknown entry type %q", d.Type))
	}
	if len(d.Lines) < 2 {
		return JournalEntry{}, generic.NewValidation("lines", "a journal entry needs at least two lines")
	}
	if d.Date.IsZero() {
		d.Date = generic.DateOf(at)
	}

	entry := JournalEntry{
		ID:           generic.NewID("je"),
		Date:         d.Date,
		Type:         d.Type,
		Description:  d.Description,
		SourceRef:    d.SourceRef,
		Status:       EntryDraft,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}
	for i, l := range d.Lines {
		if err := checkAmounts(r, i, l.Debit, l.Credit); err != nil {
			return JournalEntry{}, err
		}
		if err := b.checkLineRefs(i, l.AccountID, l.CostCenterID); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, JournalLine{
			ID:           generic.NewID("jl"),
			EntryID:      entry.ID,
			AccountID:    l.AccountID,
			CostCenterID: l.CostCenterID,
			Description:  l.Description,
			Debit:        l.Debit,
			Credit:       l.Credit,
		})
		entry.TotalDebits = entry.TotalDebits.Add(l.Debit)
		entry.TotalCredits = entry.TotalCredits.Add(l.Credit)
	}
	return entry, nil
}

func checkAmounts(r Rules, i int, debit, credit decimal.Decimal) error {
	field := fmt.Sprintf("lines[%d]", i)
	if debit.IsNegative() || credit.IsNegative() {
		return generic.NewValidation(field, "debit and credit must be non-negative")
	}
	if debit.IsZero() == credit.IsZero() {
		return generic.NewValidation(field, "exactly one of debit or credit must be non-zero")
	}
	if !r.Currency.IsRounded(debit) || !r.Currency.IsRounded(credit) {
		return generic.NewValidation(field, fmt.Sprintf("amount has more than %d decimal places", r.Currency.Fraction()))
	}
	return nil
}

func (b *Book) checkLineRefs(i int, accountID, costCenterID string) error {
	a := b.account(accountID)
	if a == nil {
		return generic.NewNotFound("account", accountID)
	}
	if !a.AllowsPosting {
		return generic.NewValidation(fmt.Sprintf("lines[%d].accountId", i),
			fmt.Sprintf("account %s is a header and cannot be posted to", a.Number))
	}
	if costCenterID != "" && b.costCenter(costCenterID) == nil {
		return generic.NewNotFound("cost center", costCenterID)
	}
	return nil
}

func (b *Book) checkPostable(e *JournalEntry) error {
	if !e.TotalDebits.Equal(e.TotalCredits) {
		return &generic.UnbalancedEntryError{Debits: e.TotalDebits, Credits: e.TotalCredits}
	}
	for _, other := range b.JournalEntries {
		if e.SourceRef != "" && other.ID != e.ID && other.SourceRef == e.SourceRef {
			return &generic.DuplicateKeyError{Kind: "journal source reference", Key: e.SourceRef}
		}
	}
	return nil
}

// applyPosting mutates balances. All checks must have passed.
func (b *Book) applyPosting(e *JournalEntry, at time.Time) {
	for _, l := range e.Lines {
		a := b.account(l.AccountID)
		if a.NormalBalance == DebitNormal {
			a.Balance = a.Balance.Add(l.Debit).Sub(l.Credit)
		} else {
			a.Balance = a.Balance.Add(l.Credit).Sub(l.Debit)
		}
		if l.CostCenterID == "" {
			continue
		}
		cc := b.costCenter(l.CostCenterID)
		if e.Type == EntryReversal {
			cc.ActualSpending = cc.ActualSpending.Sub(l.Credit)
		} else {
			cc.ActualSpending = cc.ActualSpending.Add(l.Debit)
		}
	}

	e.Number = b.nextEntryNumber(e.Date.Year())
	e.Status = EntryPosted
	postedAt := at.UTC()
	e.PostedAt = &postedAt
}

// =============================================================================
// QUERIES
// =============================================================================

// AccountBalance returns the current balance of an account.
func (b *Book) AccountBalance(id string) (decimal.Decimal, error) {
	a := b.account(id)
	if a == nil {
		return decimal.Zero, generic.NewNotFound("account", id)
	}
	return a.Balance, nil
}

// EntriesBetween returns entries dated within [from, to], newest first,
// ties broken by number descending. A zero bound is open.
func (b *Book) EntriesBetween(from, to generic.Date) []JournalEntry {
	var out []JournalEntry
	for _, e := range b.JournalEntries {
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Date.Compare(out[j].Date); c != 0 {
			return c > 0
		}
		return compareEntryNumbers(out[i].Number, out[j].Number) > 0
	})
	return out
}

// AccountsByType returns accounts of type t (all when empty), by number.
// Integer numbers compare numerically and sort before the rest.
func (b *Book) AccountsByType(t AccountType) []Account {
	var out []Account
	for _, a := range b.Accounts {
		if t == "" || a.Type == t {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return compareAccountNumbers(out[i].Number, out[j].Number) < 0 })
	return out
}

// TrialBalanceRow shows an account's balance on its debit or credit side.
type TrialBalanceRow struct {
	AccountID string          `json:"accountId"`
	Number    string          `json:"number"`
	Name      string          `json:"name"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type TrialBalance struct {
	Rows         []TrialBalanceRow `json:"rows"`
	TotalDebits  decimal.Decimal   `json:"totalDebits"`
	TotalCredits decimal.Decimal   `json:"totalCredits"`
}

// Balanced reports whether the debit and credit columns agree.
func (tb TrialBalance) Balanced() bool { return tb.TotalDebits.Equal(tb.TotalCredits) }

func (b *Book) TrialBalance() TrialBalance {
	tb := TrialBalance{TotalDebits: decimal.Zero, TotalCredits: decimal.Zero}
	for _, a := range b.AccountsByType("") {
		if a.Balance.IsZero() {
			continue
		}
		// Net debit position: positive means the account sits on the debit side.
		net := a.Balance
		if a.NormalBalance == CreditNormal {
			net = net.Neg()
		}
		row := TrialBalanceRow{AccountID: a.ID, Number: a.Number, Name: a.Name, Debit: decimal.Zero, Credit: decimal.Zero}
		if net.IsPositive() {
			row.Debit = net
		} else {
			row.Credit = net.Neg()
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebits = tb.TotalDebits.Add(row.Debit)
		tb.TotalCredits = tb.TotalCredits.Add(row.Credit)
	}
	return tb
}

// Utilization reports how much of a cost center's budget is spent.
type Utilization struct {
	CostCenter CostCenter      `json:"costCenter"`
	Pct        decimal.Decimal `json:"pct"`
	Remaining  decimal.Decimal `json:"remaining"`
}

func (b *Book) CostCenterUtilization(id string) (Utilization, error) {
	cc := b.costCenter(id)
	if cc == nil {
		return Utilization{}, generic.NewNotFound("cost center", id)
	}
	u := Utilization{CostCenter: *cc, Pct: decimal.Zero, Remaining: cc.AnnualBudget.Sub(cc.ActualSpending)}
	if cc.AnnualBudget.IsPositive() {
		u.Pct = cc.ActualSpending.Mul(generic.Hundred).Div(cc.AnnualBudget).Round(2)
	}
	return u, nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// AccountSpec describes a new account. Header accounts group others and
// cannot be posted to.
type AccountSpec struct {
	Number        string
	Name          string
	Type          AccountType
	NormalBalance NormalBalance // empty = derived from Type
	ParentID      string
	Header        bool
}

func (b *Book) CreateAccount(s AccountSpec) (Account, error) {
	if s.Number == "" {
		return Account{}, generic.NewValidation("number", "account number is required")
	}
	if s.Name == "" {
		return Account{}, generic.NewValidation("name", "account name is required")
	}
	if !s.Type.Valid() {
		return Account{}, generic.NewValidation("type", fmt.Sprintf("unknown account type %q", s.Type))
	}
	if s.NormalBalance == "" {
		s.NormalBalance = s.Type.NormalSide()
	}
	if !s.NormalBalance.Valid() {
		return Account{}, generic.NewValidation("normalBalance", fmt.Sprintf("unknown normal balance %q", s.NormalBalance))
	}
	if b.accountByNumber(s.Number) != nil {
		return Account{}, &generic.DuplicateKeyError{Kind: "account number", Key: s.Number}
	}
	if s.ParentID != "" {
		parent := b.account(s.ParentID)
		switch {
		case parent == nil:
			return Account{}, generic.NewNotFound("account", s.ParentID)
		case parent.AllowsPosting:
			return Account{}, generic.NewValidation("parentId", fmt.Sprintf("parent %s is a posting account, not a header", parent.Number))
		case parent.Type != s.Type:
			return Account{}, generic.NewValidation("parentId",
				fmt.Sprintf("parent %s is %s, account is %s", parent.Number, parent.Type, s.Type))
		}
	}

	a := Account{
		ID:            generic.NewID("acc"),
		Number:        s.Number,
		Name:          s.Name,
		Type:          s.Type,
		NormalBalance: s.NormalBalance,
		ParentID:      s.ParentID,
		AllowsPosting: !s.Header,
		Balance:       decimal.Zero,
	}
	b.Accounts = append(b.Accounts, a)
	return a, nil
}

type CostCenterSpec struct {
	Code         string
	Name         string
	Type         CostCenterType
	AnnualBudget decimal.Decimal
}

func (b *Book) CreateCostCenter(s CostCenterSpec) (CostCenter, error) {
	if s.Code == "" {
		return CostCenter{}, generic.NewValidation("code", "cost center code is required")
	}
	if s.Type == "" {
		s.Type = CostCenterKind
	}
	if !s.Type.Valid() {
		return CostCenter{}, generic.NewValidation("type", fmt.Sprintf("unknown cost center type %q", s.Type))
	}
	if s.AnnualBudget.IsNegative() {
		return CostCenter{}, generic.NewValidation("annualBudget", "budget must be non-negative")
	}
	for _, cc := range b.CostCenters {
		if cc.Code == s.Code {
			return CostCenter{}, &generic.DuplicateKeyError{Kind: "cost center code", Key: s.Code}
		}
	}

	cc := CostCenter{
		ID:             generic.NewID("cc"),
		Code:           s.Code,
		Name:           s.Name,
		Type:           s.Type,
		AnnualBudget:   s.AnnualBudget,
		ActualSpending: decimal.Zero,
	}
	b.CostCenters = append(b.CostCenters, cc)
	return cc, nil
}
