package finance

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// BOOK - The finance snapshot
// =============================================================================

// Book is the decoded finance blob. Inventory collections (suppliers,
// warehouses, stock, stockMovements) belong to another module and are
// carried through untouched in Extra.
type Book struct {
	Accounts          []Account         `json:"accounts"`
	CostCenters       []CostCenter      `json:"costCenters"`
	JournalEntries    []JournalEntry    `json:"journalEntries"`
	Invoices          []Invoice         `json:"invoices"`
	InvoiceItems      []InvoiceItem     `json:"invoiceItems"`
	InsurancePolicies []InsurancePolicy `json:"insurancePolicies"`
	RevenueShares     []RevenueShare    `json:"revenueShares"`
	Stakeholders      []Stakeholder     `json:"stakeholders"`

	Extra generic.Extra `json:"-"`
}

type book Book

func (b *Book) UnmarshalJSON(data []byte) error {
	extra, err := generic.DecodePreserving(data, (*book)(b))
	if err != nil {
		return err
	}
	b.Extra = extra
	return nil
}

func (b Book) MarshalJSON() ([]byte, error) {
	return generic.EncodePreserving(book(b), b.Extra)
}

// LoadBook returns the finance snapshot of a unit of work.
func LoadBook(tx *generic.Tx) (*Book, error) {
	return generic.Load[Book](tx, generic.KeyFinance)
}

// =============================================================================
// LOOKUPS - Pointers into the slices; do not hold across appends
// =============================================================================

func (b *Book) account(id string) *Account {
	for i := range b.Accounts {
		if b.Accounts[i].ID == id {
			return &b.Accounts[i]
		}
	}
	return nil
}

func (b *Book) accountByNumber(number string) *Account {
	for i := range b.Accounts {
		if b.Accounts[i].Number == number {
			return &b.Accounts[i]
		}
	}
	return nil
}

// postingAccount resolves a configured account number to a posting account.
func (b *Book) postingAccount(number string) (*Account, error) {
	a := b.accountByNumber(number)
	if a == nil {
		return nil, generic.NewNotFound("account", number)
	}
	if !a.AllowsPosting {
		return nil, generic.NewValidation("account", fmt.Sprintf("account %s is a header and cannot be posted to", number))
	}
	return a, nil
}

func (b *Book) costCenter(id string) *CostCenter {
	for i := range b.CostCenters {
		if b.CostCenters[i].ID == id {
			return &b.CostCenters[i]
		}
	}
	return nil
}

func (b *Book) entry(id string) *JournalEntry {
	for i := range b.JournalEntries {
		if b.JournalEntries[i].ID == id {
			return &b.JournalEntries[i]
		}
	}
	return nil
}

// EntryBySourceRef finds the entry posted for a business event.
func (b *Book) EntryBySourceRef(ref string) (JournalEntry, bool) {
	for _, e := range b.JournalEntries {
		if ref != "" && e.SourceRef == ref {
			return e, true
		}
	}
	return JournalEntry{}, false
}

func (b *Book) invoice(id string) *Invoice {
	for i := range b.Invoices {
		if b.Invoices[i].ID == id {
			return &b.Invoices[i]
		}
	}
	return nil
}

func (b *Book) policy(id string) *InsurancePolicy {
	for i := range b.InsurancePolicies {
		if b.InsurancePolicies[i].ID == id {
			return &b.InsurancePolicies[i]
		}
	}
	return nil
}

func (b *Book) stakeholder(id string) *Stakeholder {
	for i := range b.Stakeholders {
		if b.Stakeholders[i].ID == id {
			return &b.Stakeholders[i]
		}
	}
	return nil
}

func (b *Book) share(id string) *RevenueShare {
	for i := range b.RevenueShares {
		if b.RevenueShares[i].ID == id {
			return &b.RevenueShares[i]
		}
	}
	return nil
}

func (b *Book) sharesFor(invoiceID string) []RevenueShare {
	var out []RevenueShare
	for _, s := range b.RevenueShares {
		if s.InvoiceID == invoiceID {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// NUMBERING
// =============================================================================

// nextNumber returns PREFIX-YYYY-NNNN, one past the highest existing
// sequence for that prefix and year.
func nextNumber(prefix string, year int, existing func(yield func(string))) string {
	head := fmt.Sprintf("%s-%04d-", prefix, year)
	max := 0
	existing(func(n string) {
		rest, ok := strings.CutPrefix(n, head)
		if !ok {
			return
		}
		if seq, err := strconv.Atoi(rest); err == nil && seq > max {
			max = seq
		}
	})
	return fmt.Sprintf("%s%04d", head, max+1)
}

// entrySeq splits PREFIX-YYYY-NNNN into its year and sequence. ok is
// false when either part is not an integer.
func entrySeq(number string) (year, seq int, ok bool) {
	head, rest, found := cutLast(number, "-")
	if !found {
		return 0, 0, false
	}
	_, y, found := cutLast(head, "-")
	if !found {
		return 0, 0, false
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return 0, 0, false
	}
	if seq, err = strconv.Atoi(rest); err != nil {
		return 0, 0, false
	}
	return year, seq, true
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// compareEntryNumbers orders entry numbers by year then sequence. Numbers
// that do not parse sort below those that do, by plain string order.
func compareEntryNumbers(a, b string) int {
	ya, sa, okA := entrySeq(a)
	yb, sb, okB := entrySeq(b)
	switch {
	case okA && okB:
		if c := cmp.Compare(ya, yb); c != 0 {
			return c
		}
		return cmp.Compare(sa, sb)
	case okA:
		return 1
	case okB:
		return -1
	}
	return strings.Compare(a, b)
}

// compareAccountNumbers orders integer numbers numerically, so "900"
// sorts before "1110", and places them ahead of any non-integer number.
func compareAccountNumbers(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil && na != nb:
		return cmp.Compare(na, nb)
	case errA == nil && errB != nil:
		return -1
	case errA != nil && errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func (b *Book) nextEntryNumber(year int) string {
	return nextNumber("JE", year, func(yield func(string)) {
		for _, e := range b.JournalEntries {
			yield(e.Number)
		}
	})
}

func (b *Book) nextInvoiceNumber(year int) string {
	return nextNumber("INV", year, func(yield func(string)) {
		for _, inv := range b.Invoices {
			yield(inv.Number)
		}
	})
}

func sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
