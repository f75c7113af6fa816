/*
Package finance implements the hospital ledger and invoice engine.

PURPOSE:
  Chart of accounts, cost centers and double-entry journal entries
  (ledger.go), patient invoices with insurance coverage and payments
  (invoice.go), and multi-party revenue sharing (revenue.go). All of it
  operates on one decoded finance snapshot, the Book, inside a unit of
  work owned by Service.

KEY INVARIANTS:
  - A POSTED entry has ΣDebit == ΣCredit exactly
  - Every line has exactly one of Debit/Credit non-zero, both ≥ 0
  - Account balances change only by posting
  - Subtotal − DiscountAmt == Total
  - InsuranceCoverageAmt + PatientResponsibility == Total
  - BalanceDue == PatientResponsibility − AmountPaid, never negative
  - Per invoice: Σ share.Pct ≤ 100 and Σ share.Amount ≤ Total
  - Policy UsedAmt never exceeds LimitAmt

SEE ALSO:
  - book.go: The snapshot and lookups
  - service.go: Transactional entry points
*/
package finance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

type AccountType string

const (
	Asset     AccountType = "ASSET"
	Liability AccountType = "LIABILITY"
	Equity    AccountType = "EQUITY"
	Revenue   AccountType = "REVENUE"
	Expense   AccountType = "EXPENSE"
)

func (t AccountType) Valid() bool {
	switch t {
	case Asset, Liability, Equity, Revenue, Expense:
		return true
	}
	return false
}

// NormalSide is the side that increases an account of this type.
func (t AccountType) NormalSide() NormalBalance {
	if t == Asset || t == Expense {
		return DebitNormal
	}
	return CreditNormal
}

type NormalBalance string

const (
	DebitNormal  NormalBalance = "DEBIT"
	CreditNormal NormalBalance = "CREDIT"
)

func (n NormalBalance) Valid() bool { return n == DebitNormal || n == CreditNormal }

type Account struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	Name          string          `json:"name"`
	Type          AccountType     `json:"type"`
	NormalBalance NormalBalance   `json:"normalBalance"`
	ParentID      string          `json:"parentId,omitempty"`
	AllowsPosting bool            `json:"allowsPosting"`
	Balance       decimal.Decimal `json:"balance"`
}

type CostCenterType string

const (
	CostCenterKind   CostCenterType = "COST_CENTER"
	ProfitCenterKind CostCenterType = "PROFIT_CENTER"
)

func (t CostCenterType) Valid() bool { return t == CostCenterKind || t == ProfitCenterKind }

type CostCenter struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           CostCenterType  `json:"type"`
	AnnualBudget   decimal.Decimal `json:"annualBudget"`
	ActualSpending decimal.Decimal `json:"actualSpending"`
}

// =============================================================================
// JOURNAL
// =============================================================================

type EntryStatus string

const (
	EntryDraft  EntryStatus = "DRAFT"
	EntryPosted EntryStatus = "POSTED"
)

type EntryType string

const (
	EntryGeneral   EntryType = "GENERAL"
	EntryPayment   EntryType = "PAYMENT"
	EntryRefund    EntryType = "REFUND"
	EntryPayroll   EntryType = "PAYROLL"
	EntryInventory EntryType = "INVENTORY"
	EntryReversal  EntryType = "REVERSAL"
)

func (t EntryType) Valid() bool {
	switch t {
	case EntryGeneral, EntryPayment, EntryRefund, EntryPayroll, EntryInventory, EntryReversal:
		return true
	}
	return false
}

type JournalEntry struct {
	ID           string          `json:"id"`
	Number       string          `json:"number,omitempty"`
	Date         generic.Date    `json:"date"`
	Type         EntryType       `json:"type"`
	Description  string          `json:"description"`
	SourceRef    string          `json:"sourceRef,omitempty"` // natural key of the business event
	Lines        []JournalLine   `json:"lines"`
	Status       EntryStatus     `json:"status"`
	TotalDebits  decimal.Decimal `json:"totalDebits"`
	TotalCredits decimal.Decimal `json:"totalCredits"`
	ReversesID   string          `json:"reversesId,omitempty"`
	ReversedByID string          `json:"reversedById,omitempty"`
	PostedAt     *time.Time      `json:"postedAt,omitempty"`
}

type JournalLine struct {
	ID           string          `json:"id"`
	EntryID      string          `json:"entryId"`
	AccountID    string          `json:"accountId"`
	CostCenterID string          `json:"costCenterId,omitempty"`
	Description  string          `json:"description,omitempty"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
}

// DraftEntry is the input to posting; totals are always derived.
type DraftEntry struct {
	Date        generic.Date
	Type        EntryType
	Description string
	SourceRef   string
	Lines       []DraftLine
}

type DraftLine struct {
	AccountID    string
	CostCenterID string
	Description  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
}

// =============================================================================
// INVOICES
// =============================================================================

type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "DRAFT"
	InvoicePending       InvoiceStatus = "PENDING"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceUnpaid        InvoiceStatus = "UNPAID"
	InvoiceCancelled     InvoiceStatus = "CANCELLED"
	InvoiceRefunded      InvoiceStatus = "REFUNDED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoicePending, InvoicePartiallyPaid, InvoicePaid,
		InvoiceUnpaid, InvoiceCancelled, InvoiceRefunded:
		return true
	}
	return false
}

// Terminal states accept no further transitions.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoicePaid || s == InvoiceCancelled || s == InvoiceRefunded
}

// AcceptsPayment is true for states that still owe money.
func (s InvoiceStatus) AcceptsPayment() bool {
	return s == InvoicePending || s == InvoiceUnpaid || s == InvoicePartiallyPaid
}

type Invoice struct {
	ID                    string          `json:"id"`
	Number                string          `json:"number"`
	Date                  generic.Date    `json:"date"`
	PatientID             string          `json:"patientId"`
	PolicyID              string          `json:"policyId,omitempty"`
	CostCenterID          string          `json:"costCenterId,omitempty"`
	Items                 []InvoiceItem   `json:"items"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountPct           decimal.Decimal `json:"discountPct"`
	DiscountAmt           decimal.Decimal `json:"discountAmt"`
	Total                 decimal.Decimal `json:"total"`
	InsuranceCoveragePct  decimal.Decimal `json:"insuranceCoveragePct"`
	InsuranceCoverageAmt  decimal.Decimal `json:"insuranceCoverageAmt"`
	PatientResponsibility decimal.Decimal `json:"patientResponsibility"`
	AmountPaid            decimal.Decimal `json:"amountPaid"`
	AmountRefunded        decimal.Decimal `json:"amountRefunded"`
	BalanceDue            decimal.Decimal `json:"balanceDue"`
	Status                InvoiceStatus   `json:"status"`
	Payments              []Payment       `json:"payments,omitempty"`
	CancelReason          string          `json:"cancelReason,omitempty"`
}

type InvoiceItem struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoiceId"`
	ServiceID   string          `json:"serviceId"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type PaymentMethod string

const (
	PayCash         PaymentMethod = "CASH"
	PayCard         PaymentMethod = "CARD"
	PayBankTransfer PaymentMethod = "BANK_TRANSFER"
	PayMobile       PaymentMethod = "MOBILE"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayCash, PayCard, PayBankTransfer, PayMobile:
		return true
	}
	return false
}

type Payment struct {
	ID             string          `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"method"`
	PaidAt         generic.Date    `json:"paidAt"`
	JournalEntryID string          `json:"journalEntryId"`
}

// =============================================================================
// INSURANCE
// =============================================================================

type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "ACTIVE"
	PolicyExpired   PolicyStatus = "EXPIRED"
	PolicySuspended PolicyStatus = "SUSPENDED"
)

func (s PolicyStatus) Valid() bool {
	return s == PolicyActive || s == PolicyExpired || s == PolicySuspended
}

type InsurancePolicy struct {
	ID           string           `json:"id"`
	PatientID    string           `json:"patientId"`
	ProviderID   string           `json:"providerId"`
	PolicyNumber string           `json:"policyNumber,omitempty"`
	CoveragePct  decimal.Decimal  `json:"coveragePct"`
	CoverageType string           `json:"coverageType,omitempty"`
	LimitAmt     *decimal.Decimal `json:"limitAmt,omitempty"` // nil = unlimited
	UsedAmt      decimal.Decimal  `json:"usedAmt"`
	Status       PolicyStatus     `json:"status"`
}

// Remaining returns the unused limit, or nil when the policy is unlimited.
func (p *InsurancePolicy) Remaining() *decimal.Decimal {
	if p.LimitAmt == nil {
		return nil
	}
	r := p.LimitAmt.Sub(p.UsedAmt)
	if r.IsNegative() {
		r = decimal.Zero
	}
	return &r
}

// =============================================================================
// REVENUE SHARING
// =============================================================================

type StakeholderRole string

const (
	RoleDoctor     StakeholderRole = "DOCTOR"
	RoleConsultant StakeholderRole = "CONSULTANT"
	RoleHospital   StakeholderRole = "HOSPITAL"
	RoleReferrer   StakeholderRole = "REFERRER"
	RoleDepartment StakeholderRole = "DEPARTMENT"
)

func (r StakeholderRole) Valid() bool {
	switch r {
	case RoleDoctor, RoleConsultant, RoleHospital, RoleReferrer, RoleDepartment:
		return true
	}
	return false
}

type Stakeholder struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Role            StakeholderRole `json:"role"`
	DefaultSharePct decimal.Decimal `json:"defaultSharePct"`
}

type ShareStatus string

const (
	SharePending ShareStatus = "PENDING"
	SharePaid    ShareStatus = "PAID"
)

type RevenueShare struct {
	ID            string          `json:"id"`
	InvoiceID     string          `json:"invoiceId"`
	StakeholderID string          `json:"stakeholderId"`
	Pct           decimal.Decimal `json:"pct"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentStatus ShareStatus     `json:"paymentStatus"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
}

// =============================================================================
// RULES - Configuration the operations depend on
// =============================================================================

// PostingAccounts names, by account number, the accounts that automatic
// entries post to.
type PostingAccounts struct {
	Cash            string
	Bank            string
	PatientRevenue  string
	SalariesExpense string
	SalariesPayable string
	SuppliesExpense string
	AccountsPayable string
}

// Rules bundles the currency and posting accounts.
type Rules struct {
	Currency generic.Currency
	Accounts PostingAccounts
}

// DefaultPostingAccounts matches the default hospital chart.
func DefaultPostingAccounts() PostingAccounts {
	return PostingAccounts{
		Cash:            "1110",
		Bank:            "1120",
		PatientRevenue:  "4100",
		SalariesExpense: "5100",
		SalariesPayable: "2200",
		SuppliesExpense: "5200",
		AccountsPayable: "2100",
	}
}

// DefaultRules uses USD and the default posting accounts.
func DefaultRules() Rules {
	return Rules{Currency: generic.MustCurrency(generic.DefaultCurrencyCode), Accounts: DefaultPostingAccounts()}
}

// accountFor maps a payment method to the receiving account number.
func (a PostingAccounts) accountFor(m PaymentMethod) string {
	if m == PayCash {
		return a.Cash
	}
	return a.Bank
}
