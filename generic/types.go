/*
Package generic provides the shared kernel of the hospital ledger.

PURPOSE:
  Domain packages (finance, hr, integration) build on a small set of
  domain-agnostic pieces kept here: money and currency rounding, calendar
  dates and the work calendar, the error taxonomy, the keyed blob store
  contract and the unit of work that is the only I/O boundary.

KEY CONCEPTS IN THIS FILE (types.go):
  - Currency: ISO currency with its smallest unit (fraction digits)
  - Percent helpers: All percentages are in percent units (10 = 10%)
  - IDs: Random identifiers for every persisted record

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Rounding: Derived amounts are rounded to the currency's smallest unit once,
     at the point they are computed, so stored values add up exactly
  3. Auditability: Posted records are never modified, only compensated

USAGE:
  cur, _ := generic.NewCurrency("USD")
  discount := cur.Round(generic.PercentOf(subtotal, pct))

SEE ALSO:
  - errors.go: Error taxonomy
  - store.go: Blob store contract
  - unit_of_work.go: Read-modify-write over snapshots
*/
package generic

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Hundred is 100 as a decimal; percentages are divided by it.
var Hundred = decimal.NewFromInt(100)

// =============================================================================
// CURRENCY - Smallest unit and display
// =============================================================================

// Currency wraps a go-money currency definition.
type Currency struct {
	cur *money.Currency
}

// DefaultCurrencyCode is used when configuration names none.
const DefaultCurrencyCode = "USD"

// NewCurrency looks up an ISO 4217 code.
func NewCurrency(code string) (Currency, error) {
	cur := money.GetCurrency(code)
	if cur == nil {
		return Currency{}, NewValidation("currency", fmt.Sprintf("unknown currency %q", code))
	}
	return Currency{cur: cur}, nil
}

// MustCurrency is NewCurrency for compile-time constants.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Currency) code() *money.Currency {
	if c.cur == nil {
		return money.GetCurrency(DefaultCurrencyCode)
	}
	return c.cur
}

// Code returns the ISO code.
func (c Currency) Code() string { return c.code().Code }

// Fraction is the number of digits of the smallest unit (2 for USD, 0 for JPY).
func (c Currency) Fraction() int32 { return int32(c.code().Fraction) }

// Round rounds half away from zero to the smallest unit.
func (c Currency) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(c.Fraction())
}

// Truncate drops digits below the smallest unit.
func (c Currency) Truncate(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(c.Fraction())
}

// IsRounded reports whether d has no digits below the smallest unit.
func (c Currency) IsRounded(d decimal.Decimal) bool {
	return d.Equal(c.Round(d))
}

// Format renders an amount for display ("$1,234.50").
func (c Currency) Format(d decimal.Decimal) string {
	minor := c.Round(d).Shift(c.Fraction())
	return c.code().Formatter().Format(minor.IntPart())
}

// =============================================================================
// PERCENT HELPERS
// =============================================================================

// PercentOf returns amount × pct / 100, unrounded.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(Hundred)
}

// ValidPercent reports whether pct is within [0, 100].
func ValidPercent(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(Hundred)
}

// =============================================================================
// IDS
// =============================================================================

// NewID returns a random identifier with a readable prefix ("inv_...").
func NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
