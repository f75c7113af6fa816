/*
Package factory provides JSON to Go reference-data conversion.

PURPOSE:
  Converts a JSON chart of accounts (plus cost centers and stakeholders)
  into finance records. This enables hospital setup without code changes:
  finance staff can define the chart in JSON and the factory creates the
  accounts, resolving parents by number.

JSON SCHEMA:
  {
    "accounts": [
      {"number": "1000", "name": "Assets", "type": "ASSET", "header": true},
      {"number": "1110", "name": "Cash on Hand", "type": "ASSET", "parent": "1000"}
    ],
    "cost_centers": [
      {"code": "CARD", "name": "Cardiology", "type": "PROFIT_CENTER", "annual_budget": "500000"}
    ],
    "stakeholders": [
      {"code": "DR-ADAMS", "name": "Dr. Adams", "role": "DOCTOR", "default_share_pct": "40"}
    ]
  }

KEY FEATURES:
  - Parents must appear before their children
  - Records whose number or code already exists are skipped, so applying
    the same setup twice is a no-op
  - Any other validation failure aborts the whole apply (the caller runs
    it inside one unit of work)

USAGE:
  setup, err := factory.ParseSetup(factory.DefaultHospitalSetupJSON)
  err = uow.Update(ctx, func(tx *generic.Tx) error {
      book, err := finance.LoadBook(tx)
      ...
      _, err = setup.Apply(book)
      return err
  })
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/hospital-ledger/finance"
	"github.com/warp/hospital-ledger/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SetupJSON is the JSON representation of finance reference data.
type SetupJSON struct {
	Accounts     []AccountJSON     `json:"accounts"`
	CostCenters  []CostCenterJSON  `json:"cost_centers,omitempty"`
	Stakeholders []StakeholderJSON `json:"stakeholders,omitempty"`
}

type AccountJSON struct {
	Number        string `json:"number"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	NormalBalance string `json:"normal_balance,omitempty"` // contra accounts only
	Parent        string `json:"parent,omitempty"`         // parent account number
	Header        bool   `json:"header,omitempty"`
}

type CostCenterJSON struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Type         string          `json:"type,omitempty"`
	AnnualBudget decimal.Decimal `json:"annual_budget"`
}

type StakeholderJSON struct {
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Role            string          `json:"role"`
	DefaultSharePct decimal.Decimal `json:"default_share_pct"`
}

// ApplyReport counts what Apply created and skipped.
type ApplyReport struct {
	AccountsCreated     int `json:"accounts_created"`
	CostCentersCreated  int `json:"cost_centers_created"`
	StakeholdersCreated int `json:"stakeholders_created"`
	Skipped             int `json:"skipped"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseSetup parses and structurally checks a setup document.
func ParseSetup(jsonStr string) (*SetupJSON, error) {
	var s SetupJSON
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		return nil, fmt.Errorf("failed to parse setup JSON: %w", err)
	}
	seen := make(map[string]bool, len(s.Accounts))
	for i, a := range s.Accounts {
		if a.Number == "" {
			return nil, fmt.Errorf("accounts[%d]: number is required", i)
		}
		if seen[a.Number] {
			return nil, fmt.Errorf("accounts[%d]: duplicate number %s", i, a.Number)
		}
		if a.Parent != "" && !seen[a.Parent] {
			return nil, fmt.Errorf("accounts[%d]: parent %s must be listed before %s", i, a.Parent, a.Number)
		}
		seen[a.Number] = true
	}
	return &s, nil
}

// =============================================================================
// APPLY
// =============================================================================

// Apply creates every record that does not exist yet.
func (s *SetupJSON) Apply(b *finance.Book) (ApplyReport, error) {
	var rep ApplyReport

	byNumber := make(map[string]string)
	for _, a := range b.Accounts {
		byNumber[a.Number] = a.ID
	}
	for _, aj := range s.Accounts {
		if _, exists := byNumber[aj.Number]; exists {
			rep.Skipped++
			continue
		}
		spec := finance.AccountSpec{
			Number:        aj.Number,
			Name:          aj.Name,
			Type:          finance.AccountType(aj.Type),
			NormalBalance: finance.NormalBalance(aj.NormalBalance),
			Header:        aj.Header,
		}
		if aj.Parent != "" {
			spec.ParentID = byNumber[aj.Parent]
		}
		acc, err := b.CreateAccount(spec)
		if err != nil {
			return rep, fmt.Errorf("account %s: %w", aj.Number, err)
		}
		byNumber[acc.Number] = acc.ID
		rep.AccountsCreated++
	}

	for _, cj := range s.CostCenters {
		_, err := b.CreateCostCenter(finance.CostCenterSpec{
			Code:         cj.Code,
			Name:         cj.Name,
			Type:         finance.CostCenterType(cj.Type),
			AnnualBudget: cj.AnnualBudget,
		})
		if errors.Is(err, generic.ErrDuplicateKey) {
			rep.Skipped++
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("cost center %s: %w", cj.Code, err)
		}
		rep.CostCentersCreated++
	}

	for _, sj := range s.Stakeholders {
		_, err := b.CreateStakeholder(finance.StakeholderSpec{
			Code:            sj.Code,
			Name:            sj.Name,
			Role:            finance.StakeholderRole(sj.Role),
			DefaultSharePct: sj.DefaultSharePct,
		})
		if errors.Is(err, generic.ErrDuplicateKey) {
			rep.Skipped++
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("stakeholder %s: %w", sj.Code, err)
		}
		rep.StakeholdersCreated++
	}
	return rep, nil
}

// =============================================================================
// DEFAULT HOSPITAL CHART
// =============================================================================

// DefaultHospitalSetupJSON is the chart used by `seed` and the demo setup.
// Its posting accounts match finance.DefaultPostingAccounts.
const DefaultHospitalSetupJSON = `{
  "accounts": [
    {"number": "1000", "name": "Assets", "type": "ASSET", "header": true},
    {"number": "1100", "name": "Cash and Bank", "type": "ASSET", "header": true, "parent": "1000"},
    {"number": "1110", "name": "Cash on Hand", "type": "ASSET", "parent": "1100"},
    {"number": "1120", "name": "Main Bank Account", "type": "ASSET", "parent": "1100"},
    {"number": "1200", "name": "Patient Receivables", "type": "ASSET", "parent": "1000"},
    {"number": "1300", "name": "Medical Supplies Inventory", "type": "ASSET", "parent": "1000"},
    {"number": "2000", "name": "Liabilities", "type": "LIABILITY", "header": true},
    {"number": "2100", "name": "Accounts Payable", "type": "LIABILITY", "parent": "2000"},
    {"number": "2200", "name": "Salaries Payable", "type": "LIABILITY", "parent": "2000"},
    {"number": "3000", "name": "Equity", "type": "EQUITY", "header": true},
    {"number": "3100", "name": "Retained Earnings", "type": "EQUITY", "parent": "3000"},
    {"number": "4000", "name": "Revenue", "type": "REVENUE", "header": true},
    {"number": "4100", "name": "Patient Service Revenue", "type": "REVENUE", "parent": "4000"},
    {"number": "4200", "name": "Pharmacy Revenue", "type": "REVENUE", "parent": "4000"},
    {"number": "4900", "name": "Sales Discounts", "type": "REVENUE", "normal_balance": "DEBIT", "parent": "4000"},
    {"number": "5000", "name": "Expenses", "type": "EXPENSE", "header": true},
    {"number": "5100", "name": "Salaries Expense", "type": "EXPENSE", "parent": "5000"},
    {"number": "5200", "name": "Medical Supplies Expense", "type": "EXPENSE", "parent": "5000"},
    {"number": "5300", "name": "Utilities Expense", "type": "EXPENSE", "parent": "5000"}
  ],
  "cost_centers": [
    {"code": "EMER", "name": "Emergency", "type": "PROFIT_CENTER", "annual_budget": "1200000"},
    {"code": "CARD", "name": "Cardiology", "type": "PROFIT_CENTER", "annual_budget": "800000"},
    {"code": "ADMIN", "name": "Administration", "type": "COST_CENTER", "annual_budget": "300000"}
  ],
  "stakeholders": [
    {"code": "HOSP", "name": "General Hospital", "role": "HOSPITAL", "default_share_pct": "60"},
    {"code": "DR-ADAMS", "name": "Dr. Adams", "role": "DOCTOR", "default_share_pct": "30"},
    {"code": "REF-CLINIC", "name": "Northside Clinic", "role": "REFERRER", "default_share_pct": "10"}
  ]
}`
