package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/hospital-ledger/finance"
	"github.com/warp/hospital-ledger/generic"
)

// Config is the top-level hospital-ledger.yaml configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Finance FinanceConfig `yaml:"finance"`
	HR      HRConfig      `yaml:"hr"`
	Sync    SyncConfig    `yaml:"sync"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// StoreConfig locates the SQLite database. ":memory:" keeps everything in
// process.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// FinanceConfig sets the ledger currency and the accounts automatic entries
// post to, by account number.
type FinanceConfig struct {
	Currency string         `yaml:"currency"`
	Accounts AccountsConfig `yaml:"accounts"`
}

type AccountsConfig struct {
	Cash            string `yaml:"cash"`
	Bank            string `yaml:"bank"`
	PatientRevenue  string `yaml:"patient_revenue"`
	SalariesExpense string `yaml:"salaries_expense"`
	SalariesPayable string `yaml:"salaries_payable"`
	SuppliesExpense string `yaml:"supplies_expense"`
	AccountsPayable string `yaml:"accounts_payable"`
}

// HRConfig lists non-working weekdays by name, e.g. ["Saturday", "Sunday"].
type HRConfig struct {
	WeekendDays []string `yaml:"weekend_days"`
}

// SyncConfig controls the background finance sync.
type SyncConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads a YAML file on top of Default, so omitted keys keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns the configuration matching the default hospital chart.
func Default() *Config {
	acc := finance.DefaultPostingAccounts()
	return &Config{
		Server: ServerConfig{Port: 8080},
		Store:  StoreConfig{Path: "hospital-ledger.db"},
		Finance: FinanceConfig{
			Currency: generic.DefaultCurrencyCode,
			Accounts: AccountsConfig{
				Cash:            acc.Cash,
				Bank:            acc.Bank,
				PatientRevenue:  acc.PatientRevenue,
				SalariesExpense: acc.SalariesExpense,
				SalariesPayable: acc.SalariesPayable,
				SuppliesExpense: acc.SuppliesExpense,
				AccountsPayable: acc.AccountsPayable,
			},
		},
		HR:   HRConfig{WeekendDays: []string{"Saturday", "Sunday"}},
		Sync: SyncConfig{Enabled: false, Interval: 5 * time.Minute},
		Log:  LogConfig{Level: "info"},
	}
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if _, err := generic.NewCurrency(c.Finance.Currency); err != nil {
		return fmt.Errorf("finance.currency: %w", err)
	}
	a := c.Finance.Accounts
	for name, v := range map[string]string{
		"cash": a.Cash, "bank": a.Bank, "patient_revenue": a.PatientRevenue,
		"salaries_expense": a.SalariesExpense, "salaries_payable": a.SalariesPayable,
		"supplies_expense": a.SuppliesExpense, "accounts_payable": a.AccountsPayable,
	} {
		if v == "" {
			return fmt.Errorf("finance.accounts.%s is required", name)
		}
	}
	if _, err := c.Weekend(); err != nil {
		return err
	}
	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive when sync is enabled")
	}
	return nil
}

// Rules converts the finance section into ledger rules.
func (c *Config) Rules() (finance.Rules, error) {
	cur, err := generic.NewCurrency(c.Finance.Currency)
	if err != nil {
		return finance.Rules{}, err
	}
	a := c.Finance.Accounts
	return finance.Rules{
		Currency: cur,
		Accounts: finance.PostingAccounts{
			Cash:            a.Cash,
			Bank:            a.Bank,
			PatientRevenue:  a.PatientRevenue,
			SalariesExpense: a.SalariesExpense,
			SalariesPayable: a.SalariesPayable,
			SuppliesExpense: a.SuppliesExpense,
			AccountsPayable: a.AccountsPayable,
		},
	}, nil
}

// Weekend parses the configured weekend day names.
func (c *Config) Weekend() ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(c.HR.WeekendDays))
	for _, name := range c.HR.WeekendDays {
		d, err := generic.ParseWeekday(name)
		if err != nil {
			return nil, fmt.Errorf("hr.weekend_days: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}
