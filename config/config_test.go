package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Finance.Currency = "EUR"
	cfg.Sync = SyncConfig{Enabled: true, Interval: 90 * time.Second}

	path := filepath.Join(t.TempDir(), "hospital-ledger.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, got.Server.Port)
	assert.Equal(t, "EUR", got.Finance.Currency)
	assert.True(t, got.Sync.Enabled)
	assert.Equal(t, 90*time.Second, got.Sync.Interval)
	assert.Equal(t, cfg.Finance.Accounts, got.Finance.Accounts)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hospital-ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7000\nhr:\n  weekend_days: [Friday, Sat]\n"), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, got.Server.Port)
	assert.Equal(t, "USD", got.Finance.Currency)
	assert.Equal(t, "1110", got.Finance.Accounts.Cash)

	weekend, err := got.Weekend()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, weekend)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Sync.Enabled)

	rules, err := cfg.Rules()
	require.NoError(t, err)
	assert.Equal(t, "USD", rules.Currency.Code())
	assert.Equal(t, "4100", rules.Accounts.PatientRevenue)
	assert.Equal(t, "2100", rules.Accounts.AccountsPayable)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"no store path", func(c *Config) { c.Store.Path = "" }},
		{"unknown currency", func(c *Config) { c.Finance.Currency = "XYZ1" }},
		{"missing account", func(c *Config) { c.Finance.Accounts.Bank = "" }},
		{"bad weekday", func(c *Config) { c.HR.WeekendDays = []string{"Caturday"} }},
		{"sync without interval", func(c *Config) { c.Sync = SyncConfig{Enabled: true} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
