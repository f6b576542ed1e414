package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML(t *testing.T) {
	// config.example.yaml lives at the project root
	cfg, err := Load("../../../config.example.yaml")
	if os.IsNotExist(err) {
		t.Skip("config.example.yaml not found")
	}
	require.NoError(t, err)

	assert.Equal(t, "txlog.db", cfg.Storage.DatabasePath)
	assert.Equal(t, []string{"Grab", "Foodpanda", "Metrobank", "GreenGSM"}, cfg.Merchants.Enabled)
	assert.Equal(t, 8085, cfg.API.Port)

	card, ok := cfg.Card("metrobank visa")
	require.True(t, ok)
	assert.Equal(t, "1234", card.LastDigits)
	assert.Equal(t, []string{"Metrobank", "Grab"}, card.Merchants)
}

func TestCard(t *testing.T) {
	cfg := &Config{Cards: []CardConfig{
		{Nickname: "Travel", LastDigits: "4242", Merchants: []string{"Grab"}},
		{Nickname: "Food", LastDigits: "FPND", Merchants: []string{"Foodpanda"}},
	}}

	card, ok := cfg.Card("FOOD")
	require.True(t, ok)
	assert.Equal(t, "FPND", card.LastDigits)

	_, ok = cfg.Card("Groceries")
	assert.False(t, ok)
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("TXLOG_DB_PATH", "test.db")
	os.Setenv("TXLOG_MAILBOX", "inbox.yaml")
	os.Setenv("TXLOG_MERCHANTS", "Grab, Metrobank,,")
	os.Setenv("TXLOG_LOOKBACK_DAYS", "30")
	defer func() {
		os.Unsetenv("TXLOG_DB_PATH")
		os.Unsetenv("TXLOG_MAILBOX")
		os.Unsetenv("TXLOG_MERCHANTS")
		os.Unsetenv("TXLOG_LOOKBACK_DAYS")
	}()

	cfg := LoadFromEnv()
	assert.Equal(t, "test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "inbox.yaml", cfg.Mailbox.Path)
	assert.Equal(t, 30, cfg.Mailbox.LookbackDays)
	assert.Equal(t, []string{"Grab", "Metrobank"}, cfg.Merchants.Enabled)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	os.Unsetenv("TXLOG_DB_PATH")
	os.Unsetenv("TXLOG_API_PORT")
	os.Unsetenv("TXLOG_LOOKBACK_DAYS")
	os.Setenv("TXLOG_MAILBOX_LIMIT", "not-a-number")
	defer os.Unsetenv("TXLOG_MAILBOX_LIMIT")

	cfg := LoadFromEnv()
	assert.Equal(t, DefaultDatabasePath, cfg.Storage.DatabasePath)
	assert.Equal(t, DefaultAPIPort, cfg.API.Port)
	assert.Equal(t, DefaultLookbackDays, cfg.Mailbox.LookbackDays)
	assert.Equal(t, 0, cfg.Mailbox.Limit)
	assert.Equal(t, "info", cfg.Observability.Logging.Level)
}

func TestLoadOrEnv_FallbackToEnv(t *testing.T) {
	os.Setenv("TXLOG_DB_PATH", "fallback.db")
	defer os.Unsetenv("TXLOG_DB_PATH")

	cfg := LoadOrEnvWithPath("nonexistent.yaml")
	assert.NotNil(t, cfg)
	assert.Equal(t, "fallback.db", cfg.Storage.DatabasePath)
}

func TestEnvVarExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
mailbox:
  path: "${TEST_MAILBOX}"
storage:
  database_path: "${TEST_DB_PATH}"
merchants:
  senders:
    Grab: "${TEST_GRAB_SENDER}"
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	os.Setenv("TEST_DB_PATH", "expanded.db")
	os.Setenv("TEST_MAILBOX", "/var/mail/cards.yaml")
	os.Setenv("TEST_GRAB_SENDER", "receipts@grab.com")
	defer func() {
		os.Unsetenv("TEST_DB_PATH")
		os.Unsetenv("TEST_MAILBOX")
		os.Unsetenv("TEST_GRAB_SENDER")
	}()

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "expanded.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "/var/mail/cards.yaml", cfg.Mailbox.Path)
	assert.Equal(t, "receipts@grab.com", cfg.Merchants.Senders["Grab"])
	assert.Equal(t, DefaultLookbackDays, cfg.Mailbox.LookbackDays)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("mailbox: [unterminated"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestEnabledMerchants(t *testing.T) {
	all := []string{"Foodpanda", "Grab"}

	cfg := &Config{}
	assert.Equal(t, all, cfg.EnabledMerchants(all))

	cfg.Merchants.Enabled = []string{"Grab"}
	assert.Equal(t, []string{"Grab"}, cfg.EnabledMerchants(all))
}
