// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	mailbox := cfg.Mailbox.Path
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied to unset values
const (
	DefaultDatabasePath = "txlog.db"
	DefaultMailboxPath  = "mailbox.yaml"
	DefaultLookbackDays = 7
	DefaultAPIPort      = 8085
)

// Config represents the entire application configuration
type Config struct {
	Merchants     MerchantsConfig     `yaml:"merchants"`
	Cards         []CardConfig        `yaml:"cards"`
	Mailbox       MailboxConfig       `yaml:"mailbox"`
	Storage       StorageConfig       `yaml:"storage"`
	API           APIConfig           `yaml:"api"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// MerchantsConfig selects which registered merchants a run processes
type MerchantsConfig struct {
	// Enabled lists merchant keys to process. Empty means all registered.
	Enabled []string `yaml:"enabled"`

	// Senders overrides the sender address of a merchant, keyed by merchant.
	Senders map[string]string `yaml:"senders"`
}

// CardConfig is a card profile: the merchants that send its notifications
// and the last digits its rows carry.
type CardConfig struct {
	Nickname   string   `yaml:"nickname"`
	LastDigits string   `yaml:"last_digits"`
	Merchants  []string `yaml:"merchants"`
}

// MailboxConfig holds the email source settings
type MailboxConfig struct {
	Path         string `yaml:"path"`
	LookbackDays int    `yaml:"lookback_days"`
	Limit        int    `yaml:"limit"` // Max emails per merchant (0 = no limit)
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// APIConfig holds HTTP server configuration
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS origins; empty uses the dev defaults
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${TXLOG_MAILBOX})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Merchants: MerchantsConfig{
			Enabled: splitList(os.Getenv("TXLOG_MERCHANTS")),
		},
		Mailbox: MailboxConfig{
			Path:         getEnv("TXLOG_MAILBOX", DefaultMailboxPath),
			LookbackDays: getEnvInt("TXLOG_LOOKBACK_DAYS", DefaultLookbackDays),
			Limit:        getEnvInt("TXLOG_MAILBOX_LIMIT", 0),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("TXLOG_DB_PATH", DefaultDatabasePath),
		},
		API: APIConfig{
			Port: getEnvInt("TXLOG_API_PORT", DefaultAPIPort),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// EnabledMerchants returns the configured merchant keys, or all of
// registered when none are configured.
func (c *Config) EnabledMerchants(registered []string) []string {
	if len(c.Merchants.Enabled) == 0 {
		return append([]string(nil), registered...)
	}
	return append([]string(nil), c.Merchants.Enabled...)
}

// Card looks up a card profile by nickname, ignoring case.
func (c *Config) Card(nickname string) (CardConfig, bool) {
	for _, card := range c.Cards {
		if strings.EqualFold(card.Nickname, nickname) {
			return card, true
		}
	}
	return CardConfig{}, false
}

func (c *Config) applyDefaults() {
	if c.Mailbox.Path == "" {
		c.Mailbox.Path = DefaultMailboxPath
	}
	if c.Mailbox.LookbackDays <= 0 {
		c.Mailbox.LookbackDays = DefaultLookbackDays
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = DefaultDatabasePath
	}
	if c.API.Port == 0 {
		c.API.Port = DefaultAPIPort
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// splitList parses a comma-separated list, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
