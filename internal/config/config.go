// Package config loads runtime configuration from an optional YAML file with
// environment variable overrides. Environment always wins so deployments can
// keep secrets out of the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Port    string        `yaml:"port"`
	DataDir string        `yaml:"data_dir"`
	Session SessionConfig `yaml:"session"`
	Sync    SyncConfig    `yaml:"sync"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	AWS     AWSConfig     `yaml:"aws"`
}

// SessionConfig tunes the confirmation window.
type SessionConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// SyncConfig configures the storefront status client.
type SyncConfig struct {
	BaseURL       string        `yaml:"base_url"`
	BackupURL     string        `yaml:"backup_url"`
	APIKey        string        `yaml:"api_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	Timeout       time.Duration `yaml:"timeout"`
	ReportExpired bool          `yaml:"report_expired"`
}

// LedgerConfig selects the sync ledger backend.
type LedgerConfig struct {
	// Backend is "file" or "dynamodb".
	Backend      string `yaml:"backend"`
	SuccessTable string `yaml:"success_table"`
	FailureTable string `yaml:"failure_table"`
}

// AWSConfig configures the optional AWS integrations.
type AWSConfig struct {
	Region           string `yaml:"region"`
	OutcomeQueueURL  string `yaml:"outcome_queue_url"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:    "3000",
		DataDir: ".",
		Session: SessionConfig{TTL: time.Hour},
		Sync: SyncConfig{
			BaseURL:    "https://aitooshop.easy-orders.net",
			MaxRetries: 3,
			RetryDelay: 5 * time.Second,
			Timeout:    10 * time.Second,
		},
		Ledger: LedgerConfig{Backend: "file"},
		AWS:    AWSConfig{MetricsNamespace: "OrderBot"},
	}
}

// Load reads path (skipped when empty or missing) over the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env-only configuration
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.DataDir, "DATA_DIR")
	setString(&cfg.Sync.BaseURL, "EASY_ORDER_API_URL")
	setString(&cfg.Sync.BackupURL, "EASY_ORDER_BACKUP_URL")
	setString(&cfg.Sync.APIKey, "EASY_ORDER_API_KEY")
	setString(&cfg.Sync.WebhookSecret, "EASY_ORDER_WEBHOOK_SECRET")
	setBool(&cfg.Sync.ReportExpired, "SYNC_REPORT_EXPIRED")
	setString(&cfg.Ledger.Backend, "LEDGER_BACKEND")
	setString(&cfg.Ledger.SuccessTable, "LEDGER_SUCCESS_TABLE")
	setString(&cfg.Ledger.FailureTable, "LEDGER_FAILURE_TABLE")
	setString(&cfg.AWS.Region, "AWS_REGION")
	setString(&cfg.AWS.OutcomeQueueURL, "OUTCOME_QUEUE_URL")
	setString(&cfg.AWS.MetricsNamespace, "METRICS_NAMESPACE")
	setDuration(&cfg.Session.TTL, "SESSION_TTL")
}

func (c Config) validate() error {
	switch c.Ledger.Backend {
	case "file", "dynamodb":
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.Ledger.Backend == "dynamodb" && (c.Ledger.SuccessTable == "" || c.Ledger.FailureTable == "") {
		return fmt.Errorf("dynamodb ledger requires success_table and failure_table")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Sync.MaxRetries < 1 {
		return fmt.Errorf("sync max_retries must be at least 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}
