// Package config loads the job configuration from file, environment, and
// defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/emberline/marketpulse/internal/normalize"
)

type Config struct {
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Report      ReportConfig      `mapstructure:"report"`
	Slack       SlackConfig       `mapstructure:"slack"`
	Store       StoreConfig       `mapstructure:"store"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type MarketplaceConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	APIToken string `mapstructure:"api_token"`
	VendorID string `mapstructure:"vendor_id"`

	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollDeadline time.Duration `mapstructure:"poll_deadline"`
}

type ReportConfig struct {
	// Day pins the report to one UTC calendar day (YYYY-MM-DD) for
	// backfills. Empty means yesterday.
	Day string `mapstructure:"day"`

	LookbackDays int `mapstructure:"lookback_days"`

	// Apps is an optional allow-list of product display names.
	Apps []string `mapstructure:"apps"`

	DryRun bool `mapstructure:"dry_run"`

	// ProductNamesFile points to a yaml table of addonKey: display name,
	// used to label churn records that carry only a key.
	ProductNamesFile string `mapstructure:"product_names_file"`
}

type SlackConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	// Backend selects the seen-identifier store: memory, redis, postgres.
	Backend     string `mapstructure:"backend"`
	RedisURL    string `mapstructure:"redis_url"`
	PostgresURL string `mapstructure:"postgres_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("marketplace.base_url", "https://marketplace.atlassian.com")
	v.SetDefault("marketplace.timeout", "2m")
	v.SetDefault("marketplace.poll_interval", "5s")
	v.SetDefault("marketplace.poll_deadline", "5m")
	v.SetDefault("report.lookback_days", 60)
	v.SetDefault("report.dry_run", false)
	v.SetDefault("slack.timeout", "30s")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/marketpulse")
	}

	// Environment variables override
	v.SetEnvPrefix("MARKETPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fields every real run needs. A dry run can do without
// the webhook.
func (c *Config) Validate() error {
	var missing []string
	if c.Marketplace.Username == "" {
		missing = append(missing, "marketplace.username")
	}
	if c.Marketplace.APIToken == "" {
		missing = append(missing, "marketplace.api_token")
	}
	if c.Marketplace.VendorID == "" {
		missing = append(missing, "marketplace.vendor_id")
	}
	if c.Slack.WebhookURL == "" && !c.Report.DryRun {
		missing = append(missing, "slack.webhook_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	switch c.Store.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.RedisURL == "" {
		return fmt.Errorf("store.redis_url required for the redis backend")
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresURL == "" {
		return fmt.Errorf("store.postgres_url required for the postgres backend")
	}
	return nil
}

// ReportDay resolves the configured report day: the pinned backfill date if
// set, else yesterday in UTC.
func (c *Config) ReportDay(now time.Time) (time.Time, error) {
	if c.Report.Day == "" {
		y := now.UTC().AddDate(0, 0, -1)
		return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse("2006-01-02", c.Report.Day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid report day %q: %w", c.Report.Day, err)
	}
	return d, nil
}

// ProductNames loads the optional addonKey→display-name table. A missing
// file path yields an empty table, not an error.
func (c *Config) ProductNames() (normalize.ProductNames, error) {
	if c.Report.ProductNamesFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Report.ProductNamesFile)
	if err != nil {
		return nil, fmt.Errorf("read product names file: %w", err)
	}
	names := make(normalize.ProductNames)
	if err := yaml.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse product names file: %w", err)
	}
	return names, nil
}
