// Package config loads server settings from defaults, an optional config
// file and GROUPX_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GROUPX_HTTP_ADDR.
const EnvPrefix = "GROUPX"

// Config is the full server configuration.
type Config struct {
	HTTPAddr  string `mapstructure:"http_addr"`
	DBPath    string `mapstructure:"db_path"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`

	// DefaultTenantID is assigned to registrations that name no tenant.
	DefaultTenantID string `mapstructure:"default_tenant_id"`

	// RedisAddr enables distributed exchange locks when set.
	RedisAddr string `mapstructure:"redis_addr"`

	LedgerTimeout time.Duration `mapstructure:"ledger_timeout"`
	NotifyBuffer  int           `mapstructure:"notify_buffer"`

	Broker  BrokerConfig  `mapstructure:"broker"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// BrokerConfig controls broker approval.
type BrokerConfig struct {
	// IDs are the users allowed to approve, reject and resolve.
	IDs []string `mapstructure:"ids"`
	// MaxHoursWithoutApproval is a decimal string; "0" disables approval.
	MaxHoursWithoutApproval string `mapstructure:"max_hours_without_approval"`
}

// Threshold parses MaxHoursWithoutApproval.
func (b BrokerConfig) Threshold() (decimal.Decimal, error) {
	if strings.TrimSpace(b.MaxHoursWithoutApproval) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(b.MaxHoursWithoutApproval)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid broker.max_hours_without_approval %q: %w", b.MaxHoursWithoutApproval, err)
	}
	return d, nil
}

// BreakerConfig tunes the ledger circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_path", "./data/groupexchange.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("default_tenant_id", "default")
	v.SetDefault("redis_addr", "")
	v.SetDefault("ledger_timeout", 10*time.Second)
	v.SetDefault("notify_buffer", 256)
	v.SetDefault("broker.ids", []string{})
	v.SetDefault("broker.max_hours_without_approval", "0")
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", 30*time.Second)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Broker.IDs = normalizeList(cfg.Broker.IDs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.LedgerTimeout <= 0 {
		errs = append(errs, errors.New("ledger_timeout must be positive"))
	}
	if c.NotifyBuffer < 0 {
		errs = append(errs, errors.New("notify_buffer must not be negative"))
	}
	if c.DefaultTenantID == "" {
		errs = append(errs, errors.New("default_tenant_id is required"))
	}
	if d, err := c.Broker.Threshold(); err != nil {
		errs = append(errs, err)
	} else if d.IsNegative() {
		errs = append(errs, errors.New("broker.max_hours_without_approval must not be negative"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// normalizeList splits comma separated entries and drops blanks.
func normalizeList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
