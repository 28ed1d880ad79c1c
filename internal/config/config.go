package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Tracker  TrackerConfig   `mapstructure:"tracker"`
	Log      LogConfig       `mapstructure:"log"`
	Accounts []AccountConfig `mapstructure:"accounts"`
	Groups   []GroupConfig   `mapstructure:"groups"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
	AdminKey      string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	StateRetentionDays     int    `mapstructure:"state_retention_days"`
	AuditRetentionDays     int    `mapstructure:"audit_retention_days"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	Addr            string `mapstructure:"addr"`
	Password        string `mapstructure:"password"`
	DB              int    `mapstructure:"db"`
	StateTTLSeconds int    `mapstructure:"state_ttl_seconds"`
	AuditListKey    string `mapstructure:"audit_list_key"`
	AuditListMax    int    `mapstructure:"audit_list_max"`
}

type TrackerConfig struct {
	// Snapshot staleness cutoff: accounts silent longer than this report as
	// disconnected in group views.
	StaleAfterSeconds int `mapstructure:"stale_after_seconds"`
	// Per-account snapshot ingest rate limit.
	SnapshotRatePerSec float64 `mapstructure:"snapshot_rate_per_sec"`
	SnapshotBurst      int     `mapstructure:"snapshot_burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AccountConfig 静态注册的被跟踪账户。
type AccountConfig struct {
	ID              string  `mapstructure:"id"`
	Name            string  `mapstructure:"name"`
	Firm            string  `mapstructure:"firm"`         // apex, topstep, mff, bulenox, takeprofit
	AccountType     string  `mapstructure:"account_type"` // eval, pa, funded
	RuleVersion     string  `mapstructure:"rule_version"`
	StartingBalance float64 `mapstructure:"starting_balance"`
	APIKey          string  `mapstructure:"api_key"`
}

type GroupConfig struct {
	ID       string   `mapstructure:"id"`
	Name     string   `mapstructure:"name"`
	Accounts []string `mapstructure:"accounts"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. PROPGATE_DATABASE_DSN
	viper.SetEnvPrefix("propgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("redis.state_ttl_seconds", 86400)
	viper.SetDefault("redis.audit_list_key", "rule_events")
	viper.SetDefault("redis.audit_list_max", 10000)
	viper.SetDefault("database.state_retention_days", 30)
	viper.SetDefault("database.audit_retention_days", 30)
	viper.SetDefault("database.cleanup_interval_minutes", 60)
	viper.SetDefault("tracker.stale_after_seconds", 30)
	viper.SetDefault("tracker.snapshot_rate_per_sec", 20)
	viper.SetDefault("tracker.snapshot_burst", 40)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
