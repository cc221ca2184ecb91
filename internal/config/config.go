package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFile     = "file"
)

type Config struct {
	Token  string `env:"TOKEN"`
	Port   int    `env:"PORT" envDefault:"3000"`
	Debug  bool   `env:"COINBOT_DEBUG"`
	Prefix string `env:"COINBOT_PREFIX" envDefault:"!"`

	Admins  []string `env:"COINBOT_ADMINS" envSeparator:","`
	LogChat int64    `env:"COINBOT_LOG_CHAT"`

	DBDriver    string `env:"COINBOT_DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"COINBOT_DB_PATH" envDefault:"data.db"`
	DatabaseURL string `env:"COINBOT_DATABASE_URL"`

	ShopDir     string `env:"COINBOT_SHOP_DIR" envDefault:"./shop_items"`
	AuditDir    string `env:"COINBOT_AUDIT_DIR" envDefault:"./data/audit"`
	EconomyFile string `env:"COINBOT_ECONOMY_FILE"`
}

// NewConfig loads process settings from the environment.
func NewConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case DriverSQLite, DriverFile:
		if strings.TrimSpace(cfg.DBPath) == "" {
			return nil, fmt.Errorf("COINBOT_DB_PATH is required for driver %s", cfg.DBDriver)
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("COINBOT_DATABASE_URL is required for driver postgres")
		}
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = "!"
	}
	admins := cfg.Admins[:0]
	for _, a := range cfg.Admins {
		if a = strings.TrimSpace(a); a != "" {
			admins = append(admins, a)
		}
	}
	cfg.Admins = admins
	return &cfg, nil
}
