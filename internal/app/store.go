package app

import (
	"context"
	"fmt"

	"github.com/vi13x/coinbot/internal/config"
	"github.com/vi13x/coinbot/internal/service"
	"github.com/vi13x/coinbot/internal/storage"
	"github.com/vi13x/coinbot/internal/storage/postgres"
	"github.com/vi13x/coinbot/internal/storage/sqlite"
)

// OpenStore opens the ledger backend named by cfg.DBDriver.
func OpenStore(ctx context.Context, cfg *config.Config) (service.Repository, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.DBPath)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DatabaseURL)
	case config.DriverFile:
		return storage.OpenFileDB(cfg.DBPath)
	}
	return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
}
