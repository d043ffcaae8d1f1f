// Package storeopen opens the storage.Driver selected by the storage config.
package storeopen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/papercomputeco/insights/cmd/insights/sqlitepath"
	"github.com/papercomputeco/insights/pkg/config"
	"github.com/papercomputeco/insights/pkg/storage"
	"github.com/papercomputeco/insights/pkg/storage/inmemory"
	"github.com/papercomputeco/insights/pkg/storage/postgres"
	"github.com/papercomputeco/insights/pkg/storage/sqlite"
)

// Open returns the driver for cfg. SQLite paths resolve through sqlitepath
// and their parent directory is created if needed.
func Open(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (storage.Driver, error) {
	switch cfg.Driver {
	case "memory":
		log.Debug("using in-memory storage")
		return inmemory.NewDriver(), nil

	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("storage.postgres_dsn is required for the postgres driver")
		}
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres storage: %w", err)
		}
		log.Debug("using postgres storage")
		return driver, nil

	case "", "sqlite":
		path := sqlitepath.ResolveSQLitePath(cfg.SQLitePath)
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating sqlite directory %s: %w", dir, err)
			}
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite storage %s: %w", path, err)
		}
		log.Debug("using sqlite storage", "path", path)
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
