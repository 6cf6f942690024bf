package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clytar/clytar-backend/config"
	"github.com/clytar/clytar-backend/internal/storage/postgres"
	"github.com/clytar/clytar-backend/internal/storage/postgres/migrations"
)

type DBOptions struct {
	ConnectTO time.Duration
	Migrate   bool
}

// OpenDB connects to Postgres and, with opt.Migrate, brings the schema up
// to date.
func OpenDB(ctx context.Context, cfg *config.DatabaseConfig, opt DBOptions, log *zap.Logger) (*sql.DB, error) {
	if opt.ConnectTO == 0 {
		opt.ConnectTO = 5 * time.Second
	}

	cctx, cancel := context.WithTimeout(ctx, opt.ConnectTO)
	defer cancel()

	db, err := postgres.NewConnection(cctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if opt.Migrate {
		if err := migrations.MigrateUp(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
	}
	version, dirty, err := migrations.Status(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("db schema version: %w", err)
	}
	if dirty {
		db.Close()
		return nil, fmt.Errorf("db schema is dirty at version %d", version)
	}

	log.Info("database ready",
		zap.String("dsn", postgres.Describe(cfg.DSN)),
		zap.Uint("schema_version", version),
	)
	return db, nil
}
