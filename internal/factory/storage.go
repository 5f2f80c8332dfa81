package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlot/openlot/core/internal/config"
	storepkg "github.com/openlot/openlot/core/internal/store"
	storepg "github.com/openlot/openlot/core/internal/store/postgres"
	storesqlite "github.com/openlot/openlot/core/internal/store/sqlite"
)

// NewStore builds the configured store.Store.
// For Postgres the connection is opened synchronously so health checks can
// use it immediately; the schema bootstrap check runs async to keep startup
// fast. SQLite ensures its schema during New.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		dsn := cfg.PostgresDSN
		if dsn == "" {
			return nil, fmt.Errorf("OPENLOT_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		db, err := storepg.Open(dsn)
		if err != nil {
			return nil, err
		}
		go func() {
			bootstrapCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := storepg.Bootstrap(bootstrapCtx, db); err != nil {
				log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("store bootstrap check failed")
			} else {
				log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap check completed")
			}
		}()
		return storepg.NewWithDB(db), nil
	case "sqlite":
		path := cfg.SQLitePath
		if path == "" {
			path = "openlot.db"
		}
		return storesqlite.New(path)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
