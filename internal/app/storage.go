package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adergachev/taskkeep/internal/config"
	"github.com/adergachev/taskkeep/internal/storage"
)

var globalStorage storage.Storage

// MustOpenStorage opens the persistence medium selected by
// STORAGE_DRIVER and panics on failure.
func MustOpenStorage() {
	cfg := config.Global().Storage

	switch cfg.Driver {
	case config.StorageDriverFile:
		store, err := storage.NewFileStorage(cfg.DataDir)
		if err != nil {
			globalLogger.Error().
				Err(err).
				Str("data_dir", cfg.DataDir).
				Msg("failed to open file storage")
			panic(err)
		}
		globalStorage = store
		globalLogger.Info().
			Str("data_dir", cfg.DataDir).
			Msg("opened file storage")

	case config.StorageDriverPostgres:
		globalStorage = mustOpenPostgresStorage()

	case config.StorageDriverMemory:
		globalStorage = storage.NewMemoryStorage()
		globalLogger.Warn().Msg("using in-memory storage, state will not survive a restart")

	default:
		globalLogger.Error().
			Str("driver", cfg.Driver).
			Msg("unknown storage driver")
		panic(fmt.Errorf("unknown storage driver: %s", cfg.Driver))
	}
}

func mustOpenPostgresStorage() storage.Storage {
	cfg := config.Global().Postgres
	connURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host,
		cfg.Port, cfg.Database, cfg.SSLMode)

	poolCfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to parse postgres config")
		panic(err)
	}
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to connect to postgres")
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	err = pool.Ping(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to ping postgres")
		panic(err)
	}

	store, err := storage.NewPostgresStorage(ctx, pool)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to init postgres storage")
		panic(err)
	}
	globalLogger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("opened postgres storage")
	return store
}

func CloseStorage() {
	globalStorage.Close()
	globalLogger.Info().Msg("closed storage")
}
