package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/AI-Team-Dev/jobportal/config"
	"github.com/AI-Team-Dev/jobportal/internal/adapters/storage/file"
	"github.com/AI-Team-Dev/jobportal/internal/adapters/storage/memory"
	"github.com/AI-Team-Dev/jobportal/internal/adapters/storage/postgres"
	"github.com/AI-Team-Dev/jobportal/internal/adapters/storage/sealed"
	redisstore "github.com/AI-Team-Dev/jobportal/internal/adapters/storage/redis"
	"github.com/AI-Team-Dev/jobportal/internal/ports"
)

// StorageDeps carries the configuration for the selected state backend.
type StorageDeps struct {
	Storage  config.StorageConfig
	Postgres config.DBConfig
	Redis    config.RedisConfig
	Logger   *slog.Logger

	// RedisClient, when set, is used instead of dialing Redis from config.
	RedisClient redis.UniversalClient
	// DB, when set, is used instead of opening Postgres from config.
	DB *sql.DB
}

// StorageResult is the opened backend and the func that releases its connections.
type StorageResult struct {
	Storage ports.StateStorage
	Close   func() error
}

// BuildStorage opens the configured StateStorage backend and seals it when an
// encryption key is set.
func BuildStorage(ctx context.Context, deps StorageDeps) (StorageResult, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res, err := openBackend(ctx, deps, logger)
	if err != nil || deps.Storage.EncryptionKey == "" {
		return res, err
	}
	c, err := CreateCipher(deps.Storage.EncryptionKey)
	if err != nil {
		return StorageResult{}, joinClose(err, res.Close)
	}
	st, err := sealed.Wrap(res.Storage, sealed.Options{
		Cipher:          c,
		AcceptPlaintext: deps.Storage.AcceptPlaintext,
		Logger:          logger,
	})
	if err != nil {
		return StorageResult{}, joinClose(err, res.Close)
	}
	logger.Debug("state storage values are sealed", "backend", string(deps.Storage.Backend))
	return StorageResult{Storage: st, Close: res.Close}, nil
}

func openBackend(ctx context.Context, deps StorageDeps, logger *slog.Logger) (StorageResult, error) {
	noop := func() error { return nil }

	switch deps.Storage.Backend {
	case config.StorageMemory:
		st := memory.New()
		return StorageResult{Storage: st, Close: st.Close}, nil

	case config.StorageFile, "":
		st, err := file.New(file.Options{Dir: deps.Storage.Dir, Logger: logger})
		if err != nil {
			return StorageResult{}, err
		}
		return StorageResult{Storage: st, Close: noop}, nil

	case config.StorageRedis:
		client, closeFn := deps.RedisClient, noop
		if client == nil {
			var err error
			client, err = ConnectRedis(ctx, DatabaseConfig{RedisConfig: deps.Redis, Logger: logger})
			if err != nil {
				return StorageResult{}, err
			}
			closeFn = client.Close
		}
		st, err := redisstore.NewStateStore(redisstore.Options{
			Client:    client,
			Namespace: deps.Storage.Namespace,
			Logger:    logger,
		})
		if err != nil {
			return StorageResult{}, joinClose(err, closeFn)
		}
		return StorageResult{Storage: st, Close: closeFn}, nil

	case config.StoragePostgres:
		db, closeFn := deps.DB, noop
		if db == nil {
			var err error
			db, err = ConnectDB(ctx, DatabaseConfig{DBConfig: deps.Postgres, Logger: logger})
			if err != nil {
				return StorageResult{}, err
			}
			closeFn = db.Close
		}
		if deps.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, logger); err != nil {
				return StorageResult{}, joinClose(err, closeFn)
			}
		}
		st, err := postgres.NewStateStore(postgres.Options{
			DB:        db,
			Namespace: deps.Storage.Namespace,
			Logger:    logger,
		})
		if err != nil {
			return StorageResult{}, joinClose(err, closeFn)
		}
		return StorageResult{Storage: st, Close: closeFn}, nil
	}

	return StorageResult{}, fmt.Errorf("unsupported storage backend %q", deps.Storage.Backend)
}

func joinClose(err error, closeFn func() error) error {
	if cerr := closeFn(); cerr != nil {
		return fmt.Errorf("%w (close: %v)", err, cerr)
	}
	return err
}
