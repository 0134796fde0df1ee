package cmd

import (
	"context"

	"capstone/config"
	"capstone/lock"
	"capstone/model"
	"capstone/platform"
	"capstone/store"

	"github.com/pkg/errors"
)

// openStore connects the configured backend. SQL schemas are migrated when
// migrate is true.
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (store.Store, error) {
	if cfg.StorageBackend == "mongo" {
		db, err := platform.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		s, err := store.NewMongo(ctx, db)
		if err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, err
		}
		return s, nil
	}

	db, err := platform.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := model.InstallDB(db); err != nil {
			return nil, errors.Wrap(err, "failed to migrate database")
		}
	}
	return store.NewGorm(db), nil
}

// openLocker returns a Redis locker when REDIS_ADDR is set. The close func
// is always non-nil.
func openLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewMemory(), func() {}, nil
	}
	client, err := platform.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewRedis(client, cfg.TurnLockTTL), func() { _ = client.Close() }, nil
}
