package initializer

import (
	"context"
	"fmt"

	"github.com/Akshdhiwar/simpledocs-archive/database"
	"github.com/Akshdhiwar/simpledocs-archive/internals/blob"
	appconfig "github.com/Akshdhiwar/simpledocs-archive/internals/config"
	"github.com/Akshdhiwar/simpledocs-archive/internals/store"
)

// OpenStore opens the configured item store. Postgres schemas are migrated
// before the store is returned.
func OpenStore(ctx context.Context, cfg appconfig.StoreConfig) (store.ItemStore, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := ConnectToDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := database.Migrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return store.NewPostgresStore(pool), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.Path)
	case "badger":
		return store.NewBadgerStore(cfg.Path)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func OpenBlobStorage(ctx context.Context, cfg appconfig.BlobConfig) (blob.Storage, error) {
	switch cfg.Driver {
	case "local":
		return blob.NewLocalStorage(cfg.Root, cfg.Prefix)
	case "s3":
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return blob.NewS3Storage(client, cfg.Bucket, cfg.Prefix)
	}
	return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
}
