package cmd

import (
	"context"
	"errors"
	"fmt"

	"beatmarket/config"
	"beatmarket/core/resource"
	"beatmarket/db"
	"beatmarket/logger"
	"beatmarket/model"
	"beatmarket/repository"
	"beatmarket/storage"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// app holds the process-wide handles. Each is opened here and closed by Close.
type app struct {
	cfg      *config.Config
	registry *resource.Registry

	gdb   *gorm.DB
	mongo *mongo.Client

	records    repository.Gateway
	store      storage.ObjectStore
	closeStore func()
	pingDB     func(ctx context.Context) error
}

// openDatabase connects the persistence backend without touching storage.
func openDatabase(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: resource.Catalog()}
	schemas := a.registry.Schemas()

	switch cfg.DBBackend {
	case config.BackendMySQL, config.BackendSQLite:
		gdb, err := db.OpenGorm(cfg)
		if err != nil {
			return nil, err
		}
		a.gdb = gdb
		a.records = repository.NewGormGateway(gdb, schemas...)
		a.pingDB = func(ctx context.Context) error { return db.PingGorm(ctx, gdb) }
	case config.BackendMongo:
		client, err := db.ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.mongo = client
		a.records = repository.NewMongoGateway(client.Database(cfg.MongoDatabase), schemas...)
		a.pingDB = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	default:
		return nil, fmt.Errorf("unknown DB_BACKEND %q", cfg.DBBackend)
	}
	return a, nil
}

// openApp connects persistence and object storage.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if a.store, a.closeStore, err = openStore(ctx, cfg, a.mongo); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openStore picks the object store. GridFS reuses client when the records
// live in mongo too; otherwise it dials its own connection, released by the
// returned func.
func openStore(ctx context.Context, cfg *config.Config, client *mongo.Client) (storage.ObjectStore, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case config.StorageMinio:
		store, err := storage.NewMinioStore(ctx, cfg)
		return store, noop, err
	case config.StorageGridFS:
		release := noop
		if client == nil {
			c, err := db.ConnectMongo(ctx, cfg)
			if err != nil {
				return nil, noop, err
			}
			client = c
			release = func() { _ = db.DisconnectMongo(context.Background(), c) }
		}
		store, err := storage.NewGridFSStore(client.Database(cfg.MongoDatabase), cfg)
		if err != nil {
			release()
			return nil, noop, err
		}
		return store, release, nil
	default:
		return nil, noop, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

// migrate creates tables, or indexes for mongo. Unique keys are enforced here.
func (a *app) migrate(ctx context.Context) error {
	if a.gdb != nil {
		return db.Migrate(a.gdb, model.All()...)
	}
	if a.mongo != nil {
		if err := repository.EnsureMongoIndexes(ctx, a.mongo.Database(a.cfg.MongoDatabase), a.registry.Schemas()...); err != nil {
			return err
		}
		logger.Info("Mongo indexes ensured")
	}
	return nil
}

func (a *app) Close() {
	if a.closeStore != nil {
		a.closeStore()
	}
	var errs []error
	if a.gdb != nil {
		errs = append(errs, db.CloseGorm(a.gdb))
	}
	if a.mongo != nil {
		errs = append(errs, db.DisconnectMongo(context.Background(), a.mongo))
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("Error closing connections", logger.ErrorField(err))
	}
}
