// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/autoenrol/internal/app/store/backend"
	"github.com/dalemusser/autoenrol/internal/app/store/sqlitestore"
	"github.com/dalemusser/autoenrol/internal/app/system/indexes"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB opens the configured storage backend.
//
// For mongo the client is connected and pinged so a bad URI fails startup
// rather than the first request. For sqlite the file is opened and its
// migrations are applied.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	switch appCfg.StoreBackend {
	case backend.SQLite:
		db, err := sqlitestore.Open(ctx, appCfg.SQLitePath)
		if err != nil {
			return DBDeps{}, fmt.Errorf("open sqlite %s: %w", appCfg.SQLitePath, err)
		}
		logger.Info("connected to SQLite", zap.String("path", appCfg.SQLitePath))
		return DBDeps{Backend: backend.SQLite, SQLite: db}, nil

	default:
		opts := options.Client().
			ApplyURI(appCfg.MongoURI).
			SetMaxPoolSize(appCfg.MongoMaxPoolSize).
			SetMinPoolSize(appCfg.MongoMinPoolSize)
		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
		}
		logger.Info("connected to MongoDB",
			zap.String("database", appCfg.MongoDatabase),
			zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize))
		return DBDeps{
			Backend:       backend.Mongo,
			MongoClient:   client,
			MongoDatabase: client.Database(appCfg.MongoDatabase),
		}, nil
	}
}

// EnsureSchema creates the MongoDB indexes. SQLite migrations already ran
// in ConnectDB.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Backend != backend.Mongo {
		return nil
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	logger.Info("MongoDB indexes ensured")
	return nil
}
