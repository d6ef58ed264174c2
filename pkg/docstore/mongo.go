// Package docstore connects to the document store that holds book records.
package docstore

import (
	"context"
	"time"

	"github.com/authorstack/authorstack/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("docstore",
	fx.Provide(NewClient, NewDatabase),
)

func NewClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*mongo.Client, error) {
	if cfg.Mongo.URI == "" {
		return nil, config.ErrMissingMongo
	}
	opts := options.Client().
		ApplyURI(cfg.Mongo.URI).
		SetAppName(cfg.AppName).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		return nil, err
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx, nil); err != nil {
					return err
				}
				log.Info("document store connected", zap.String("database", cfg.Mongo.Database))
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return client.Disconnect(ctx)
			},
		})
	}
	return client, nil
}

func NewDatabase(client *mongo.Client, cfg config.Config) *mongo.Database {
	return client.Database(cfg.Mongo.Database)
}
