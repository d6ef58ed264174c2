package book

import (
	"context"

	"github.com/authorstack/authorstack/internal/book/repository"
	"github.com/authorstack/authorstack/internal/book/service"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("book.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(registerIndexes),
)

func registerIndexes(lc fx.Lifecycle, db *mongo.Database, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := repository.EnsureIndexes(ctx, db); err != nil {
				log.Warn("failed to ensure book indexes", zap.Error(err))
			}
			return nil
		},
	})
}
