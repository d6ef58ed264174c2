package user

import (
	"context"

	"github.com/authorstack/authorstack/internal/user/repository"
	"github.com/authorstack/authorstack/internal/user/service"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(registerIndexes),
)

func registerIndexes(lc fx.Lifecycle, db *mongo.Database, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := repository.EnsureIndexes(ctx, db); err != nil {
				log.Warn("failed to ensure user indexes", zap.String("collection", "users"), zap.Error(err))
			}
			return nil
		},
	})
}
