package redisclient

import (
	"context"
	"errors"

	"github.com/authorstack/authorstack/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

// New builds the shared client used by the cache, the rate limiters and the
// sync lock. It returns nil when the memory cache driver is selected and no
// address is configured.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	opts, err := options(cfg.Redis)
	if err != nil {
		if cfg.Cache.Driver == config.CacheDriverMemory {
			log.Warn("redis not configured; using in-process cache and limiters")
			return nil, nil
		}
		return nil, err
	}

	client := redis.NewClient(opts)
	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	return client, nil
}

func options(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL != "" {
		return redis.ParseURL(cfg.URL)
	}
	if cfg.Addr == "" {
		return nil, config.ErrMissingRedis
	}
	if cfg.DB < 0 {
		return nil, errors.New("redis db index must not be negative")
	}
	return &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}
