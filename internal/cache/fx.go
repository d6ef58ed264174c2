package cache

import (
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/config"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cache",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Config  config.Config
	Client  *redis.Client `optional:"true"`
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func New(p Params) Cache {
	var backend Cache
	if p.Client != nil && p.Config.Cache.Driver != config.CacheDriverMemory {
		backend = NewRedisCache(p.Client)
	} else {
		backend = NewMemoryCache(p.Clock)
	}
	return NewResilient(backend, p.Log, p.Metrics)
}
