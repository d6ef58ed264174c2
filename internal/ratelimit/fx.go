package ratelimit

import (
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(
		provideBackends,
		NewAIGate,
		NewAPILimiter,
	),
)

type backendParams struct {
	fx.In

	Config config.Config
	Client *redis.Client `optional:"true"`
	Clock  clock.Clock
}

type backends struct {
	fx.Out

	Window Window
	Bucket Bucket
	Lock   SyncLock
}

// Redis backs every limiter when a client exists; otherwise state lives in
// process, which is only correct for a single replica.
func provideBackends(p backendParams) backends {
	if p.Client != nil && p.Config.Cache.Driver != config.CacheDriverMemory {
		return backends{
			Window: NewFixedWindow(p.Client),
			Bucket: NewTokenBucket(p.Client),
			Lock:   NewRedisSyncLock(p.Client),
		}
	}
	return backends{
		Window: NewMemoryWindow(p.Clock),
		Bucket: NewMemoryBucket(p.Clock),
		Lock:   NewMemorySyncLock(p.Clock),
	}
}
