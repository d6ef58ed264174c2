package platformsync

import (
	"github.com/authorstack/authorstack/internal/platformsync/domain"
	"github.com/authorstack/authorstack/internal/platformsync/service"
	"go.uber.org/fx"
)

// Connectors are contributed to the "connectors" group by whichever
// platform integrations are linked in.
type registryParams struct {
	fx.In

	Connectors []domain.Connector `group:"connectors"`
}

var Module = fx.Module("platformsync.service",
	fx.Provide(func(p registryParams) *domain.Registry {
		return domain.NewRegistry(p.Connectors...)
	}),
	fx.Provide(service.New),
)
