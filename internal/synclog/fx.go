package synclog

import (
	"github.com/authorstack/authorstack/internal/synclog/repository"
	"github.com/authorstack/authorstack/internal/synclog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("synclog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
