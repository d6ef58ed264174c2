package sales

import (
	"github.com/authorstack/authorstack/internal/sales/repository"
	"github.com/authorstack/authorstack/internal/sales/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sales.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
