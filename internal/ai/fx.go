package ai

import (
	"github.com/authorstack/authorstack/internal/ai/domain"
	"github.com/authorstack/authorstack/internal/ai/provider"
	"github.com/authorstack/authorstack/internal/ai/schema"
	"github.com/authorstack/authorstack/internal/ai/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ai.service",
	fx.Provide(
		fx.Annotate(provider.NewOpenRouter, fx.As(new(domain.Provider))),
		schema.NewRegistry,
		service.New,
	),
)
