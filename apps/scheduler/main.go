package main

import (
	"github.com/authorstack/authorstack/internal/cache"
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/config"
	"github.com/authorstack/authorstack/internal/observability"
	"github.com/authorstack/authorstack/internal/sales"
	"github.com/authorstack/authorstack/internal/scheduler"
	"github.com/authorstack/authorstack/internal/synclog"
	"github.com/authorstack/authorstack/internal/worker"
	"github.com/authorstack/authorstack/pkg/db"
	"github.com/authorstack/authorstack/pkg/redisclient"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redisclient.Module,
		clock.Module,
		cache.Module,
		worker.Module,

		// Domain services required by scheduler
		synclog.Module,
		sales.Module,
		scheduler.Module,

		// No server module!
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
