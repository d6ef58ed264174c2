package main

import (
	"github.com/authorstack/authorstack/internal/ai"
	"github.com/authorstack/authorstack/internal/book"
	"github.com/authorstack/authorstack/internal/cache"
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/config"
	"github.com/authorstack/authorstack/internal/migration"
	"github.com/authorstack/authorstack/internal/observability"
	"github.com/authorstack/authorstack/internal/platformsync"
	"github.com/authorstack/authorstack/internal/ratelimit"
	"github.com/authorstack/authorstack/internal/sales"
	"github.com/authorstack/authorstack/internal/scheduler"
	"github.com/authorstack/authorstack/internal/seed"
	"github.com/authorstack/authorstack/internal/server"
	"github.com/authorstack/authorstack/internal/synclog"
	"github.com/authorstack/authorstack/internal/user"
	"github.com/authorstack/authorstack/internal/validation"
	"github.com/authorstack/authorstack/internal/webhook"
	"github.com/authorstack/authorstack/internal/worker"
	"github.com/authorstack/authorstack/pkg/db"
	"github.com/authorstack/authorstack/pkg/docstore"
	"github.com/authorstack/authorstack/pkg/redisclient"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		docstore.Module,
		redisclient.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,
		validation.Module,
		worker.Module,

		// Functional Domains
		synclog.Module,
		sales.Module,
		book.Module,
		user.Module,
		platformsync.Module,
		ai.Module,
		webhook.Module,
		scheduler.Module,
		seed.Module,

		server.Module,
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
