package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	aidomain "github.com/authorstack/authorstack/internal/ai/domain"
	bookdomain "github.com/authorstack/authorstack/internal/book/domain"
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/config"
	"github.com/authorstack/authorstack/internal/observability"
	obsmiddleware "github.com/authorstack/authorstack/internal/observability/logger"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
	obstracing "github.com/authorstack/authorstack/internal/observability/tracing"
	platformsyncdomain "github.com/authorstack/authorstack/internal/platformsync/domain"
	"github.com/authorstack/authorstack/internal/ratelimit"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	"github.com/authorstack/authorstack/internal/scheduler"
	synclogdomain "github.com/authorstack/authorstack/internal/synclog/domain"
	userdomain "github.com/authorstack/authorstack/internal/user/domain"
	"github.com/authorstack/authorstack/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

type EngineParams struct {
	fx.In

	Config      config.Config
	ObsConfig   observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if !p.ObsConfig.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           p.ObsConfig.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		SkipPaths:       []string{"/health", "/metrics"},
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(p.HTTPMetrics))
	r.Use(ErrorHandlingMiddleware(!p.Config.IsProduction()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	clock      clock.Clock
	salesSvc   salesdomain.Service
	bookSvc    bookdomain.Service
	userSvc    userdomain.Service
	syncSvc    platformsyncdomain.Service
	syncLogSvc synclogdomain.Service
	aiSvc      aidomain.Service
	apiLimiter *ratelimit.APILimiter
	webhooks   *webhook.Receiver
	scheduler  *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Clock      clock.Clock
	SalesSvc   salesdomain.Service
	BookSvc    bookdomain.Service
	UserSvc    userdomain.Service
	SyncSvc    platformsyncdomain.Service
	SyncLogSvc synclogdomain.Service
	AISvc      aidomain.Service
	Webhooks   *webhook.Receiver
	Scheduler  *scheduler.Scheduler
	APILimiter *ratelimit.APILimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		clock:      p.Clock,
		salesSvc:   p.SalesSvc,
		bookSvc:    p.BookSvc,
		userSvc:    p.UserSvc,
		syncSvc:    p.SyncSvc,
		syncLogSvc: p.SyncLogSvc,
		aiSvc:      p.AISvc,
		apiLimiter: p.APILimiter,
		webhooks:   p.Webhooks,
		scheduler:  p.Scheduler,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	// -------- Machine callers --------
	api.POST("/webhooks/stripe", s.HandleStripeWebhook)
	api.POST("/cron/master", s.CronAuthRequired(), s.RunCronJobs)

	user := api.Group("", s.AuthRequired(), s.APIRateLimit())

	// -------- Sales --------
	user.GET("/sales", s.ListSales)
	user.POST("/sales/sync", s.TriggerSync)
	user.POST("/sales/import", s.ImportSales)
	user.GET("/sales/sync-logs", s.ListSyncLogs)
	user.GET("/dashboard", s.GetDashboard)

	// -------- Profile --------
	user.GET("/users/me", s.GetCurrentUser)
	user.PATCH("/users/me", s.UpdateCurrentUser)

	// -------- Books --------
	user.GET("/books", s.ListBooks)
	user.POST("/books", s.CreateBook)
	user.GET("/books/:id", s.GetBookByID)
	user.PUT("/books/:id", s.UpdateBook)
	user.DELETE("/books/:id", s.DeleteBook)

	// -------- AI --------
	user.POST("/ai/insights", s.GenerateInsights)
	user.POST("/ai/pricing", s.RecommendPrice)
	user.POST("/ai/forecast", s.ForecastSales)
}
