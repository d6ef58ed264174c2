package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/authorstack/authorstack/internal/config"
	"github.com/authorstack/authorstack/internal/observability/logger"
	"github.com/authorstack/authorstack/internal/platformsync/domain"
	"github.com/authorstack/authorstack/internal/ratelimit"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	synclogdomain "github.com/authorstack/authorstack/internal/synclog/domain"
	"github.com/authorstack/authorstack/internal/validation"
	"github.com/authorstack/authorstack/internal/worker"
	"github.com/authorstack/authorstack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const syncJob = "platform-sync"

type Params struct {
	fx.In

	Log       *zap.Logger
	Config    config.Config
	Features  *config.FeaturesHolder
	Registry  *domain.Registry
	Sales     salesdomain.Service
	SyncLog   synclogdomain.Service
	SyncLock  ratelimit.SyncLock
	Pool      *worker.Pool
	Validator *validation.Validator
}

type Service struct {
	log       *zap.Logger
	cfg       config.Config
	features  *config.FeaturesHolder
	registry  *domain.Registry
	sales     salesdomain.Service
	syncLog   synclogdomain.Service
	syncLock  ratelimit.SyncLock
	pool      *worker.Pool
	validator *validation.Validator
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("platformsync.service"),
		cfg:       p.Config,
		features:  p.Features,
		registry:  p.Registry,
		sales:     p.Sales,
		syncLog:   p.SyncLog,
		syncLock:  p.SyncLock,
		pool:      p.Pool,
		validator: p.Validator,
	}
}

func (s *Service) Trigger(ctx context.Context, req domain.TriggerRequest) (*domain.TriggerResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	flags := s.features.Get().Platforms
	requested := req.Platforms
	if len(requested) == 0 {
		for _, p := range salesdomain.Platforms {
			requested = append(requested, string(p))
		}
	}

	result := &domain.TriggerResult{Triggered: []salesdomain.Platform{}}
	seen := map[salesdomain.Platform]bool{}
	for _, name := range requested {
		platform, err := salesdomain.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		if seen[platform] {
			continue
		}
		seen[platform] = true
		if !flags.Enabled(string(platform)) {
			result.Skipped = append(result.Skipped, platform)
			continue
		}

		creds := req.Credentials[string(platform)]
		if err := s.pool.Go(ctx, syncJob, func(jobCtx context.Context) error {
			return s.Sync(jobCtx, userID, platform, creds)
		}); err != nil {
			return nil, err
		}
		result.Triggered = append(result.Triggered, platform)
	}

	if len(result.Triggered) == 0 {
		return nil, domain.ErrNoPlatforms
	}

	result.Success = true
	result.Message = fmt.Sprintf("Sync started for %d platform(s)", len(result.Triggered))
	logger.WithContext(ctx, s.log).Info("platform sync triggered",
		zap.Int("triggered", len(result.Triggered)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// Sync holds the per user and platform lock for the whole fetch and ingest
// so overlapping triggers do not double-write.
func (s *Service) Sync(ctx context.Context, userID string, platform salesdomain.Platform, creds domain.Credentials) error {
	log := logger.WithContext(ctx, s.log).With(zap.String("platform", string(platform)))

	lease, err := s.syncLock.Acquire(ctx, userID, string(platform), s.cfg.RateLimit.SyncLockTTL)
	if err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	if lease == nil {
		log.Info("sync already running; skipped")
		return domain.ErrSyncInProgress
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release sync lock", zap.Error(err))
		}
	}()

	connector, ok := s.registry.Get(platform)
	if !ok {
		s.fail(ctx, userID, platform, domain.ConnectorNotConfigured)
		return domain.ErrConnectorNotConfigured
	}

	records, err := connector.Fetch(ctx, userID, creds)
	if err != nil {
		log.Warn("connector fetch failed", zap.Error(err))
		s.fail(ctx, userID, platform, err.Error())
		return err
	}
	if len(records) == 0 {
		s.syncLog.LogSync(ctx, synclogdomain.Entry{UserID: userID, Platform: string(platform), Status: synclogdomain.StatusSuccess})
		return nil
	}

	res, err := s.sales.Ingest(ctx, salesdomain.IngestRequest{UserID: userID, Platform: platform, Records: records})
	if err != nil {
		// Ingest already logged store failures.
		if !db.IsStoreError(err) {
			s.fail(ctx, userID, platform, err.Error())
		}
		return err
	}
	log.Info("platform sync finished", zap.String("status", res.Status), zap.Int("rows", res.Rows))
	return nil
}

func (s *Service) Import(ctx context.Context, req salesdomain.IngestRequest) (*salesdomain.IngestResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.ErrInvalidUser
	}
	if !req.Platform.Valid() {
		return nil, salesdomain.ErrInvalidPlatform
	}
	if !s.features.Get().Platforms.Enabled(string(req.Platform)) {
		return nil, domain.ErrPlatformDisabled
	}
	return s.sales.Ingest(ctx, req)
}

func (s *Service) fail(ctx context.Context, userID string, platform salesdomain.Platform, msg string) {
	s.syncLog.LogSync(ctx, synclogdomain.Entry{
		UserID:       userID,
		Platform:     string(platform),
		Status:       synclogdomain.StatusFailed,
		ErrorMessage: msg,
	})
}
