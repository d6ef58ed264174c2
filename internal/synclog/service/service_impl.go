package service

import (
	"context"
	"strings"

	"github.com/authorstack/authorstack/internal/clock"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
	"github.com/authorstack/authorstack/internal/synclog/domain"
	"github.com/authorstack/authorstack/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("synclog.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) LogSync(ctx context.Context, entry domain.Entry) {
	status := entry.Status
	if !status.Valid() {
		status = domain.StatusFailed
	}

	log := domain.SyncLog{
		ID:       s.genID.Generate(),
		UserID:   strings.TrimSpace(entry.UserID),
		Platform: strings.TrimSpace(entry.Platform),
		Status:   status,
		SyncedAt: s.clock.Now().UTC(),
	}
	if msg := strings.TrimSpace(entry.ErrorMessage); msg != "" {
		log.ErrorMessage = &msg
	}

	if err := s.repo.Insert(ctx, s.db, &log); err != nil {
		s.log.Warn("failed to write sync log",
			zap.String("user_id", log.UserID),
			zap.String("platform", log.Platform),
			zap.String("status", string(log.Status)),
			zap.Error(err),
		)
		s.metrics.RecordSyncLogFailure(ctx, log.Platform)
	}
}

func (s *Service) List(ctx context.Context, userID string, limit int) ([]domain.SyncLog, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	if limit > domain.MaxListLimit {
		limit = domain.MaxListLimit
	}

	logs, err := s.repo.ListRecent(ctx, s.db, userID, limit)
	if err != nil {
		return nil, db.Wrap("list sync logs", err)
	}
	if logs == nil {
		logs = []domain.SyncLog{}
	}
	return logs, nil
}
