package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/authorstack/authorstack/internal/cache"
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/observability/logger"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	synclogdomain "github.com/authorstack/authorstack/internal/synclog/domain"
	"github.com/authorstack/authorstack/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultOverviewDays = 30
	maxOverviewDays     = 365
	topBooksLimit       = 5
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    salesdomain.Repository
	Cache   cache.Cache
	SyncLog synclogdomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    salesdomain.Repository
	cache   cache.Cache
	syncLog synclogdomain.Service
	metrics *obsmetrics.Metrics
}

func New(p Params) salesdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("sales.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		cache:   p.Cache,
		syncLog: p.SyncLog,
		metrics: p.Metrics,
	}
}

func (s *Service) GetSales(ctx context.Context, filter salesdomain.SalesFilter) ([]salesdomain.SaleRecord, error) {
	filter.UserID = strings.TrimSpace(filter.UserID)
	if filter.UserID == "" {
		return nil, salesdomain.ErrInvalidUser
	}
	rng, err := salesdomain.NewDateRange(filter.Range.Start, filter.Range.End)
	if err != nil {
		return nil, err
	}
	filter.Range = rng
	if filter.Platform != "" && !filter.Platform.Valid() {
		return nil, salesdomain.ErrInvalidPlatform
	}

	items, err := s.repo.ListSales(ctx, s.db, filter)
	if err != nil {
		return nil, db.Wrap("get sales", err)
	}
	if items == nil {
		items = []salesdomain.SaleRecord{}
	}
	return items, nil
}

func (s *Service) GetDailyAggregates(ctx context.Context, userID string, rng salesdomain.DateRange) ([]salesdomain.DailyAggregate, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, salesdomain.ErrInvalidUser
	}
	rng, err := salesdomain.NewDateRange(rng.Start, rng.End)
	if err != nil {
		return nil, err
	}

	key := cache.SalesKey(userID, rng.StartKey(), rng.EndKey())
	return cache.Fetch(ctx, s.cache, key, cache.TTLSales, func(ctx context.Context) ([]salesdomain.DailyAggregate, error) {
		items, err := s.repo.ListAggregates(ctx, s.db, userID, rng)
		if err != nil {
			return nil, db.Wrap("get daily aggregates", err)
		}
		if items == nil {
			items = []salesdomain.DailyAggregate{}
		}
		return items, nil
	})
}

func (s *Service) InsertSales(ctx context.Context, records []salesdomain.SaleRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := s.clock.Now().UTC()
	for i := range records {
		rec := &records[i]
		if err := validateRecord(rec); err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
		rec.SaleDate = clock.StartOfDay(rec.SaleDate)
		rec.Revenue = rec.Revenue.Round(2)
		rec.SyncedAt = now
		if rec.ID == 0 {
			rec.ID = s.genID.Generate()
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range records {
			if err := s.repo.UpsertSale(ctx, tx, &records[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return db.Wrap("insert sales", err)
}

func (s *Service) RecalculateAggregate(ctx context.Context, userID string, day time.Time) (*salesdomain.DailyAggregate, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, salesdomain.ErrInvalidUser
	}
	if day.IsZero() {
		return nil, salesdomain.ErrInvalidDate
	}
	day = clock.StartOfDay(day)

	var result salesdomain.DailyAggregate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.repo.SalesOn(ctx, tx, userID, day)
		if err != nil {
			return err
		}

		agg := salesdomain.Summarize(userID, day, rows)
		agg.ID = s.genID.Generate()
		agg.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.UpsertAggregate(ctx, tx, &agg); err != nil {
			return err
		}

		stored, err := s.repo.ListAggregates(ctx, tx, userID, salesdomain.DateRange{Start: day, End: day})
		if err != nil {
			return err
		}
		result = agg
		if len(stored) == 1 {
			result = stored[0]
		}
		return nil
	})
	if err != nil {
		return nil, db.Wrap("recalculate aggregate", err)
	}

	s.invalidateUser(ctx, userID)
	return &result, nil
}

// invalidateUser drops every cached view derived from the user's
// aggregates. Runs after commit only.
func (s *Service) invalidateUser(ctx context.Context, userID string) {
	log := logger.WithContext(ctx, s.log)
	if err := s.cache.Delete(ctx, cache.DashboardKey(userID)); err != nil {
		log.Warn("failed to invalidate dashboard", zap.Error(err))
	}
	for _, prefix := range []string{
		cache.SalesPrefix(userID),
		cache.DashboardPrefix(userID),
		cache.InsightsPrefix(userID),
	} {
		if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
			log.Warn("failed to invalidate cache prefix", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

func (s *Service) Ingest(ctx context.Context, req salesdomain.IngestRequest) (*salesdomain.IngestResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, salesdomain.ErrInvalidUser
	}
	if !req.Platform.Valid() {
		return nil, salesdomain.ErrInvalidPlatform
	}
	if len(req.Records) == 0 {
		return nil, salesdomain.ErrEmptyImport
	}

	records := make([]salesdomain.SaleRecord, 0, len(req.Records))
	for i, in := range req.Records {
		day, err := salesdomain.ParseDay(in.SaleDate)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		records = append(records, salesdomain.SaleRecord{
			UserID:   userID,
			BookID:   strings.TrimSpace(in.BookID),
			Platform: req.Platform,
			SaleDate: day,
			Revenue:  in.Revenue,
			Units:    in.Units,
		})
	}

	log := logger.WithContext(ctx, s.log).With(zap.String("platform", string(req.Platform)))

	if err := s.InsertSales(ctx, records); err != nil {
		if db.IsStoreError(err) {
			log.Error("sales ingest failed", zap.Error(err))
			s.syncLog.LogSync(ctx, synclogdomain.Entry{
				UserID:       userID,
				Platform:     string(req.Platform),
				Status:       synclogdomain.StatusFailed,
				ErrorMessage: err.Error(),
			})
		}
		return nil, err
	}
	s.metrics.RecordSalesIngested(ctx, string(req.Platform), len(records))

	result := &salesdomain.IngestResult{
		Status: string(synclogdomain.StatusSuccess),
		Rows:   len(records),
		Days:   distinctDays(records),
	}
	for _, key := range result.Days {
		day, _ := time.Parse(salesdomain.DateLayout, key)
		if _, err := s.RecalculateAggregate(ctx, userID, day); err != nil {
			log.Warn("aggregate recompute failed", zap.String("day", key), zap.Error(err))
			result.FailedDays = append(result.FailedDays, key)
		}
	}

	entry := synclogdomain.Entry{UserID: userID, Platform: string(req.Platform), Status: synclogdomain.StatusSuccess}
	if len(result.FailedDays) > 0 {
		entry.Status = synclogdomain.StatusPartial
		entry.ErrorMessage = fmt.Sprintf("aggregate recompute failed for %s", strings.Join(result.FailedDays, ", "))
		result.Status = string(synclogdomain.StatusPartial)
		result.ErrorMessage = entry.ErrorMessage
	}
	s.syncLog.LogSync(ctx, entry)

	log.Info("sales ingested",
		zap.Int("rows", result.Rows),
		zap.Int("days", len(result.Days)),
		zap.String("status", result.Status),
	)
	return result, nil
}

func (s *Service) Overview(ctx context.Context, userID string, days int) (*salesdomain.Overview, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, salesdomain.ErrInvalidUser
	}
	if days == 0 {
		days = defaultOverviewDays
	}
	if days < 1 || days > maxOverviewDays {
		return nil, salesdomain.ErrInvalidDays
	}

	key := cache.DashboardKey(userID, strconv.Itoa(days))
	return cache.Fetch(ctx, s.cache, key, cache.TTLDashboard, func(ctx context.Context) (*salesdomain.Overview, error) {
		return s.buildOverview(ctx, userID, days)
	})
}

func (s *Service) buildOverview(ctx context.Context, userID string, days int) (*salesdomain.Overview, error) {
	today := clock.StartOfDay(s.clock.Now())
	currentStart := today.AddDate(0, 0, -(days - 1))
	previousStart := currentStart.AddDate(0, 0, -days)

	rows, err := s.repo.ListSales(ctx, s.db, salesdomain.SalesFilter{
		UserID: userID,
		Range:  salesdomain.DateRange{Start: previousStart, End: today},
	})
	if err != nil {
		return nil, db.Wrap("dashboard overview", err)
	}

	current := make([]salesdomain.SaleRecord, 0, len(rows))
	curRevenue, prevRevenue := decimal.Zero, decimal.Zero
	curUnits, prevUnits := 0, 0
	for _, row := range rows {
		if row.SaleDate.Before(currentStart) {
			prevRevenue = prevRevenue.Add(row.Revenue)
			prevUnits += row.Units
			continue
		}
		current = append(current, row)
		curRevenue = curRevenue.Add(row.Revenue)
		curUnits += row.Units
	}

	return &salesdomain.Overview{
		Revenue: salesdomain.PeriodTotal{
			Total:  curRevenue.Round(2),
			Change: salesdomain.PercentChange(curRevenue, prevRevenue),
			Period: fmt.Sprintf("%dd", days),
		},
		Units: salesdomain.UnitTotal{
			Total:  curUnits,
			Change: salesdomain.PercentChange(decimal.NewFromInt(int64(curUnits)), decimal.NewFromInt(int64(prevUnits))),
		},
		TopBooks: salesdomain.TopBooks(current, topBooksLimit),
		From:     currentStart.Format(salesdomain.DateLayout),
		To:       today.Format(salesdomain.DateLayout),
	}, nil
}

func (s *Service) UsersWithSalesOn(ctx context.Context, day time.Time) ([]string, error) {
	users, err := s.repo.UsersWithSalesOn(ctx, s.db, clock.StartOfDay(day))
	if err != nil {
		return nil, db.Wrap("users with sales", err)
	}
	return users, nil
}

func validateRecord(rec *salesdomain.SaleRecord) error {
	switch {
	case strings.TrimSpace(rec.UserID) == "":
		return salesdomain.ErrInvalidUser
	case strings.TrimSpace(rec.BookID) == "":
		return salesdomain.ErrInvalidBook
	case !rec.Platform.Valid():
		return salesdomain.ErrInvalidPlatform
	case rec.SaleDate.IsZero():
		return salesdomain.ErrInvalidDate
	case rec.Revenue.IsNegative():
		return salesdomain.ErrInvalidRevenue
	case rec.Units < 0:
		return salesdomain.ErrInvalidUnits
	}
	return nil
}

func distinctDays(records []salesdomain.SaleRecord) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, rec := range records {
		key := rec.SaleDate.Format(salesdomain.DateLayout)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
