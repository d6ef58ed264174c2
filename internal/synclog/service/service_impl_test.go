package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/authorstack/authorstack/internal/clock"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
	"github.com/authorstack/authorstack/internal/synclog/domain"
	"github.com/authorstack/authorstack/internal/synclog/repository"
	"github.com/authorstack/authorstack/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type failingRepo struct{}

func (failingRepo) Insert(context.Context, *gorm.DB, *domain.SyncLog) error {
	return errors.New("relation \"sync_logs\" does not exist")
}

func (failingRepo) ListRecent(context.Context, *gorm.DB, string, int) ([]domain.SyncLog, error) {
	return nil, errors.New("connection reset")
}

func newTestService(t *testing.T, repo domain.Repository, clk clock.Clock, m *obsmetrics.Metrics) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{
		DB:      db.NewTest(t, &domain.SyncLog{}),
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Repo:    repo,
		Metrics: m,
	})
}

func TestListReturnsNewestFirstWithinLimit(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	svc := newTestService(t, repository.Provide(), clk, nil)
	ctx := context.Background()

	for _, platform := range []string{"kdp", "gumroad", "apple_books"} {
		svc.LogSync(ctx, domain.Entry{UserID: "u1", Platform: platform, Status: domain.StatusSuccess})
		clk.Advance(time.Minute)
	}
	svc.LogSync(ctx, domain.Entry{UserID: "u2", Platform: "kdp", Status: domain.StatusFailed, ErrorMessage: "timeout"})

	logs, err := svc.List(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "apple_books", logs[0].Platform)
	assert.Equal(t, "gumroad", logs[1].Platform)
	assert.True(t, logs[0].SyncedAt.After(logs[1].SyncedAt))
	assert.Nil(t, logs[0].ErrorMessage)

	logs, err = svc.List(ctx, "u2", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.StatusFailed, logs[0].Status)
	require.NotNil(t, logs[0].ErrorMessage)
	assert.Equal(t, "timeout", *logs[0].ErrorMessage)
}

func TestListEmptyIsNotAnError(t *testing.T) {
	svc := newTestService(t, repository.Provide(), clock.SystemClock{}, nil)

	logs, err := svc.List(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.NotNil(t, logs)
}

func TestListRejectsMissingUser(t *testing.T) {
	svc := newTestService(t, repository.Provide(), clock.SystemClock{}, nil)

	_, err := svc.List(context.Background(), " ", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestLogSyncSwallowsAndCountsFailures(t *testing.T) {
	m, reader := obsmetrics.NewForTest()
	svc := newTestService(t, failingRepo{}, clock.SystemClock{}, m)

	assert.NotPanics(t, func() {
		svc.LogSync(context.Background(), domain.Entry{UserID: "u1", Platform: "kdp", Status: domain.StatusSuccess})
		svc.LogSync(context.Background(), domain.Entry{UserID: "u1", Platform: "kdp", Status: domain.StatusFailed})
	})
	assert.Equal(t, int64(2), obsmetrics.CounterValue(reader, "authorstack_sync_log_failures_total"))
}

func TestListWrapsStoreFailures(t *testing.T) {
	svc := newTestService(t, failingRepo{}, clock.SystemClock{}, nil)

	_, err := svc.List(context.Background(), "u1", 10)
	require.Error(t, err)
	assert.True(t, db.IsStoreError(err))
	assert.Equal(t, "store operation failed: list sync logs", err.Error())
}
