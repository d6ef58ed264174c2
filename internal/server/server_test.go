package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	aidomain "github.com/authorstack/authorstack/internal/ai/domain"
	bookdomain "github.com/authorstack/authorstack/internal/book/domain"
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/config"
	"github.com/authorstack/authorstack/internal/observability"
	platformsyncdomain "github.com/authorstack/authorstack/internal/platformsync/domain"
	"github.com/authorstack/authorstack/internal/ratelimit"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	"github.com/authorstack/authorstack/internal/scheduler"
	synclogdomain "github.com/authorstack/authorstack/internal/synclog/domain"
	userdomain "github.com/authorstack/authorstack/internal/user/domain"
	"github.com/authorstack/authorstack/internal/validation"
	"github.com/authorstack/authorstack/internal/webhook"
	"github.com/authorstack/authorstack/internal/worker"
	"github.com/authorstack/authorstack/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret  = "test-jwt-secret"
	testCronSecret = "test-cron-secret"
	testUser       = "user-1"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubSales struct {
	salesdomain.Service

	filter    salesdomain.SalesFilter
	records   []salesdomain.SaleRecord
	overview  *salesdomain.Overview
	err       error
	usersErr  error
	aggCalled bool
}

func (s *stubSales) GetSales(_ context.Context, filter salesdomain.SalesFilter) ([]salesdomain.SaleRecord, error) {
	s.filter = filter
	if s.err != nil {
		return nil, s.err
	}
	if s.records == nil {
		return []salesdomain.SaleRecord{}, nil
	}
	return s.records, nil
}

func (s *stubSales) GetDailyAggregates(context.Context, string, salesdomain.DateRange) ([]salesdomain.DailyAggregate, error) {
	s.aggCalled = true
	return []salesdomain.DailyAggregate{}, nil
}

func (s *stubSales) Overview(_ context.Context, _ string, days int) (*salesdomain.Overview, error) {
	if days > 365 {
		return nil, salesdomain.ErrInvalidDays
	}
	return s.overview, nil
}

func (s *stubSales) UsersWithSalesOn(context.Context, time.Time) ([]string, error) {
	return nil, s.usersErr
}

type stubBooks struct {
	bookdomain.Service

	books []bookdomain.Book
	err   error
}

func (s *stubBooks) Get(context.Context, string, string) (*bookdomain.Book, error) {
	return nil, s.err
}

func (s *stubBooks) List(context.Context, string) ([]bookdomain.Book, error) {
	return s.books, s.err
}

type stubUsers struct {
	userdomain.Service

	user   *userdomain.User
	update userdomain.UpdateRequest
	err    error
}

func (s *stubUsers) Get(_ context.Context, userID string) (*userdomain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u := *s.user
	u.ID = userID
	return &u, nil
}

func (s *stubUsers) Update(_ context.Context, userID string, req userdomain.UpdateRequest) (*userdomain.User, error) {
	s.update = req
	if s.err != nil {
		return nil, s.err
	}
	u := *s.user
	u.ID = userID
	if req.Name != nil {
		u.Name = *req.Name
	}
	return &u, nil
}

type stubSync struct {
	platformsyncdomain.Service

	req    platformsyncdomain.TriggerRequest
	result *platformsyncdomain.TriggerResult
	err    error
}

func (s *stubSync) Trigger(_ context.Context, req platformsyncdomain.TriggerRequest) (*platformsyncdomain.TriggerResult, error) {
	s.req = req
	return s.result, s.err
}

type stubSyncLog struct {
	synclogdomain.Service
}

func (stubSyncLog) List(context.Context, string, int) ([]synclogdomain.SyncLog, error) {
	return []synclogdomain.SyncLog{{Platform: "kdp", Status: synclogdomain.StatusSuccess}}, nil
}

type stubAI struct {
	aidomain.Service

	err error
}

func (s *stubAI) GenerateInsights(context.Context, string, aidomain.InsightsRequest) (*aidomain.InsightsResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &aidomain.InsightsResult{Insights: []aidomain.Insight{}}, nil
}

type testDeps struct {
	sales      *stubSales
	books      *stubBooks
	users      *stubUsers
	sync       *stubSync
	ai         *stubAI
	apiLimiter *ratelimit.APILimiter
	env        string
}

func newTestEngine(t *testing.T, deps testDeps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if deps.sales == nil {
		deps.sales = &stubSales{}
	}
	if deps.books == nil {
		deps.books = &stubBooks{}
	}
	if deps.users == nil {
		deps.users = &stubUsers{user: &userdomain.User{SubscriptionTier: userdomain.TierFree}}
	}
	if deps.sync == nil {
		deps.sync = &stubSync{}
	}
	if deps.ai == nil {
		deps.ai = &stubAI{}
	}
	if deps.env == "" {
		deps.env = "test"
	}

	cfg := config.Config{
		Environment:   deps.env,
		AuthJWTSecret: testJWTSecret,
		CronSecret:    testCronSecret,
	}
	clk := clock.NewFakeClock(testNow)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	pool := worker.NewPool(config.WorkerConfig{Size: 1, QueueSize: 4}, zap.NewNop(), nil)
	t.Cleanup(pool.Stop)
	sched, err := scheduler.New(scheduler.Params{
		Log:   zap.NewNop(),
		Clock: clk,
		GenID: node,
		Sales: deps.sales,
		Pool:  pool,
	})
	require.NoError(t, err)

	engine := NewEngine(EngineParams{
		Config:    cfg,
		ObsConfig: observability.Config{Environment: deps.env},
	})
	srv := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Clock:      clk,
		SalesSvc:   deps.sales,
		BookSvc:    deps.books,
		UserSvc:    deps.users,
		SyncSvc:    deps.sync,
		SyncLogSvc: stubSyncLog{},
		AISvc:      deps.ai,
		Webhooks:   webhook.NewReceiver(webhook.Params{Log: zap.NewNop()}),
		Scheduler:  sched,
		APILimiter: deps.apiLimiter,
	})
	srv.RegisterRoutes()
	return engine
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func authHeader(t *testing.T) map[string]string {
	return map[string]string{"Authorization": "Bearer " + signToken(t, testUser)}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	r := newTestEngine(t, testDeps{})

	rec := doRequest(t, r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserRoutesRequireBearerToken(t *testing.T) {
	r := newTestEngine(t, testDeps{})

	rec := doRequest(t, r, http.MethodGet, "/api/sales", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/api/sales", nil, map[string]string{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": testUser, "exp": time.Now().Add(time.Hour).Unix()})
	signed, err := forged.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	rec = doRequest(t, r, http.MethodGet, "/api/sales", nil, map[string]string{"Authorization": "Bearer " + signed})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListSalesReturnsEmptyListForNamedRange(t *testing.T) {
	sales := &stubSales{}
	r := newTestEngine(t, testDeps{sales: sales})

	rec := doRequest(t, r, http.MethodGet, "/api/sales?range=7d&platform=KDP&book_id=b1", nil, authHeader(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data salesResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Data.Sales)
	assert.Empty(t, resp.Data.Sales)
	assert.Equal(t, "7d", resp.Data.Range)
	assert.Equal(t, "2026-03-04", resp.Data.From)
	assert.Equal(t, "2026-03-10", resp.Data.To)

	assert.Equal(t, testUser, sales.filter.UserID)
	assert.Equal(t, salesdomain.PlatformKDP, sales.filter.Platform)
	assert.Equal(t, "b1", sales.filter.BookID)
	assert.True(t, sales.aggCalled)
}

func TestListSalesExplicitRange(t *testing.T) {
	sales := &stubSales{}
	r := newTestEngine(t, testDeps{sales: sales})

	rec := doRequest(t, r, http.MethodGet, "/api/sales?start=2026-01-01&end=2026-01-31", nil, authHeader(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-01-01", sales.filter.Range.StartKey())
	assert.Equal(t, "2026-01-31", sales.filter.Range.EndKey())
}

func TestListSalesRejectsBadQuery(t *testing.T) {
	r := newTestEngine(t, testDeps{})

	cases := map[string]string{
		"unknown range":  "/api/sales?range=2w",
		"inverted range": "/api/sales?start=2026-02-01&end=2026-01-01",
		"bad date":       "/api/sales?start=yesterday",
		"bad platform":   "/api/sales?platform=smashwords",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, r, http.MethodGet, path, nil, authHeader(t))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation_error", decodeError(t, rec).Type)
		})
	}
}

func TestTriggerSyncAccepted(t *testing.T) {
	sync := &stubSync{result: &platformsyncdomain.TriggerResult{
		Success:   true,
		Triggered: []salesdomain.Platform{salesdomain.PlatformKDP},
		Message:   "Sync started for 1 platform(s)",
	}}
	r := newTestEngine(t, testDeps{sync: sync})

	rec := doRequest(t, r, http.MethodPost, "/api/sales/sync", map[string]any{"platforms": []string{"kdp"}}, authHeader(t))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, testUser, sync.req.UserID)
	assert.Equal(t, []string{"kdp"}, sync.req.Platforms)
	assert.Contains(t, rec.Body.String(), `"triggered":["kdp"]`)

	rec = doRequest(t, r, http.MethodPost, "/api/sales/sync", nil, authHeader(t))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestTriggerSyncErrors(t *testing.T) {
	sync := &stubSync{err: platformsyncdomain.ErrNoPlatforms}
	r := newTestEngine(t, testDeps{sync: sync})

	rec := doRequest(t, r, http.MethodPost, "/api/sales/sync", nil, authHeader(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sync.err = platformsyncdomain.ErrPlatformDisabled
	rec = doRequest(t, r, http.MethodPost, "/api/sales/sync", nil, authHeader(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDashboardAddsBookTitles(t *testing.T) {
	sales := &stubSales{overview: &salesdomain.Overview{
		TopBooks: []salesdomain.BookTotal{{BookID: "b1", Revenue: decimal.NewFromInt(10), Units: 2}},
	}}
	books := &stubBooks{books: []bookdomain.Book{{ID: "b1", Title: "The Long Road"}}}
	r := newTestEngine(t, testDeps{sales: sales, books: books})

	rec := doRequest(t, r, http.MethodGet, "/api/dashboard?days=30", nil, authHeader(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"title":"The Long Road"`)
	assert.Contains(t, rec.Body.String(), `"recent_syncs":[`)

	rec = doRequest(t, r, http.MethodGet, "/api/dashboard?days=1000", nil, authHeader(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookNotFound(t *testing.T) {
	r := newTestEngine(t, testDeps{books: &stubBooks{err: bookdomain.ErrNotFound}})

	rec := doRequest(t, r, http.MethodGet, "/api/books/missing", nil, authHeader(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCurrentUserProfile(t *testing.T) {
	users := &stubUsers{user: &userdomain.User{Name: "R. Vale", SubscriptionTier: userdomain.TierStarter, Credits: 7}}
	r := newTestEngine(t, testDeps{users: users})

	rec := doRequest(t, r, http.MethodGet, "/api/users/me", nil, authHeader(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"id":"user-1"`)
	assert.Contains(t, rec.Body.String(), `"subscription_tier":"starter"`)
	assert.Contains(t, rec.Body.String(), `"credits":7`)

	rec = doRequest(t, r, http.MethodPatch, "/api/users/me", `{"name":"Rae Vale","preferences":{"theme":"dark"}}`, authHeader(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"name":"Rae Vale"`)
	require.NotNil(t, users.update.Preferences)
	assert.Equal(t, "dark", *users.update.Preferences.Theme)

	rec = doRequest(t, r, http.MethodPatch, "/api/users/me", `{"name":`, authHeader(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{err: userdomain.ErrNotFound, status: http.StatusNotFound, typ: "not_found"},
		{err: userdomain.ErrEmptyUpdate, status: http.StatusBadRequest, typ: "validation_error"},
		{err: userdomain.ErrInsufficientCredits, status: http.StatusPaymentRequired, typ: "insufficient_credits"},
	}
	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			r := newTestEngine(t, testDeps{users: &stubUsers{err: tc.err}})

			rec := doRequest(t, r, http.MethodGet, "/api/users/me", nil, authHeader(t))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.typ, decodeError(t, rec).Type)
		})
	}
}

func TestInsightsErrorMapping(t *testing.T) {
	ai := &stubAI{err: aidomain.ErrNotConfigured}
	r := newTestEngine(t, testDeps{ai: ai})

	rec := doRequest(t, r, http.MethodPost, "/api/ai/insights", nil, authHeader(t))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service_not_configured", decodeError(t, rec).Type)

	ai.err = &ratelimit.LimitedError{Scope: ratelimit.NamespaceAI, Limit: 5, RetryAfter: 1500 * time.Millisecond}
	rec = doRequest(t, r, http.MethodPost, "/api/ai/insights", nil, authHeader(t))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	ai.err = validation.New("response", "invalid_ai_response", "response does not match schema")
	rec = doRequest(t, r, http.MethodPost, "/api/ai/insights", nil, authHeader(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_ai_response", decodeError(t, rec).Errors[0].Code)

	ai.err = nil
	rec = doRequest(t, r, http.MethodPost, "/api/ai/insights", `{"bookId":`, authHeader(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIRateLimit(t *testing.T) {
	limiter := ratelimit.NewAPILimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled:  true,
		APIRate:  0.01,
		APIBurst: 1,
	}}, ratelimit.NewMemoryBucket(clock.NewFakeClock(testNow)), nil)
	r := newTestEngine(t, testDeps{apiLimiter: limiter})

	rec := doRequest(t, r, http.MethodGet, "/api/sales", nil, authHeader(t))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/api/sales", nil, authHeader(t))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("Retry-After"))
}

func TestStripeWebhook(t *testing.T) {
	r := newTestEngine(t, testDeps{})
	body := `{"id":"evt_1","type":"customer.subscription.updated"}`

	rec := doRequest(t, r, http.MethodPost, "/api/webhooks/stripe", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/api/webhooks/stripe", body, map[string]string{webhook.SignatureHeader: "t=1,v1=abc"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
}

func TestCronMaster(t *testing.T) {
	r := newTestEngine(t, testDeps{})

	rec := doRequest(t, r, http.MethodPost, "/api/cron/master", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/api/cron/master", nil, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/api/cron/master", nil, map[string]string{"Authorization": "Bearer " + testCronSecret})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"triggered":["analytics-aggregation"]`)
}

func TestInternalErrorsHiddenInProduction(t *testing.T) {
	storeErr := db.Wrap("get sales", errors.New(`pq: relation "sales_data" does not exist`))

	r := newTestEngine(t, testDeps{sales: &stubSales{err: storeErr}, env: "production"})
	rec := doRequest(t, r, http.MethodGet, "/api/sales", nil, authHeader(t))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec).Message)

	r = newTestEngine(t, testDeps{sales: &stubSales{err: storeErr}})
	rec = doRequest(t, r, http.MethodGet, "/api/sales", nil, authHeader(t))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(decodeError(t, rec).Message, "pq:"))
	assert.Contains(t, decodeError(t, rec).Message, "get sales")
}

func TestMapErrorDomainSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{salesdomain.ErrInvalidPlatform, http.StatusBadRequest},
		{errors.Join(errors.New("records[0]"), salesdomain.ErrInvalidRevenue), http.StatusBadRequest},
		{platformsyncdomain.ErrSyncInProgress, http.StatusConflict},
		{aidomain.ErrFeatureDisabled, http.StatusForbidden},
		{aidomain.ErrUpstream, http.StatusServiceUnavailable},
		{db.Wrap("insert", errors.New("UNIQUE constraint failed: sales_data.id")), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := mapError(tc.err)
		assert.Equal(t, tc.status, status, "error %v", tc.err)
	}

	_, payload := mapError(salesdomain.ErrInvalidDays)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "days", payload.Errors[0].Field)
	assert.Equal(t, "invalid_days", payload.Errors[0].Code)
}
