package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/authorstack/authorstack/internal/ai"
	bookdomain "github.com/authorstack/authorstack/internal/book/domain"
	"github.com/authorstack/authorstack/internal/cache"
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/config"
	"github.com/authorstack/authorstack/internal/migration"
	"github.com/authorstack/authorstack/internal/observability"
	"github.com/authorstack/authorstack/internal/platformsync"
	"github.com/authorstack/authorstack/internal/ratelimit"
	"github.com/authorstack/authorstack/internal/sales"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	"github.com/authorstack/authorstack/internal/scheduler"
	"github.com/authorstack/authorstack/internal/seed"
	"github.com/authorstack/authorstack/internal/server"
	"github.com/authorstack/authorstack/internal/synclog"
	userdomain "github.com/authorstack/authorstack/internal/user/domain"
	userservice "github.com/authorstack/authorstack/internal/user/service"
	"github.com/authorstack/authorstack/internal/validation"
	"github.com/authorstack/authorstack/internal/webhook"
	"github.com/authorstack/authorstack/internal/worker"
	"github.com/authorstack/authorstack/pkg/db"
	"github.com/authorstack/authorstack/pkg/redisclient"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	demoUser   = "demo-author"
	jwtSecret  = "e2e-jwt-secret"
	cronSecret = "e2e-cron-secret"
)

type testEnv struct {
	app     *fx.App
	server  *server.Server
	db      *gorm.DB
	sales   salesdomain.Service
	baseURL string
	httpSrv *httptest.Server
	dataDir string
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	dir, err := os.MkdirTemp("", "authorstack-e2e")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create data dir:", err)
		os.Exit(1)
	}
	setDefaultEnv(dir)

	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		_ = os.RemoveAll(dir)
		os.Exit(1)
	}
	env.dataDir = dir

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_UserRoutesRequireToken(t *testing.T) {
	for _, path := range []string{"/api/sales", "/api/dashboard", "/api/books"} {
		resp, body := doJSON(t, http.MethodGet, env.baseURL+path, nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d: %s", path, resp.StatusCode, string(body))
		}
	}
}

func TestE2E_DemoSeedBootstrap(t *testing.T) {
	resetDatabase(t)

	rows := countRows(t, "sales_data", "user_id = ?", demoUser)
	_, byPlatform := seed.DemoSales(time.Now().UTC(), seed.DefaultDays)
	want := 0
	for _, lines := range byPlatform {
		want += len(lines)
	}
	if rows != int64(want) {
		t.Fatalf("expected %d demo sale rows, got %d", want, rows)
	}

	var payload struct {
		Data struct {
			Overview struct {
				Revenue struct {
					Total decimal.Decimal `json:"total"`
				} `json:"revenue"`
			} `json:"overview"`
			TopBooks    []map[string]any `json:"top_books"`
			RecentSyncs []map[string]any `json:"recent_syncs"`
		} `json:"data"`
	}
	getJSON(t, "/api/dashboard", demoUser, &payload)

	if !payload.Data.Overview.Revenue.Total.IsPositive() {
		t.Fatalf("expected positive demo revenue, got %s", payload.Data.Overview.Revenue.Total)
	}
	if len(payload.Data.TopBooks) != 2 {
		t.Fatalf("expected 2 demo top books, got %d", len(payload.Data.TopBooks))
	}
	if len(payload.Data.RecentSyncs) != 2 {
		t.Fatalf("expected one sync log per demo platform, got %d", len(payload.Data.RecentSyncs))
	}
}

func TestE2E_ImportListAndDashboard(t *testing.T) {
	resetDatabase(t)
	user := "author-import"

	var created struct {
		Data struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"data"`
	}
	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/api/books", map[string]any{
		"title":  "The Quiet Ledger",
		"author": "R. Vale",
	}, authHeader(t, user))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create book failed: %d: %s", resp.StatusCode, string(body))
	}
	decode(t, body, &created)

	yesterday := dayOffset(-1)
	twoDaysAgo := dayOffset(-2)
	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/sales/import", map[string]any{
		"platform": "kdp",
		"records": []map[string]any{
			{"book_id": created.Data.ID, "date": yesterday, "revenue": "9.98", "units": 2},
			{"book_id": created.Data.ID, "date": twoDaysAgo, "revenue": "4.99", "units": 1},
		},
	}, authHeader(t, user))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import failed: %d: %s", resp.StatusCode, string(body))
	}
	var imported struct {
		Data salesdomain.IngestResult `json:"data"`
	}
	decode(t, body, &imported)
	if imported.Data.Rows != 2 || len(imported.Data.Days) != 2 || len(imported.Data.FailedDays) != 0 {
		t.Fatalf("unexpected import result: %+v", imported.Data)
	}

	var listed struct {
		Data struct {
			Range      string           `json:"range"`
			Sales      []map[string]any `json:"sales"`
			Aggregates []struct {
				Date         string          `json:"date"`
				TotalRevenue decimal.Decimal `json:"total_revenue"`
				TotalUnits   int             `json:"total_units"`
			} `json:"aggregates"`
		} `json:"data"`
	}
	getJSON(t, "/api/sales?range=7d", user, &listed)
	if listed.Data.Range != "7d" {
		t.Fatalf("expected range 7d, got %q", listed.Data.Range)
	}
	if len(listed.Data.Sales) != 2 {
		t.Fatalf("expected 2 sales, got %d", len(listed.Data.Sales))
	}
	if len(listed.Data.Aggregates) != 2 {
		t.Fatalf("expected 2 daily aggregates, got %d", len(listed.Data.Aggregates))
	}
	units := 0
	for _, agg := range listed.Data.Aggregates {
		units += agg.TotalUnits
	}
	if units != 3 {
		t.Fatalf("expected 3 aggregated units, got %d", units)
	}

	var dash struct {
		Data struct {
			Overview struct {
				Revenue struct {
					Total decimal.Decimal `json:"total"`
				} `json:"revenue"`
				Units struct {
					Total int `json:"total"`
				} `json:"units"`
			} `json:"overview"`
			TopBooks []struct {
				BookID string `json:"book_id"`
				Title  string `json:"title"`
			} `json:"top_books"`
		} `json:"data"`
	}
	getJSON(t, "/api/dashboard?days=7", user, &dash)
	if !dash.Data.Overview.Revenue.Total.Equal(decimal.RequireFromString("14.97")) {
		t.Fatalf("expected revenue 14.97, got %s", dash.Data.Overview.Revenue.Total)
	}
	if dash.Data.Overview.Units.Total != 3 {
		t.Fatalf("expected 3 units, got %d", dash.Data.Overview.Units.Total)
	}
	if len(dash.Data.TopBooks) != 1 || dash.Data.TopBooks[0].Title != "The Quiet Ledger" {
		t.Fatalf("expected titled top book, got %+v", dash.Data.TopBooks)
	}

	var logs struct {
		Data []struct {
			Platform string `json:"platform"`
			Status   string `json:"status"`
		} `json:"data"`
	}
	getJSON(t, "/api/sales/sync-logs", user, &logs)
	if len(logs.Data) != 1 || logs.Data[0].Platform != "kdp" || logs.Data[0].Status != "success" {
		t.Fatalf("unexpected sync logs: %+v", logs.Data)
	}
}

func TestE2E_EmptyRangeReturnsEmptyList(t *testing.T) {
	resetDatabase(t)

	var listed struct {
		Data struct {
			From       string           `json:"from"`
			To         string           `json:"to"`
			Sales      []map[string]any `json:"sales"`
			Aggregates []map[string]any `json:"aggregates"`
		} `json:"data"`
	}
	getJSON(t, "/api/sales?start=2001-01-01&end=2001-01-31", demoUser, &listed)
	if listed.Data.From != "2001-01-01" || listed.Data.To != "2001-01-31" {
		t.Fatalf("unexpected range %s..%s", listed.Data.From, listed.Data.To)
	}
	if len(listed.Data.Sales) != 0 || len(listed.Data.Aggregates) != 0 {
		t.Fatalf("expected empty results, got %d sales and %d aggregates", len(listed.Data.Sales), len(listed.Data.Aggregates))
	}
}

func TestE2E_ImportRejectsUnknownPlatform(t *testing.T) {
	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/api/sales/import", map[string]any{
		"platform": "smashwords",
		"records":  []map[string]any{{"book_id": "b1", "date": dayOffset(-1), "revenue": "1.00", "units": 1}},
	}, authHeader(t, "author-bad-platform"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, string(body))
	}
}

func TestE2E_CronMasterRecomputesYesterday(t *testing.T) {
	resetDatabase(t)
	user := "author-cron"

	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/api/sales/import", map[string]any{
		"platform": "gumroad",
		"records":  []map[string]any{{"book_id": "b-cron", "date": dayOffset(-1), "revenue": "12.00", "units": 3}},
	}, authHeader(t, user))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import failed: %d: %s", resp.StatusCode, string(body))
	}

	if err := env.db.Exec(`UPDATE daily_aggregates SET total_units = 0 WHERE user_id = ?`, user).Error; err != nil {
		t.Fatalf("corrupt aggregate: %v", err)
	}

	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/cron/master", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without cron secret, got %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/cron/master", nil, map[string]string{
		"Authorization": "Bearer " + cronSecret,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cron master failed: %d: %s", resp.StatusCode, string(body))
	}
	var payload struct {
		Triggered []string `json:"triggered"`
		Jobs      []struct {
			Job       string `json:"job"`
			Processed int64  `json:"processed"`
			Failed    int64  `json:"failed"`
		} `json:"jobs"`
	}
	decode(t, body, &payload)
	if len(payload.Jobs) != 1 || payload.Jobs[0].Job != scheduler.JobAnalyticsAggregation {
		t.Fatalf("unexpected jobs: %+v", payload.Jobs)
	}
	// The demo author also has sales yesterday.
	if payload.Jobs[0].Processed != 2 || payload.Jobs[0].Failed != 0 {
		t.Fatalf("unexpected job counts: %+v", payload.Jobs[0])
	}

	var units int
	if err := env.db.Raw(`SELECT total_units FROM daily_aggregates WHERE user_id = ?`, user).Scan(&units).Error; err != nil {
		t.Fatalf("read aggregate: %v", err)
	}
	if units != 3 {
		t.Fatalf("expected recomputed units 3, got %d", units)
	}
}

func TestE2E_StripeWebhook(t *testing.T) {
	resp, body := doJSON(t, http.MethodPost, env.baseURL+"/api/webhooks/stripe",
		map[string]any{"id": "evt_e2e", "type": webhook.EventInvoicePaymentFailed}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without signature, got %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, http.MethodPost, env.baseURL+"/api/webhooks/stripe",
		map[string]any{"id": "evt_e2e", "type": webhook.EventInvoicePaymentFailed},
		map[string]string{webhook.SignatureHeader: "t=1,v1=abc"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook failed: %d: %s", resp.StatusCode, string(body))
	}
	var ack webhook.Ack
	decode(t, body, &ack)
	if !ack.Received || ack.EventID != "evt_e2e" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	// Payments are off without a Stripe key.
	if ack.Handled {
		t.Fatalf("expected unhandled event when payments are disabled")
	}
}

func TestE2E_CurrentUserProfile(t *testing.T) {
	const author = "profile-author"

	resp, body := doJSON(t, http.MethodGet, env.baseURL+"/api/users/me", nil, authHeader(t, author))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before the profile exists, got %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, http.MethodPatch, env.baseURL+"/api/users/me",
		map[string]any{"name": "R. Vale", "preferences": map[string]any{"currency": "EUR"}},
		authHeader(t, author))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile update failed: %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data userdomain.User `json:"data"`
	}
	getJSON(t, "/api/users/me", author, &payload)
	if payload.Data.Name != "R. Vale" || payload.Data.Preferences.Currency != "EUR" {
		t.Fatalf("unexpected profile: %+v", payload.Data)
	}
	if payload.Data.SubscriptionTier != userdomain.TierFree {
		t.Fatalf("expected free tier for a new profile, got %s", payload.Data.SubscriptionTier)
	}

	resp, body = doJSON(t, http.MethodPatch, env.baseURL+"/api/users/me",
		map[string]any{"preferences": map[string]any{"theme": "sepia"}},
		authHeader(t, author))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown theme, got %d: %s", resp.StatusCode, string(body))
	}
}

func startEnv() (*testEnv, error) {
	var (
		srv      *server.Server
		dbConn   *gorm.DB
		salesSvc salesdomain.Service
		httpSrv  *httptest.Server
	)

	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		migration.Module,
		redisclient.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,
		validation.Module,
		worker.Module,
		synclog.Module,
		sales.Module,
		platformsync.Module,
		ai.Module,
		webhook.Module,
		scheduler.Module,
		seed.Module,
		fx.Provide(func() bookdomain.Service { return newMemoryBooks() }),
		fx.Provide(func() userdomain.Repository { return newMemoryUsers() }),
		fx.Provide(userservice.New),
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) { s.RegisterRoutes() }),
		fx.Populate(&srv, &dbConn, &salesSvc),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	httpSrv = httptest.NewServer(srv.Engine())

	return &testEnv{
		app:     app,
		server:  srv,
		db:      dbConn,
		sales:   salesSvc,
		baseURL: httpSrv.URL,
		httpSrv: httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
	if e.dataDir != "" {
		_ = os.RemoveAll(e.dataDir)
	}
}

func setDefaultEnv(dir string) {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("DATABASE_TYPE", "sqlite")
	setEnvIfEmpty("DATABASE_URL", filepath.Join(dir, "e2e.db"))
	setEnvIfEmpty("DATABASE_MAX_OPEN_CONN", "1")
	setEnvIfEmpty("MONGODB_URI", "mongodb://unused:27017")
	setEnvIfEmpty("CACHE_DRIVER", "memory")
	setEnvIfEmpty("AUTH_JWT_SECRET", jwtSecret)
	setEnvIfEmpty("CRON_SECRET", cronSecret)
	setEnvIfEmpty("RATE_LIMIT_ENABLED", "false")
	setEnvIfEmpty("SCHEDULER_ENABLED", "false")
	setEnvIfEmpty("SEED_DEMO_USER", demoUser)
	setEnvIfEmpty("WORKER_POOL_SIZE", "2")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

// resetDatabase clears every table and reloads the demo seed.
func resetDatabase(t *testing.T) {
	t.Helper()
	for _, table := range []string{"sales_data", "daily_aggregates", "sync_logs"} {
		if err := env.db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("clear %s: %v", table, err)
		}
	}
	if _, err := seed.EnsureDemoSales(context.Background(), env.sales, demoUser, time.Now().UTC(), seed.DefaultDays); err != nil {
		t.Fatalf("seed demo sales: %v", err)
	}
}

func countRows(t *testing.T, table string, where string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := env.db.Table(table).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func dayOffset(days int) string {
	return clock.StartOfDay(time.Now().UTC()).AddDate(0, 0, days).Format(salesdomain.DateLayout)
}

func authHeader(t *testing.T, userID string) map[string]string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + signed}
}

func getJSON(t *testing.T, path, userID string, out any) {
	t.Helper()
	resp, body := doJSON(t, http.MethodGet, env.baseURL+path, nil, authHeader(t, userID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s failed: %d: %s", path, resp.StatusCode, string(body))
	}
	decode(t, body, out)
}

func decode(t *testing.T, body []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("decode response: %v: %s", err, string(body))
	}
}

func doJSON(t *testing.T, method, reqURL string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode json: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

// memoryBooks stands in for the document store.
type memoryBooks struct {
	mu    sync.Mutex
	next  int
	books map[string]bookdomain.Book
}

func newMemoryBooks() *memoryBooks {
	return &memoryBooks{books: map[string]bookdomain.Book{}}
}

func (m *memoryBooks) Create(_ context.Context, userID string, req bookdomain.CreateRequest) (*bookdomain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	now := time.Now().UTC()
	book := bookdomain.Book{
		ID:        fmt.Sprintf("book-%d", m.next),
		UserID:    userID,
		Title:     req.Title,
		Author:    req.Author,
		Status:    bookdomain.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.books[book.ID] = book
	return &book, nil
}

func (m *memoryBooks) Get(_ context.Context, userID, id string) (*bookdomain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok || book.UserID != userID {
		return nil, bookdomain.ErrNotFound
	}
	return &book, nil
}

func (m *memoryBooks) List(_ context.Context, userID string) ([]bookdomain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []bookdomain.Book{}
	for _, book := range m.books {
		if book.UserID == userID {
			out = append(out, book)
		}
	}
	return out, nil
}

func (m *memoryBooks) Update(ctx context.Context, userID, id string, req bookdomain.UpdateRequest) (*bookdomain.Book, error) {
	book, err := m.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		book.Title = *req.Title
	}
	m.mu.Lock()
	m.books[id] = *book
	m.mu.Unlock()
	return book, nil
}

func (m *memoryBooks) Delete(ctx context.Context, userID, id string) error {
	if _, err := m.Get(ctx, userID, id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.books, id)
	m.mu.Unlock()
	return nil
}

// memoryUsers stands in for the profile collection.
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]userdomain.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]userdomain.User{}}
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memoryUsers) UpdateProfile(_ context.Context, id string, req userdomain.UpdateRequest, now time.Time) (*userdomain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.loadOrCreate(id, now)
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if p := req.Preferences; p != nil {
		if p.Theme != nil {
			u.Preferences.Theme = *p.Theme
		}
		if p.Currency != nil {
			u.Preferences.Currency = *p.Currency
		}
		if p.Timezone != nil {
			u.Preferences.Timezone = *p.Timezone
		}
	}
	u.UpdatedAt = now
	m.users[id] = u
	return &u, nil
}

func (m *memoryUsers) IncCredits(_ context.Context, id string, amount int64, now time.Time) (*userdomain.User, error) {
	return m.adjust(id, amount, now), nil
}

func (m *memoryUsers) DeductCredits(_ context.Context, id string, amount int64, now time.Time) (*userdomain.User, error) {
	return m.adjust(id, -amount, now), nil
}

func (m *memoryUsers) SetTier(_ context.Context, id string, tier userdomain.Tier, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.loadOrCreate(id, now)
	u.SubscriptionTier = tier
	u.UpdatedAt = now
	m.users[id] = u
	return nil
}

func (m *memoryUsers) adjust(id string, delta int64, now time.Time) *userdomain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Credits+delta < 0 {
		return nil
	}
	u.Credits += delta
	u.UpdatedAt = now
	m.users[id] = u
	return &u
}

func (m *memoryUsers) loadOrCreate(id string, now time.Time) userdomain.User {
	if u, ok := m.users[id]; ok {
		return u
	}
	return userdomain.User{
		ID:               id,
		SubscriptionTier: userdomain.TierFree,
		Preferences:      userdomain.DefaultPreferences(),
		CreatedAt:        now,
	}
}
