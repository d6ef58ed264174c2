// Package seed loads deterministic demo sales for local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/config"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const DefaultDays = 30

var Module = fx.Module("seed",
	fx.Invoke(Run),
)

type demoTitle struct {
	bookID   string
	platform salesdomain.Platform
	price    decimal.Decimal
}

var catalog = []demoTitle{
	{bookID: "demo-midnight-harbor", platform: salesdomain.PlatformKDP, price: decimal.RequireFromString("4.99")},
	{bookID: "demo-salt-and-iron", platform: salesdomain.PlatformKDP, price: decimal.RequireFromString("2.99")},
	{bookID: "demo-midnight-harbor", platform: salesdomain.PlatformGumroad, price: decimal.RequireFromString("9.00")},
}

// DemoSales returns one sale line per catalog title per day for the days
// ending yesterday, grouped by platform in catalog order. Units depend only
// on the day and the title, so repeated runs produce the same rows.
func DemoSales(now time.Time, days int) ([]salesdomain.Platform, map[salesdomain.Platform][]salesdomain.SaleInput) {
	if days <= 0 {
		days = DefaultDays
	}
	today := clock.StartOfDay(now)

	var order []salesdomain.Platform
	byPlatform := map[salesdomain.Platform][]salesdomain.SaleInput{}
	for i, title := range catalog {
		if _, ok := byPlatform[title.platform]; !ok {
			order = append(order, title.platform)
		}
		for offset := 1; offset <= days; offset++ {
			day := today.AddDate(0, 0, -offset)
			units := 1 + (day.YearDay()*7+i*3)%5
			byPlatform[title.platform] = append(byPlatform[title.platform], salesdomain.SaleInput{
				BookID:   title.bookID,
				SaleDate: day.Format(salesdomain.DateLayout),
				Revenue:  title.price.Mul(decimal.NewFromInt(int64(units))),
				Units:    units,
			})
		}
	}
	return order, byPlatform
}

// EnsureDemoSales imports the demo sales for a user, one import per platform.
func EnsureDemoSales(ctx context.Context, sales salesdomain.Service, userID string, now time.Time, days int) ([]*salesdomain.IngestResult, error) {
	if sales == nil {
		return nil, errors.New("seed sales service is required")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, salesdomain.ErrInvalidUser
	}

	order, byPlatform := DemoSales(now, days)
	results := make([]*salesdomain.IngestResult, 0, len(order))
	for _, platform := range order {
		res, err := sales.Ingest(ctx, salesdomain.IngestRequest{
			UserID:   userID,
			Platform: platform,
			Records:  byPlatform[platform],
		})
		if err != nil {
			return results, fmt.Errorf("seed %s: %w", platform, err)
		}
		results = append(results, res)
	}
	return results, nil
}

type Params struct {
	fx.In

	Config config.Config
	Sales  salesdomain.Service
	Clock  clock.Clock
	Log    *zap.Logger
}

// Run seeds demo sales for SEED_DEMO_USER at startup. It never runs in
// production.
func Run(p Params) error {
	userID := strings.TrimSpace(p.Config.SeedDemoUser)
	if userID == "" {
		return nil
	}
	log := p.Log.Named("seed")
	if p.Config.IsProduction() {
		log.Warn("demo seed skipped in production", zap.String("user_id", userID))
		return nil
	}

	results, err := EnsureDemoSales(context.Background(), p.Sales, userID, p.Clock.Now(), DefaultDays)
	if err != nil {
		return err
	}
	rows := 0
	for _, res := range results {
		rows += res.Rows
	}
	log.Info("demo sales seeded",
		zap.String("user_id", userID),
		zap.Int("platforms", len(results)),
		zap.Int("rows", rows),
	)
	return nil
}
