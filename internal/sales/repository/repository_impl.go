package repository

import (
	"context"
	"strings"
	"time"

	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() salesdomain.Repository {
	return &repo{}
}

func (r *repo) ListSales(ctx context.Context, db *gorm.DB, filter salesdomain.SalesFilter) ([]salesdomain.SaleRecord, error) {
	query := `SELECT id, user_id, book_id, platform, sale_date, revenue, units, synced_at
		FROM sales_data
		WHERE user_id = ? AND sale_date >= ? AND sale_date <= ?`
	args := []any{filter.UserID, filter.Range.Start, filter.Range.End}

	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, filter.Platform)
	}
	if bookID := strings.TrimSpace(filter.BookID); bookID != "" {
		query += ` AND book_id = ?`
		args = append(args, bookID)
	}
	query += ` ORDER BY sale_date DESC, id DESC`

	var items []salesdomain.SaleRecord
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertSale(ctx context.Context, db *gorm.DB, rec *salesdomain.SaleRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sales_data (id, user_id, book_id, platform, sale_date, revenue, units, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, book_id, platform, sale_date)
		 DO UPDATE SET revenue = excluded.revenue, units = excluded.units, synced_at = excluded.synced_at`,
		rec.ID,
		rec.UserID,
		rec.BookID,
		rec.Platform,
		rec.SaleDate,
		rec.Revenue,
		rec.Units,
		rec.SyncedAt,
	).Error
}

func (r *repo) SalesOn(ctx context.Context, db *gorm.DB, userID string, day time.Time) ([]salesdomain.SaleRecord, error) {
	var items []salesdomain.SaleRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, book_id, platform, sale_date, revenue, units, synced_at
		 FROM sales_data
		 WHERE user_id = ? AND sale_date = ?`,
		userID,
		day,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListAggregates(ctx context.Context, db *gorm.DB, userID string, rng salesdomain.DateRange) ([]salesdomain.DailyAggregate, error) {
	var items []salesdomain.DailyAggregate
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, agg_date, total_revenue, total_units, platform_breakdown, updated_at
		 FROM daily_aggregates
		 WHERE user_id = ? AND agg_date >= ? AND agg_date <= ?
		 ORDER BY agg_date DESC`,
		userID,
		rng.Start,
		rng.End,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertAggregate(ctx context.Context, db *gorm.DB, agg *salesdomain.DailyAggregate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO daily_aggregates (id, user_id, agg_date, total_revenue, total_units, platform_breakdown, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, agg_date)
		 DO UPDATE SET total_revenue = excluded.total_revenue,
		   total_units = excluded.total_units,
		   platform_breakdown = excluded.platform_breakdown,
		   updated_at = excluded.updated_at`,
		agg.ID,
		agg.UserID,
		agg.AggDate,
		agg.TotalRevenue,
		agg.TotalUnits,
		agg.PlatformBreakdown,
		agg.UpdatedAt,
	).Error
}

func (r *repo) UsersWithSalesOn(ctx context.Context, db *gorm.DB, day time.Time) ([]string, error) {
	var users []string
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT user_id FROM sales_data WHERE sale_date = ? ORDER BY user_id`,
		day,
	).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
