package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	ListSales(ctx context.Context, db *gorm.DB, filter SalesFilter) ([]SaleRecord, error)
	UpsertSale(ctx context.Context, db *gorm.DB, rec *SaleRecord) error
	SalesOn(ctx context.Context, db *gorm.DB, userID string, day time.Time) ([]SaleRecord, error)
	ListAggregates(ctx context.Context, db *gorm.DB, userID string, r DateRange) ([]DailyAggregate, error)
	UpsertAggregate(ctx context.Context, db *gorm.DB, agg *DailyAggregate) error
	UsersWithSalesOn(ctx context.Context, db *gorm.DB, day time.Time) ([]string, error)
}
