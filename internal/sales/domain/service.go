package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Service interface {
	GetSales(ctx context.Context, filter SalesFilter) ([]SaleRecord, error)
	GetDailyAggregates(ctx context.Context, userID string, r DateRange) ([]DailyAggregate, error)
	InsertSales(ctx context.Context, records []SaleRecord) error
	RecalculateAggregate(ctx context.Context, userID string, day time.Time) (*DailyAggregate, error)
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
	Overview(ctx context.Context, userID string, days int) (*Overview, error)
	UsersWithSalesOn(ctx context.Context, day time.Time) ([]string, error)
}

// SaleInput is a sale line as delivered by a platform export or connector.
type SaleInput struct {
	BookID   string          `json:"book_id"`
	SaleDate string          `json:"date"`
	Revenue  decimal.Decimal `json:"revenue"`
	Units    int             `json:"units"`
}

type IngestRequest struct {
	UserID   string      `json:"-"`
	Platform Platform    `json:"platform"`
	Records  []SaleInput `json:"records"`
}

type IngestResult struct {
	Status       string   `json:"status"`
	Rows         int      `json:"rows"`
	Days         []string `json:"days"`
	FailedDays   []string `json:"failed_days,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidPlatform  = errors.New("invalid_platform")
	ErrInvalidBook      = errors.New("invalid_book")
	ErrInvalidDate      = errors.New("invalid_date")
	ErrInvalidDateRange = errors.New("invalid_date_range")
	ErrInvalidRevenue   = errors.New("invalid_revenue")
	ErrInvalidUnits     = errors.New("invalid_units")
	ErrInvalidDays      = errors.New("invalid_days")
	ErrEmptyImport      = errors.New("empty_import")
)

func ParsePlatform(value string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(value)))
	if !p.Valid() {
		return "", ErrInvalidPlatform
	}
	return p, nil
}

// ParseDay parses a YYYY-MM-DD date or an RFC3339 timestamp and truncates it
// to midnight UTC.
func ParseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return startOfDay(t), nil
}

// NewDateRange truncates both ends to midnight UTC so the range covers whole
// calendar days, inclusive.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, ErrInvalidDateRange
	}
	start, end = startOfDay(start), startOfDay(end)
	if start.After(end) {
		return DateRange{}, ErrInvalidDateRange
	}
	return DateRange{Start: start, End: end}, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r DateRange) StartKey() string { return r.Start.Format(DateLayout) }

func (r DateRange) EndKey() string { return r.End.Format(DateLayout) }
