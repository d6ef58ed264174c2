package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Platform string

const (
	PlatformKDP           Platform = "kdp"
	PlatformGumroad       Platform = "gumroad"
	PlatformAppleBooks    Platform = "apple_books"
	PlatformDraft2Digital Platform = "draft2digital"
)

// Platforms lists every supported sales channel.
var Platforms = []Platform{PlatformKDP, PlatformGumroad, PlatformAppleBooks, PlatformDraft2Digital}

func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// SaleRecord is one raw sale line, unique per user, book, platform and day.
type SaleRecord struct {
	ID       snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID   string          `json:"user_id" gorm:"type:text;not null;uniqueIndex:ux_sales_data_natural,priority:1"`
	BookID   string          `json:"book_id" gorm:"type:text;not null;uniqueIndex:ux_sales_data_natural,priority:2"`
	Platform Platform        `json:"platform" gorm:"type:text;not null;uniqueIndex:ux_sales_data_natural,priority:3"`
	SaleDate time.Time       `json:"date" gorm:"type:date;not null;uniqueIndex:ux_sales_data_natural,priority:4"`
	Revenue  decimal.Decimal `json:"revenue" gorm:"type:numeric(12,2);not null"`
	Units    int             `json:"units" gorm:"not null"`
	SyncedAt time.Time       `json:"synced_at" gorm:"not null"`
}

func (SaleRecord) TableName() string { return "sales_data" }

// PlatformTotals is one platform's share of a daily aggregate.
type PlatformTotals struct {
	Revenue decimal.Decimal `json:"revenue"`
	Units   int             `json:"units"`
}

type Breakdown map[Platform]PlatformTotals

// DailyAggregate holds the derived totals for one user and day. It is
// always recomputed from raw rows, never patched.
type DailyAggregate struct {
	ID                snowflake.ID                  `json:"id" gorm:"primaryKey"`
	UserID            string                        `json:"user_id" gorm:"type:text;not null;uniqueIndex:ux_daily_aggregates_user_date,priority:1"`
	AggDate           time.Time                     `json:"date" gorm:"type:date;not null;uniqueIndex:ux_daily_aggregates_user_date,priority:2"`
	TotalRevenue      decimal.Decimal               `json:"total_revenue" gorm:"type:numeric(14,2);not null"`
	TotalUnits        int                           `json:"total_units" gorm:"not null"`
	PlatformBreakdown datatypes.JSONType[Breakdown] `json:"platform_breakdown" gorm:"type:json;not null"`
	UpdatedAt         time.Time                     `json:"updated_at" gorm:"not null"`
}

func (DailyAggregate) TableName() string { return "daily_aggregates" }

// DateRange is an inclusive range of calendar days in UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

const DateLayout = "2006-01-02"

// SalesFilter narrows a raw sales query.
type SalesFilter struct {
	UserID   string
	Range    DateRange
	Platform Platform
	BookID   string
}

// BookTotal is a book's revenue and units over a period.
type BookTotal struct {
	BookID  string          `json:"book_id"`
	Revenue decimal.Decimal `json:"revenue"`
	Units   int             `json:"units"`
}

type PeriodTotal struct {
	Total  decimal.Decimal `json:"total"`
	Change float64         `json:"change"`
	Period string          `json:"period"`
}

type UnitTotal struct {
	Total  int     `json:"total"`
	Change float64 `json:"change"`
}

// Overview summarises the last N days against the N days before them.
type Overview struct {
	Revenue  PeriodTotal `json:"revenue"`
	Units    UnitTotal   `json:"units"`
	TopBooks []BookTotal `json:"top_books"`
	From     string      `json:"from"`
	To       string      `json:"to"`
}
