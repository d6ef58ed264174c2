package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Summarize folds one day's raw rows into an aggregate. Revenue is summed
// exactly and rounded to cents.
func Summarize(userID string, day time.Time, rows []SaleRecord) DailyAggregate {
	total := decimal.Zero
	units := 0
	breakdown := Breakdown{}
	for _, row := range rows {
		total = total.Add(row.Revenue)
		units += row.Units

		current := breakdown[row.Platform]
		current.Revenue = current.Revenue.Add(row.Revenue)
		current.Units += row.Units
		breakdown[row.Platform] = current
	}
	for platform, totals := range breakdown {
		totals.Revenue = totals.Revenue.Round(2)
		breakdown[platform] = totals
	}

	return DailyAggregate{
		UserID:            userID,
		AggDate:           day,
		TotalRevenue:      total.Round(2),
		TotalUnits:        units,
		PlatformBreakdown: datatypes.NewJSONType(breakdown),
	}
}

// TopBooks ranks books by revenue, then units, then id.
func TopBooks(rows []SaleRecord, limit int) []BookTotal {
	byBook := map[string]*BookTotal{}
	for _, row := range rows {
		bt, ok := byBook[row.BookID]
		if !ok {
			bt = &BookTotal{BookID: row.BookID, Revenue: decimal.Zero}
			byBook[row.BookID] = bt
		}
		bt.Revenue = bt.Revenue.Add(row.Revenue)
		bt.Units += row.Units
	}

	out := make([]BookTotal, 0, len(byBook))
	for _, bt := range byBook {
		bt.Revenue = bt.Revenue.Round(2)
		out = append(out, *bt)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		if out[i].Units != out[j].Units {
			return out[i].Units > out[j].Units
		}
		return out[i].BookID < out[j].BookID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PercentChange returns the change from previous to current in percent.
// A zero baseline reports 100 when there is growth and 0 otherwise.
func PercentChange(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		if current.IsPositive() {
			return 100
		}
		return 0
	}
	return current.Sub(previous).Div(previous.Abs()).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}
