package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/authorstack/authorstack/internal/clock"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	"github.com/authorstack/authorstack/internal/validation"
)

const defaultSalesRange = "30d"

// rangeDays maps the named ranges accepted by the sales endpoint to a
// number of calendar days ending today.
var rangeDays = map[string]int{
	"7d":  7,
	"30d": 30,
	"90d": 90,
	"1y":  365,
}

// parseDateRange resolves either an explicit start/end pair or a named range
// ending today. A lone start runs through today.
func parseDateRange(named, start, end string, now time.Time) (salesdomain.DateRange, error) {
	today := clock.StartOfDay(now)
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	if start != "" || end != "" {
		from, err := salesdomain.ParseDay(start)
		if err != nil {
			return salesdomain.DateRange{}, validation.New("start", "invalid_date", "start must be a YYYY-MM-DD date")
		}
		to := today
		if end != "" {
			if to, err = salesdomain.ParseDay(end); err != nil {
				return salesdomain.DateRange{}, validation.New("end", "invalid_date", "end must be a YYYY-MM-DD date")
			}
		}
		rng, err := salesdomain.NewDateRange(from, to)
		if err != nil {
			return salesdomain.DateRange{}, validation.New("range", "invalid_date_range", "start must not be after end")
		}
		return rng, nil
	}

	named = strings.ToLower(strings.TrimSpace(named))
	if named == "" {
		named = defaultSalesRange
	}
	days, ok := rangeDays[named]
	if !ok {
		return salesdomain.DateRange{}, validation.New("range", "oneof", "range must be one of 7d, 30d, 90d, 1y")
	}
	return salesdomain.DateRange{Start: today.AddDate(0, 0, -(days - 1)), End: today}, nil
}

func parseOptionalPlatform(value string) (salesdomain.Platform, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return salesdomain.ParsePlatform(value)
}

// parseOptionalInt returns def for an empty value.
func parseOptionalInt(field, value string, def int) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, validation.New(field, "numeric", field+" must be a number")
	}
	return parsed, nil
}
