package cache

import (
	"strings"
	"time"
)

const Namespace = "authorstack"

const (
	TTLUser      = 300 * time.Second
	TTLBook      = 300 * time.Second
	TTLSales     = 60 * time.Second
	TTLDashboard = 60 * time.Second
	TTLInsights  = 3600 * time.Second
)

func key(parts ...string) string {
	cleaned := make([]string, 0, len(parts)+1)
	cleaned = append(cleaned, Namespace)
	for _, part := range parts {
		cleaned = append(cleaned, strings.TrimSpace(part))
	}
	return strings.Join(cleaned, ":")
}

func UserKey(userID string) string { return key("user", userID) }

func BookKey(bookID string) string { return key("book", bookID) }

// SalesKey addresses the daily aggregates of one user over [start, end].
func SalesKey(userID, start, end string) string {
	return key("sales", userID, strings.TrimSpace(start)+"-"+strings.TrimSpace(end))
}

// SalesPrefix matches every aggregate range cached for the user.
func SalesPrefix(userID string) string { return key("sales", userID) + ":" }

// DashboardKey is the bare per-user dashboard key; suffixes address
// variants such as the overview window.
func DashboardKey(userID string, suffix ...string) string {
	return key(append([]string{"dashboard", userID}, suffix...)...)
}

func DashboardPrefix(userID string) string { return DashboardKey(userID) + ":" }

func InsightsKey(userID, scope string) string { return key("insights", userID, scope) }

func InsightsPrefix(userID string) string { return key("insights", userID) + ":" }
