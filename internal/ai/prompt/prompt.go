// Package prompt renders the instructions sent to the chat model.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	bookdomain "github.com/authorstack/authorstack/internal/book/domain"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	"github.com/shopspring/decimal"
)

const (
	InsightsAnalyst = `You are an expert book publishing analyst specializing in indie author sales data.
Your role is to analyze sales patterns, identify trends, and provide actionable insights.
Always be specific with numbers and percentages. Focus on actionable recommendations.
When analyzing data, consider seasonality, platform differences, and genre trends.`

	PricingAdvisor = `You are a pricing strategy expert for self-published books.
Your role is to recommend optimal pricing based on market data, competitor analysis, and sales history.
Consider genre norms, page count, series position, author platform size and market conditions.
Always explain your reasoning and provide confidence levels.`

	Forecaster = `You are a revenue forecasting specialist for indie publishers.
Your role is to predict future sales based on historical patterns, trends, and external factors.
Be realistic in your predictions and always provide confidence intervals.
Consider seasonality, launch effects, marketing campaigns and market trends.`

	// JSONOnly is prepended to every request that expects structured output.
	JSONOnly = "You are a helpful assistant. Always respond with valid JSON only, no additional text or markdown."
)

// TrendWindow is the number of days compared week over week.
const TrendWindow = 7

func Insights(sales []salesdomain.SaleRecord, books []bookdomain.Book) string {
	lines := make([]string, 0, len(books))
	for _, b := range books {
		genres := "No genre"
		if len(b.Genres) > 0 {
			genres = strings.Join(b.Genres, ", ")
		}
		lines = append(lines, fmt.Sprintf("- %s (%s)", b.Title, genres))
	}
	if len(lines) == 0 {
		lines = append(lines, "- No books on file")
	}

	return fmt.Sprintf(`%s

Analyze the following sales data and provide 3-5 actionable insights:

BOOKS:
%s

SALES SUMMARY:
%s

Respond with a JSON array of insights:
[
  {
    "type": "trend|opportunity|warning|recommendation",
    "title": "Brief title",
    "description": "Detailed description with specific numbers",
    "confidence": 0.0-1.0,
    "action": "Specific action to take"
  }
]`, InsightsAnalyst, strings.Join(lines, "\n"), Summarize(sales))
}

func Pricing(book bookdomain.Book, competitorPrices []float64, sales []salesdomain.SaleRecord) string {
	return fmt.Sprintf(`%s

Recommend optimal pricing for this book:

BOOK:
- Title: %s
- Author: %s
- Genres: %s
- Current platforms: %s

COMPETITOR PRICING:
%s

SALES HISTORY:
%s

Respond with JSON:
{
  "recommendedPrice": 0.00,
  "confidence": 0.0-1.0,
  "reasoning": "Explanation of recommendation",
  "alternatives": [
    { "price": 0.00, "scenario": "description" }
  ],
  "factors": ["factor1", "factor2"]
}`, PricingAdvisor, book.Title, book.Author,
		joinOr(book.Genres, "Not specified"), joinOr(book.Platforms, "Not specified"),
		competitors(competitorPrices), Summarize(sales))
}

func Forecast(sales []salesdomain.SaleRecord, days int) string {
	return fmt.Sprintf(`%s

Generate a %d-day revenue forecast based on this data:

HISTORICAL DATA:
%s

IDENTIFIED TRENDS:
%s

Respond with JSON:
{
  "predictedRevenue": 0.00,
  "confidence": 0.0-1.0,
  "factors": ["key factor 1", "key factor 2"],
  "risks": ["potential risk 1"],
  "dailyPredictions": [
    { "date": "YYYY-MM-DD", "revenue": 0.00, "confidence": 0.0-1.0 }
  ]
}`, Forecaster, days, Summarize(sales), Trends(sales))
}

// Summarize renders totals, the covered date range and a per-platform split.
func Summarize(sales []salesdomain.SaleRecord) string {
	if len(sales) == 0 {
		return "No sales data available."
	}

	var (
		revenue    = decimal.Zero
		units      int
		first      = sales[0].SaleDate
		last       = sales[0].SaleDate
		byPlatform = map[salesdomain.Platform]salesdomain.PlatformTotals{}
	)
	for _, s := range sales {
		revenue = revenue.Add(s.Revenue)
		units += s.Units
		if s.SaleDate.Before(first) {
			first = s.SaleDate
		}
		if s.SaleDate.After(last) {
			last = s.SaleDate
		}
		t := byPlatform[s.Platform]
		t.Revenue = t.Revenue.Add(s.Revenue)
		t.Units += s.Units
		byPlatform[s.Platform] = t
	}

	platforms := make([]string, 0, len(byPlatform))
	for p := range byPlatform {
		platforms = append(platforms, string(p))
	}
	sort.Strings(platforms)

	var b strings.Builder
	fmt.Fprintf(&b, "- Date Range: %s to %s\n", first.Format(salesdomain.DateLayout), last.Format(salesdomain.DateLayout))
	fmt.Fprintf(&b, "- Total Revenue: $%s\n", revenue.StringFixed(2))
	fmt.Fprintf(&b, "- Total Units: %d\n", units)
	fmt.Fprintf(&b, "- Days of Data: %d\n", len(sales))
	fmt.Fprintf(&b, "- Avg Daily Revenue: $%s\n", revenue.Div(decimal.NewFromInt(int64(len(sales)))).StringFixed(2))
	b.WriteString("\nBy Platform:")
	for _, p := range platforms {
		t := byPlatform[salesdomain.Platform(p)]
		fmt.Fprintf(&b, "\n  - %s: $%s (%d units)", p, t.Revenue.StringFixed(2), t.Units)
	}
	return b.String()
}

// Trends compares the most recent TrendWindow days of revenue with the
// TrendWindow days before them.
func Trends(sales []salesdomain.SaleRecord) string {
	daily := map[string]decimal.Decimal{}
	for _, s := range sales {
		key := s.SaleDate.Format(salesdomain.DateLayout)
		daily[key] = daily[key].Add(s.Revenue)
	}
	if len(daily) < TrendWindow {
		return fmt.Sprintf("Insufficient data for trend analysis (need at least %d days).", TrendWindow)
	}

	days := make([]string, 0, len(daily))
	for d := range daily {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	recent, previous := decimal.Zero, decimal.Zero
	for i, d := range days {
		switch {
		case i < TrendWindow:
			recent = recent.Add(daily[d])
		case i < 2*TrendWindow:
			previous = previous.Add(daily[d])
		}
	}

	change := "N/A"
	if previous.IsPositive() {
		change = recent.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).StringFixed(1)
	}
	return fmt.Sprintf("- Week-over-week change: %s%%\n- Recent week revenue: $%s\n- Previous week revenue: $%s",
		change, recent.StringFixed(2), previous.StringFixed(2))
}

func competitors(prices []float64) string {
	if len(prices) == 0 {
		return "- No competitor prices supplied"
	}
	sum, lo, hi := 0.0, prices[0], prices[0]
	for _, p := range prices {
		sum += p
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	sample := prices
	if len(sample) > 5 {
		sample = sample[:5]
	}
	formatted := make([]string, 0, len(sample))
	for _, p := range sample {
		formatted = append(formatted, fmt.Sprintf("$%.2f", p))
	}
	return fmt.Sprintf("- Average: $%.2f\n- Range: $%.2f - $%.2f\n- Sample prices: %s",
		sum/float64(len(prices)), lo, hi, strings.Join(formatted, ", "))
}

func joinOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}
