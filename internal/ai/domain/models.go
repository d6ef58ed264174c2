package domain

import "time"

type InsightType string

const (
	InsightTrend          InsightType = "trend"
	InsightOpportunity    InsightType = "opportunity"
	InsightWarning        InsightType = "warning"
	InsightRecommendation InsightType = "recommendation"
	InsightGeneral        InsightType = "general"
)

// Insight is one generated observation about a user's sales.
type Insight struct {
	ID          string      `json:"id"`
	Type        InsightType `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Confidence  float64     `json:"confidence"`
	Action      *string     `json:"action,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type InsightsResult struct {
	Insights    []Insight `json:"insights"`
	GeneratedAt time.Time `json:"generated_at"`
}

type PriceAlternative struct {
	Price    float64 `json:"price"`
	Scenario string  `json:"scenario"`
}

type PricingRecommendation struct {
	BookID           string             `json:"book_id"`
	RecommendedPrice float64            `json:"recommended_price"`
	Confidence       float64            `json:"confidence"`
	Reasoning        string             `json:"reasoning"`
	Alternatives     []PriceAlternative `json:"alternatives"`
	Factors          []string           `json:"factors,omitempty"`
}

type DailyPrediction struct {
	Date       string  `json:"date"`
	Revenue    float64 `json:"revenue"`
	Confidence float64 `json:"confidence"`
}

type Forecast struct {
	Days             int               `json:"days"`
	PredictedRevenue float64           `json:"predicted_revenue"`
	Confidence       float64           `json:"confidence"`
	Factors          []string          `json:"factors"`
	Risks            []string          `json:"risks,omitempty"`
	DailyPredictions []DailyPrediction `json:"daily_predictions"`
}

type InsightsRequest struct {
	BookID           *string `json:"book_id,omitempty" validate:"omitempty,min=1"`
	IncludeForecasts bool    `json:"include_forecasts"`
}

type PricingRequest struct {
	BookID           string    `json:"book_id" validate:"required"`
	CompetitorPrices []float64 `json:"competitor_prices" validate:"max=10,dive,gte=0"`
}

type ForecastRequest struct {
	Days int `json:"days" validate:"omitempty,min=1,max=90"`
}
