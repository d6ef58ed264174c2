package domain

import (
	"context"
	"errors"
)

type Service interface {
	GenerateInsights(ctx context.Context, userID string, req InsightsRequest) (*InsightsResult, error)
	RecommendPrice(ctx context.Context, userID string, req PricingRequest) (*PricingRecommendation, error)
	Forecast(ctx context.Context, userID string, req ForecastRequest) (*Forecast, error)
}

const (
	DefaultForecastDays = 30
	// MinForecastRecords is the number of sale rows required in the
	// lookback window before a forecast is attempted.
	MinForecastRecords = 30
)

var (
	ErrNotConfigured   = errors.New("service_not_configured")
	ErrUpstream        = errors.New("ai_upstream_error")
	ErrFeatureDisabled = errors.New("feature_disabled")
	ErrInvalidUser     = errors.New("invalid_user")
)
