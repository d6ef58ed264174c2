package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/authorstack/authorstack/internal/ai/domain"
	"github.com/authorstack/authorstack/internal/ai/prompt"
	"github.com/authorstack/authorstack/internal/ai/schema"
	bookdomain "github.com/authorstack/authorstack/internal/book/domain"
	"github.com/authorstack/authorstack/internal/cache"
	"github.com/authorstack/authorstack/internal/clock"
	"github.com/authorstack/authorstack/internal/config"
	obsmetrics "github.com/authorstack/authorstack/internal/observability/metrics"
	"github.com/authorstack/authorstack/internal/ratelimit"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	"github.com/authorstack/authorstack/internal/validation"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	insightsLookbackDays = 30
	pricingLookbackDays  = 90
	forecastLookbackDays = 90

	jsonTemperature = 0.3
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Provider  domain.Provider
	Schemas   *schema.Registry
	Gate      *ratelimit.Gate
	Sales     salesdomain.Service
	Books     bookdomain.Service
	Cache     cache.Cache
	Features  *config.FeaturesHolder
	Validator *validation.Validator
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	provider  domain.Provider
	schemas   *schema.Registry
	gate      *ratelimit.Gate
	sales     salesdomain.Service
	books     bookdomain.Service
	cache     cache.Cache
	features  *config.FeaturesHolder
	validator *validation.Validator
	metrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("ai.service"),
		clock:     p.Clock,
		provider:  p.Provider,
		schemas:   p.Schemas,
		gate:      p.Gate,
		sales:     p.Sales,
		books:     p.Books,
		cache:     p.Cache,
		features:  p.Features,
		validator: p.Validator,
		metrics:   p.Metrics,
	}
}

type rawInsight struct {
	Type        domain.InsightType `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Confidence  float64            `json:"confidence"`
	Action      *string            `json:"action"`
}

type rawPricing struct {
	RecommendedPrice float64 `json:"recommendedPrice"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
	Alternatives     []struct {
		Price    float64 `json:"price"`
		Scenario string  `json:"scenario"`
	} `json:"alternatives"`
	Factors []string `json:"factors"`
}

type rawForecast struct {
	PredictedRevenue float64  `json:"predictedRevenue"`
	Confidence       float64  `json:"confidence"`
	Factors          []string `json:"factors"`
	Risks            []string `json:"risks"`
	DailyPredictions []struct {
		Date       string  `json:"date"`
		Revenue    float64 `json:"revenue"`
		Confidence float64 `json:"confidence"`
	} `json:"dailyPredictions"`
}

// GenerateInsights serves cached insights when present. A cache miss costs
// one unit of the user's AI budget.
func (s *Service) GenerateInsights(ctx context.Context, userID string, req domain.InsightsRequest) (*domain.InsightsResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if err := s.available(func(f config.AIFeatures) bool { return f.Insights }); err != nil {
		return nil, err
	}

	scope := "all"
	if req.BookID != nil {
		scope = strings.TrimSpace(*req.BookID)
	}
	if req.IncludeForecasts {
		scope += ":forecast"
	}

	result, err := cache.Fetch(ctx, s.cache, cache.InsightsKey(userID, scope), cache.TTLInsights,
		func(ctx context.Context) (domain.InsightsResult, error) {
			return s.generateInsights(ctx, userID, req)
		})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) generateInsights(ctx context.Context, userID string, req domain.InsightsRequest) (domain.InsightsResult, error) {
	if err := s.checkBudget(ctx, userID); err != nil {
		return domain.InsightsResult{}, err
	}

	filter := salesdomain.SalesFilter{UserID: userID, Range: s.lookback(insightsLookbackDays)}
	var books []bookdomain.Book
	if req.BookID != nil {
		book, err := s.books.Get(ctx, userID, *req.BookID)
		if err != nil {
			return domain.InsightsResult{}, err
		}
		books = []bookdomain.Book{*book}
		filter.BookID = book.ID
	} else {
		list, err := s.books.List(ctx, userID)
		if err != nil {
			return domain.InsightsResult{}, err
		}
		books = list
	}

	sales, err := s.sales.GetSales(ctx, filter)
	if err != nil {
		return domain.InsightsResult{}, err
	}

	var raw []rawInsight
	if err := s.complete(ctx, "insights", schema.Insights, prompt.Insights(sales, books), &raw); err != nil {
		return domain.InsightsResult{}, err
	}

	now := s.clock.Now().UTC()
	insights := make([]domain.Insight, 0, len(raw))
	for _, r := range raw {
		insights = append(insights, domain.Insight{
			ID:          s.newID(now),
			Type:        r.Type,
			Title:       r.Title,
			Description: r.Description,
			Confidence:  r.Confidence,
			Action:      r.Action,
			CreatedAt:   now,
		})
	}

	if req.IncludeForecasts && s.features.Get().AI.Forecasting {
		if insight, ok := s.forecastInsight(ctx, userID, now); ok {
			insights = append(insights, insight)
		}
	}

	return domain.InsightsResult{Insights: insights, GeneratedAt: now}, nil
}

// forecastInsight folds a default-horizon forecast into the insight list.
// Any failure just leaves it out.
func (s *Service) forecastInsight(ctx context.Context, userID string, now time.Time) (domain.Insight, bool) {
	forecast, err := s.forecast(ctx, userID, domain.DefaultForecastDays)
	if err != nil {
		s.log.Info("forecast insight skipped", zap.String("user_id", userID), zap.Error(err))
		return domain.Insight{}, false
	}
	description := fmt.Sprintf("Projected revenue of $%.2f over the next %d days.", forecast.PredictedRevenue, forecast.Days)
	return domain.Insight{
		ID:          s.newID(now),
		Type:        domain.InsightTrend,
		Title:       fmt.Sprintf("%d-day revenue forecast", forecast.Days),
		Description: description,
		Confidence:  forecast.Confidence,
		CreatedAt:   now,
	}, true
}

func (s *Service) RecommendPrice(ctx context.Context, userID string, req domain.PricingRequest) (*domain.PricingRecommendation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	req.BookID = strings.TrimSpace(req.BookID)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if err := s.available(func(f config.AIFeatures) bool { return f.Pricing }); err != nil {
		return nil, err
	}
	if err := s.checkBudget(ctx, userID); err != nil {
		return nil, err
	}

	book, err := s.books.Get(ctx, userID, req.BookID)
	if err != nil {
		return nil, err
	}
	sales, err := s.sales.GetSales(ctx, salesdomain.SalesFilter{
		UserID: userID,
		Range:  s.lookback(pricingLookbackDays),
		BookID: book.ID,
	})
	if err != nil {
		return nil, err
	}

	var raw rawPricing
	if err := s.complete(ctx, "pricing", schema.Pricing, prompt.Pricing(*book, req.CompetitorPrices, sales), &raw); err != nil {
		return nil, err
	}

	out := &domain.PricingRecommendation{
		BookID:           book.ID,
		RecommendedPrice: raw.RecommendedPrice,
		Confidence:       raw.Confidence,
		Reasoning:        raw.Reasoning,
		Alternatives:     make([]domain.PriceAlternative, 0, len(raw.Alternatives)),
		Factors:          raw.Factors,
	}
	for _, alt := range raw.Alternatives {
		out.Alternatives = append(out.Alternatives, domain.PriceAlternative{Price: alt.Price, Scenario: alt.Scenario})
	}
	return out, nil
}

func (s *Service) Forecast(ctx context.Context, userID string, req domain.ForecastRequest) (*domain.Forecast, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if req.Days == 0 {
		req.Days = domain.DefaultForecastDays
	}
	if err := s.available(func(f config.AIFeatures) bool { return f.Forecasting }); err != nil {
		return nil, err
	}
	return s.forecast(ctx, userID, req.Days)
}

func (s *Service) forecast(ctx context.Context, userID string, days int) (*domain.Forecast, error) {
	if err := s.checkBudget(ctx, userID); err != nil {
		return nil, err
	}

	sales, err := s.sales.GetSales(ctx, salesdomain.SalesFilter{UserID: userID, Range: s.lookback(forecastLookbackDays)})
	if err != nil {
		return nil, err
	}
	if len(sales) < domain.MinForecastRecords {
		return nil, validation.New("sales", "insufficient_data",
			fmt.Sprintf("at least %d sales records from the last %d days are required", domain.MinForecastRecords, forecastLookbackDays))
	}

	var raw rawForecast
	if err := s.complete(ctx, "forecast", schema.Forecast, prompt.Forecast(sales, days), &raw); err != nil {
		return nil, err
	}

	out := &domain.Forecast{
		Days:             days,
		PredictedRevenue: raw.PredictedRevenue,
		Confidence:       raw.Confidence,
		Factors:          raw.Factors,
		Risks:            raw.Risks,
		DailyPredictions: make([]domain.DailyPrediction, 0, len(raw.DailyPredictions)),
	}
	for _, p := range raw.DailyPredictions {
		out.DailyPredictions = append(out.DailyPredictions, domain.DailyPrediction{
			Date:       p.Date,
			Revenue:    p.Revenue,
			Confidence: p.Confidence,
		})
	}
	return out, nil
}

func (s *Service) available(enabled func(config.AIFeatures) bool) error {
	if !s.provider.Configured() {
		return domain.ErrNotConfigured
	}
	if !enabled(s.features.Get().AI) {
		return domain.ErrFeatureDisabled
	}
	return nil
}

// checkBudget fails open when the limiter backend is down; only an
// exhausted budget rejects the call.
func (s *Service) checkBudget(ctx context.Context, userID string) error {
	err := s.gate.Check(ctx, userID)
	if err == nil {
		return nil
	}
	if errors.Is(err, ratelimit.ErrRateLimited) {
		return err
	}
	s.log.Warn("ai rate limiter unavailable; allowing request", zap.String("user_id", userID), zap.Error(err))
	return nil
}

func (s *Service) complete(ctx context.Context, operation, schemaName, userPrompt string, dest any) error {
	temp := jsonTemperature
	resp, err := s.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: prompt.JSONOnly},
			{Role: domain.RoleUser, Content: userPrompt},
		},
		Temperature: &temp,
	})
	if err != nil {
		s.metrics.RecordAIRequest(ctx, operation, outcome(err))
		return err
	}

	if err := s.schemas.Decode(schemaName, resp.Content, dest); err != nil {
		s.metrics.RecordAIRequest(ctx, operation, "invalid_response")
		s.log.Warn("ai response rejected",
			zap.String("operation", operation),
			zap.String("model", resp.Model),
			zap.String("response", truncate(resp.Content, 200)),
			zap.Error(err),
		)
		return err
	}

	s.metrics.RecordAIRequest(ctx, operation, "ok")
	return nil
}

func (s *Service) lookback(days int) salesdomain.DateRange {
	end := clock.StartOfDay(s.clock.Now())
	return salesdomain.DateRange{Start: end.AddDate(0, 0, -(days - 1)), End: end}
}

func (s *Service) newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrNotConfigured):
		return "not_configured"
	default:
		return "error"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
