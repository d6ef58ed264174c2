package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/authorstack/authorstack/internal/ai/domain"
	"github.com/authorstack/authorstack/internal/config"
	"github.com/authorstack/authorstack/internal/ratelimit"
	resty "github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	RetryCount       = 2
	RetryWaitTime    = 100 * time.Millisecond
	RetryWaitTimeMax = 2 * time.Second

	// ProviderScope labels rate limit errors raised by the upstream API.
	ProviderScope = "ai_provider"

	defaultRetryAfter = time.Minute
)

// UpstreamError is a non-success response from the provider. It matches
// domain.ErrUpstream with errors.Is.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ai provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("ai provider returned status %d: %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Is(target error) bool {
	return target == domain.ErrUpstream
}

// OpenRouter calls the OpenRouter chat-completions API.
type OpenRouter struct {
	cfg  config.AIConfig
	http *resty.Client
	log  *zap.Logger
}

type chatBody struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
}

type chatResult struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorResult struct {
	Error struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func NewOpenRouter(cfg config.Config, log *zap.Logger) *OpenRouter {
	ai := cfg.AI
	c := resty.New()
	c.SetBaseURL(strings.TrimRight(ai.BaseURL, "/"))
	c.SetTimeout(ai.Timeout)
	c.SetAuthToken(ai.APIKey)
	c.SetHeader("Content-Type", "application/json")
	c.SetHeader("HTTP-Referer", ai.AppURL)
	c.SetHeader("X-Title", ai.AppTitle)
	c.SetRetryCount(RetryCount)
	c.SetRetryWaitTime(RetryWaitTime)
	c.SetRetryMaxWaitTime(RetryWaitTimeMax)
	c.AddRetryCondition(func(response *resty.Response, err error) bool {
		if response == nil {
			return false
		}
		switch response.StatusCode() {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	})

	return &OpenRouter{
		cfg:  ai,
		http: c,
		log:  log.Named("ai.openrouter"),
	}
}

func (o *OpenRouter) Configured() bool {
	return o.cfg.Configured()
}

func (o *OpenRouter) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if !o.Configured() {
		return nil, domain.ErrNotConfigured
	}

	body := chatBody{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: o.cfg.Temperature,
	}
	if body.Model == "" {
		body.Model = o.cfg.Model
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = o.cfg.MaxTokens
	}
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}

	var (
		result  chatResult
		errBody errorResult
	)
	start := time.Now()
	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&errBody).
		Post("/chat/completions")
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		o.log.Error("openrouter request failed", zap.String("model", body.Model), zap.Duration("duration", duration), zap.Error(err))
		return nil, &UpstreamError{Message: err.Error()}
	}

	if resp.IsError() {
		o.log.Warn("openrouter returned error",
			zap.String("model", body.Model),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("duration", duration),
			zap.String("message", errBody.Error.Message),
		)
		return nil, mapStatus(resp, errBody.Error.Message)
	}

	o.log.Debug("openrouter chat completed",
		zap.String("model", body.Model),
		zap.Int("tokens", result.Usage.TotalTokens),
		zap.Duration("duration", duration),
	)

	out := &domain.ChatResponse{Model: result.Model, TotalTokens: result.Usage.TotalTokens}
	if out.Model == "" {
		out.Model = body.Model
	}
	if len(result.Choices) > 0 {
		out.Content = result.Choices[0].Message.Content
	}
	return out, nil
}

func mapStatus(resp *resty.Response, message string) error {
	switch resp.StatusCode() {
	case http.StatusTooManyRequests:
		return &ratelimit.LimitedError{Scope: ProviderScope, RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After"))}
	case http.StatusUnauthorized:
		return &UpstreamError{StatusCode: resp.StatusCode(), Message: "authentication failed"}
	default:
		return &UpstreamError{StatusCode: resp.StatusCode(), Message: message}
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}
