package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	aidomain "github.com/authorstack/authorstack/internal/ai/domain"
	bookdomain "github.com/authorstack/authorstack/internal/book/domain"
	platformsyncdomain "github.com/authorstack/authorstack/internal/platformsync/domain"
	"github.com/authorstack/authorstack/internal/ratelimit"
	salesdomain "github.com/authorstack/authorstack/internal/sales/domain"
	userdomain "github.com/authorstack/authorstack/internal/user/domain"
	"github.com/authorstack/authorstack/internal/validation"
	"github.com/authorstack/authorstack/internal/webhook"
	"github.com/authorstack/authorstack/pkg/db"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string                  `json:"type"`
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware renders the last handler error as the JSON error
// envelope. Internal messages are only exposed when exposeInternal is set.
func ErrorHandlingMiddleware(exposeInternal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusInternalServerError && exposeInternal {
			payload.Message = lastErr.Err.Error()
		}
		if status == http.StatusTooManyRequests {
			setRetryAfter(c, lastErr.Err)
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return validation.New("request", "invalid_request", "invalid request")
}

func setRetryAfter(c *gin.Context, err error) {
	wait, ok := ratelimit.RetryAfter(err)
	if !ok || wait <= 0 {
		wait = time.Second
	}
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if fieldErrs, ok := validation.As(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  fieldErrs,
		}
	}

	if sentinel, field, ok := validationSentinel(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  validation.New(field, sentinel.Error(), "invalid value"),
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, aidomain.ErrFeatureDisabled),
		errors.Is(err, platformsyncdomain.ErrPlatformDisabled):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, platformsyncdomain.ErrSyncInProgress),
		db.IsDuplicateKeyErr(err),
		mongo.IsDuplicateKeyError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, userdomain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: "not enough credits",
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, aidomain.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_not_configured",
			Message: "AI service is not configured",
		}
	case errors.Is(err, aidomain.ErrUpstream):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "AI provider unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded on the
// request log line.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status == http.StatusInternalServerError && db.IsStoreError(err) {
		code = "store_error"
	}
	return payload.Type, code
}

var validationSentinels = map[error]string{
	ErrInvalidRequest:                 "request",
	salesdomain.ErrInvalidUser:        "user",
	salesdomain.ErrInvalidPlatform:    "platform",
	salesdomain.ErrInvalidBook:        "book_id",
	salesdomain.ErrInvalidDate:        "date",
	salesdomain.ErrInvalidDateRange:   "range",
	salesdomain.ErrInvalidRevenue:     "revenue",
	salesdomain.ErrInvalidUnits:       "units",
	salesdomain.ErrInvalidDays:        "days",
	salesdomain.ErrEmptyImport:        "records",
	bookdomain.ErrInvalidUser:         "user",
	bookdomain.ErrInvalidID:           "id",
	aidomain.ErrInvalidUser:           "user",
	platformsyncdomain.ErrInvalidUser: "user",
	platformsyncdomain.ErrNoPlatforms: "platforms",
	userdomain.ErrInvalidUser:         "user",
	userdomain.ErrInvalidAmount:       "amount",
	userdomain.ErrInvalidTier:         "tier",
	userdomain.ErrEmptyUpdate:         "body",
	webhook.ErrMissingSignature:       "Stripe-Signature",
	webhook.ErrInvalidPayload:         "body",
}

// validationSentinel finds the domain sentinel err wraps, if any, and the
// request field it concerns.
func validationSentinel(err error) (error, string, bool) {
	for sentinel, field := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel, field, true
		}
	}
	return nil, "", false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, bookdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, mongo.ErrNoDocuments):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	if errors.Is(err, platformsyncdomain.ErrSyncInProgress) {
		return "a sync for this platform is already running"
	}
	return "conflict"
}
