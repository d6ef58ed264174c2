package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/authorstack/authorstack/internal/observability/logger"
	"github.com/authorstack/authorstack/internal/ratelimit"
	"github.com/authorstack/authorstack/internal/usercontext"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const contextUserIDKey = "user_id"

var errMissingSubject = errors.New("token has no subject")

// AuthRequired accepts an HS256 bearer token and stores its subject as the
// request user.
func (s *Server) AuthRequired() gin.HandlerFunc {
	secret := []byte(s.cfg.AuthJWTSecret)
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || len(secret) == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID, err := parseSubject(raw, secret)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("bearer token rejected", zap.Error(err))
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID)
		c.Request = c.Request.WithContext(usercontext.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func parseSubject(raw string, secret []byte) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return "", errMissingSubject
	}
	return sub, nil
}

// APIRateLimit applies the per-user token bucket. Limiter backend failures
// admit the request.
func (s *Server) APIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.apiLimiter.Enabled() {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		userID, _ := usercontext.UserIDFromContext(ctx)
		if userID == "" {
			userID = c.ClientIP()
		}

		res, err := s.apiLimiter.Allow(ctx, userID)
		if err != nil {
			logger.FromContext(ctx).Warn("api rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			AbortWithError(c, rateLimitedError(res.Limit, res.RetryAfter))
			return
		}
		c.Next()
	}
}

// CronAuthRequired admits requests carrying the configured cron secret.
func (s *Server) CronAuthRequired() gin.HandlerFunc {
	secret := []byte(strings.TrimSpace(s.cfg.CronSecret))
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || len(secret) == 0 || subtle.ConstantTimeCompare([]byte(raw), secret) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func currentUserID(c *gin.Context) (string, error) {
	userID := strings.TrimSpace(c.GetString(contextUserIDKey))
	if userID == "" {
		return "", fmt.Errorf("%w: no authenticated user", ErrUnauthorized)
	}
	return userID, nil
}

func rateLimitedError(limit int, retryAfter time.Duration) error {
	return &ratelimit.LimitedError{
		Scope:      ratelimit.NamespaceAPI,
		Limit:      limit,
		RetryAfter: retryAfter,
	}
}
