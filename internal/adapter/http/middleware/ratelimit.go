package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "escrow-marketplace/internal/adapter/storage/redis"
	"escrow-marketplace/internal/metrics"
	"escrow-marketplace/pkg/apperror"
	"escrow-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the per-group limits. bidsPerMinute comes
// from marketplace config; 0 keeps the default.
func DefaultRateLimitRules(bidsPerMinute int) map[string]RateLimitRule {
	bids := int64(30)
	if bidsPerMinute > 0 {
		bids = int64(bidsPerMinute)
	}
	return map[string]RateLimitRule{
		"wallet_movement": {Limit: 20, Window: time.Minute},
		"checkout":        {Limit: 10, Window: time.Minute},
		"bids":            {Limit: bids, Window: time.Minute},
		"returns":         {Limit: 10, Window: time.Minute},
		"read":            {Limit: 120, Window: time.Minute},
		"admin":           {Limit: 60, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Callers are keyed by user id when authenticated, otherwise by client IP.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", group, extractIdentifier(c))

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		// Always set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			metrics.RateLimited.WithLabelValues(group).Inc()
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier determines the rate limit key source.
func extractIdentifier(c *gin.Context) string {
	if actor, ok := ActorFrom(c); ok {
		return actor.UserID.String()
	}
	return c.ClientIP()
}
