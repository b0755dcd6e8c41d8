package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limiter counts hits per key in a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
	// RetryAfter is the time left in key's current window.
	RetryAfter(ctx context.Context, key string) (time.Duration, error)
}

// RateLimit caps requests per user, or per client IP for anonymous callers.
// A failing limiter lets the request through.
func RateLimit(l Limiter, scope string, limit int64, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}

		who := c.GetString(ctxUserID)
		if who == "" {
			who = "ip:" + c.ClientIP()
		}
		key := scope + ":" + who

		allowed, remaining, err := l.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			wait, err := l.RetryAfter(c.Request.Context(), key)
			if err != nil || wait <= 0 {
				wait = window
			}
			seconds := int(math.Ceil(wait.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later",
				"code":        "RateLimited",
				"retry_after": seconds,
			})
			return
		}
		c.Next()
	}
}
