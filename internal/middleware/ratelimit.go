package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"teleconsult-backend/internal/database"
)

// RateLimiter implements Redis-backed fixed-window rate limiting. It guards
// the connection-attempt endpoints; in-call traffic rides the established
// WebSocket and is never limited here.
type RateLimiter struct {
	client   *database.RedisClient
	requests int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter allowing `requests` per `window`
func NewRateLimiter(client *database.RedisClient, requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client:   client,
		requests: requests,
		window:   window,
	}
}

// Middleware returns a Gin middleware for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var identifier string
		if userID, ok := c.Get("user_id"); ok {
			identifier = fmt.Sprintf("user:%v", userID)
		} else {
			identifier = fmt.Sprintf("ip:%s", c.ClientIP())
		}

		count, err := rl.hit(c, identifier)
		if err != nil {
			// Fail-open on Redis trouble; auth still gates the endpoint
			c.Next()
			return
		}

		remaining := rl.requests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > rl.requests {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// hit increments the caller's counter for the current window
func (rl *RateLimiter) hit(c *gin.Context, identifier string) (int64, error) {
	ctx := c.Request.Context()
	window := time.Now().Unix() / int64(rl.window.Seconds())
	key := fmt.Sprintf("ratelimit:%s:%d", identifier, window)

	count, err := rl.client.SafeIncr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	if count == 1 {
		if err := rl.client.SafeExpire(ctx, key, rl.window).Err(); err != nil {
			return count, err
		}
	}

	return count, nil
}
