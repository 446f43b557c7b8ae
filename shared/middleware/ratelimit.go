package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a Redis sliding-window limiter keyed by token subject, or
// client IP for anonymous calls. A caller gets burst requests per window,
// where the window is sized so the sustained rate is rps.
type RateLimiter struct {
	client *redis.Client
	logger *slog.Logger
	limit  int
	window time.Duration
}

func NewRateLimiter(client *redis.Client, logger *slog.Logger, rps, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst < rps {
		burst = rps
	}
	return &RateLimiter{
		client: client,
		logger: logger,
		limit:  burst,
		window: time.Duration(burst) * time.Second / time.Duration(rps),
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetSubject(c)
		if key == "" {
			key = c.ClientIP()
		}

		allowed, remaining, err := rl.checkLimit(c.Request.Context(), key)
		if err != nil {
			// fail open
			rl.logger.Warn("rate limiter unavailable", "request_id", c.GetString(RequestIDKey), "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "RATE_LIMITED",
				"message": "Too many requests. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) checkLimit(ctx context.Context, key string) (allowed bool, remaining int, err error) {
	now := time.Now().UnixNano()
	windowStart := now - rl.window.Nanoseconds()
	redisKey := "ratelimit:" + key

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now), Member: now})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*rl.window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(countCmd.Val())
	remaining = rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.limit, remaining, nil
}
