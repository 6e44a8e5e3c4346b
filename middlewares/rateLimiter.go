package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/casahogar/cashbox_backend/config"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, prefix string, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) redisClient() *redis.Client {
	if rl.client != nil {
		return rl.client
	}
	// the router is built before Redis connects
	return config.GetRedisDB()
}

// RateLimitMiddleware counts requests per client IP in a fixed window.
// Without Redis it lets everything through.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := rl.redisClient()
	if client == nil {
		c.Next()
		return
	}
	key := "RateLimit:" + rl.prefix + ":" + c.ClientIP()

	ctx := c.Request.Context()
	pipe := client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	count := incr.Val()
	// a counter without expiry (first hit, or an earlier EXPIRE that failed)
	// gets the window now, so no client is locked out for good
	if ttl.Val() < 0 {
		if err := client.Expire(ctx, key, rl.window).Err(); err != nil {
			config.LogError(config.GetLogger(), "middlewares", "RateLimitMiddleware", "set window expiry", key, err)
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code":    "RATE_LIMITED",
			"message": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}
