package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-backend/internal/common/cache"
	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/common/logger"
	"github.com/dumeirei/marketplace-backend/internal/common/metrics"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	RedisClient *redis.Client
	Limit       int
	Window      time.Duration
	KeyFunc     func(*gin.Context) string // 为空时按 IP + 路径
}

// RateLimit 基于 Redis 的固定窗口限流，Redis 不可用时放行
func RateLimit(config *RateLimitConfig) gin.HandlerFunc {
	limit := strconv.Itoa(config.Limit)

	return func(c *gin.Context) {
		key := cache.BuildKey(cache.KeyPrefixRateLimit, c.ClientIP(), c.Request.URL.Path)
		if config.KeyFunc != nil {
			key = config.KeyFunc(c)
		}
		ctx := c.Request.Context()

		var incr *redis.IntCmd
		var ttl *redis.DurationCmd
		_, err := config.RedisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			ttl = pipe.TTL(ctx, key)
			return nil
		})
		if err != nil {
			logger.Warn("限流计数失败，放行请求", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		count := incr.Val()
		remaining := ttl.Val()
		// 新键或遗留无过期时间的键
		if count == 1 || remaining < 0 {
			config.RedisClient.Expire(ctx, key, config.Window)
			remaining = config.Window
		}

		c.Header("X-RateLimit-Limit", limit)
		if count > int64(config.Limit) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(remaining).Unix(), 10))
			c.Header("Retry-After", strconv.Itoa(int(remaining.Seconds())+1))
			metrics.GetMetrics().RecordRateLimited(GetUserType(c))

			abortWith(c, http.StatusTooManyRequests, errors.ErrRateLimitExceed)
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(config.Limit)-count, 10))

		c.Next()
	}
}

// CallerRateLimit 按调用方限流，未认证时按 IP
func CallerRateLimit(redisClient *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{
		RedisClient: redisClient,
		Limit:       limit,
		Window:      window,
		KeyFunc: func(c *gin.Context) string {
			if userID := GetUserID(c); userID > 0 {
				return cache.BuildKey(cache.KeyPrefixRateLimit, GetUserType(c), strconv.FormatInt(userID, 10))
			}
			return cache.BuildKey(cache.KeyPrefixRateLimit, "ip", c.ClientIP())
		},
	})
}
