package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const readyCheckTimeout = 3 * time.Second

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service,omitempty"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// dependencyCheck 就绪检查项
type dependencyCheck struct {
	name  string
	check func(ctx context.Context) error
}

func databaseCheck(db *gorm.DB) dependencyCheck {
	return dependencyCheck{name: "database", check: func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
}

func redisCheck(client *redis.Client) dependencyCheck {
	return dependencyCheck{name: "redis", check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

func healthHandler(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "ok",
			Service:   service,
			Timestamp: time.Now().Unix(),
		})
	}
}

func pingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// readyHandler 依次检查依赖，任一失败返回 503
func readyHandler(checks ...dependencyCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyCheckTimeout)
		defer cancel()

		resp := HealthResponse{
			Status:    "ready",
			Timestamp: time.Now().Unix(),
			Checks:    make(map[string]string, len(checks)),
		}
		status := http.StatusOK
		for _, dc := range checks {
			if err := dc.check(ctx); err != nil {
				resp.Checks[dc.name] = "error: " + err.Error()
				resp.Status = "not ready"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[dc.name] = "ok"
		}
		c.JSON(status, resp)
	}
}
