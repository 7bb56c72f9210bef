package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoggingConfig 访问日志配置
type LoggingConfig struct {
	Logger         *zap.Logger
	SkipPaths      []string
	LogRequestBody bool
	MaxBodySize    int
}

// 探针与指标路径默认不记录
var probePaths = []string{"/health", "/ping", "/ready", "/metrics"}

// Logging 访问日志中间件
func Logging(config *LoggingConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = struct{}{}
	}
	maxBody := config.MaxBodySize
	if maxBody <= 0 {
		maxBody = 1024
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()

		var requestBody string
		if config.LogRequestBody && c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			requestBody = truncate(string(bodyBytes), maxBody)
		}

		c.Next()

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", path),
			zap.Int("status", statusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if c.Request.URL.RawQuery != "" {
			fields = append(fields, zap.String("query", c.Request.URL.RawQuery))
		}
		if userID := GetUserID(c); userID > 0 {
			fields = append(fields, zap.Int64("caller_id", userID), zap.String("caller_type", GetUserType(c)))
		}
		if requestBody != "" {
			fields = append(fields, zap.String("request_body", requestBody))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case statusCode >= 500:
			config.Logger.Error("HTTP Request", fields...)
		case statusCode >= 400:
			config.Logger.Warn("HTTP Request", fields...)
		default:
			config.Logger.Info("HTTP Request", fields...)
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// AccessLog 访问日志，跳过探针路径及 extraSkip
func AccessLog(logger *zap.Logger, extraSkip ...string) gin.HandlerFunc {
	return Logging(&LoggingConfig{
		Logger:    logger,
		SkipPaths: append(append([]string{}, probePaths...), extraSkip...),
	})
}
