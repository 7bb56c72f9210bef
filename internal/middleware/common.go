// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/common/response"
)

// 上下文键
const (
	ContextKeyRequestID = "request_id"
)

const (
	headerRequestID = "X-Request-ID"
	// 与操作日志 request_id 列宽一致
	maxRequestIDLength = 64
)

// RequestID 请求 ID 中间件，沿用调用方传入的 ID 以便跨服务关联
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		c.Set(ContextKeyRequestID, requestID)
		c.Header(headerRequestID, requestID)

		c.Next()
	}
}

// GetRequestID 获取请求 ID
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// Recovery 恢复中间件
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", GetRequestID(c)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("caller_type", GetUserType(c)),
					zap.Any("error", err),
					zap.ByteString("stack", debug.Stack()),
				)

				response.ErrorWithStatus(c, http.StatusInternalServerError,
					errors.ErrInternalError.Code, errors.ErrInternalError.Message)
				c.Abort()
			}
		}()

		c.Next()
	}
}

// SecureHeaders 安全头中间件，接口只返回 JSON；文档页面放宽 CSP
func SecureHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		if strings.HasPrefix(c.Request.URL.Path, "/swagger/") {
			c.Header("Content-Security-Policy", "default-src 'self' 'unsafe-inline'; img-src 'self' data:")
		} else {
			c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			c.Header("Cache-Control", "no-store")
		}

		c.Next()
	}
}

// RealIP 真实 IP 中间件
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
			c.Request.RemoteAddr = realIP
		} else if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			// 取最左侧的客户端地址
			client, _, _ := strings.Cut(xff, ",")
			c.Request.RemoteAddr = strings.TrimSpace(client)
		}

		c.Next()
	}
}

// RequestSizeLimiter 限制请求体大小，未声明长度的请求在读取超限时由 binding 报错
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			response.BadRequest(c, fmt.Sprintf("请求体过大，最大允许 %d 字节", maxSize))
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
