// Package middleware 提供依赖存储与追踪的 HTTP 中间件
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-backend/internal/common/logger"
	"github.com/dumeirei/marketplace-backend/internal/middleware"
	"github.com/dumeirei/marketplace-backend/internal/models"
	"github.com/dumeirei/marketplace-backend/internal/repository"
)

// OperationLogger 操作日志中间件
type OperationLogger struct {
	repo *repository.OperationLogRepository
}

// NewOperationLogger 创建操作日志中间件
func NewOperationLogger(repo *repository.OperationLogRepository) *OperationLogger {
	return &OperationLogger{repo: repo}
}

// OperationConfig 操作配置
type OperationConfig struct {
	Module     string
	Action     string
	TargetType string
}

// 管理端写接口与模块操作的映射，键为 "METHOD 路由"（不含 /api/v1 前缀）
var moduleActionMap = map[string]OperationConfig{
	"POST /admin/commission/rates": {
		Module:     models.OperationModuleCommissionRate,
		Action:     "create",
		TargetType: "commission_rate",
	},
	"PUT /admin/commission/rates/:id": {
		Module:     models.OperationModuleCommissionRate,
		Action:     "update",
		TargetType: "commission_rate",
	},
	"DELETE /admin/commission/rates/:id": {
		Module:     models.OperationModuleCommissionRate,
		Action:     "delete",
		TargetType: "commission_rate",
	},
	"PUT /admin/commission/rates/:id/status": {
		Module:     models.OperationModuleCommissionRate,
		Action:     "update_status",
		TargetType: "commission_rate",
	},
	"POST /admin/commission/rates/:id/rules/batch": {
		Module:     models.OperationModuleCommissionRule,
		Action:     "batch",
		TargetType: "commission_rate",
	},
}

// 需要脱敏的请求字段
var sensitiveFields = []string{
	"password", "token", "secret", "api_key",
}

// operationEntry 请求结束时采集的日志数据，避免在协程中访问 gin.Context
type operationEntry struct {
	config     OperationConfig
	adminID    int64
	targetID   *int64
	statusCode int
	ip         string
	userAgent  string
	requestID  string
	body       []byte
}

// Log 操作日志中间件处理函数
func (l *OperationLogger) Log() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 只记录写操作
		if !shouldLog(c.Request.Method) {
			c.Next()
			return
		}

		// 读取请求体
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		c.Next()

		entry, ok := l.collect(c, requestBody)
		if !ok {
			return
		}

		// 异步写入
		go l.save(entry)
	}
}

func shouldLog(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// collect 采集日志数据
func (l *OperationLogger) collect(c *gin.Context, requestBody []byte) (*operationEntry, bool) {
	if l.repo == nil {
		return nil, false
	}

	adminID := middleware.GetAdminID(c)
	if adminID == 0 {
		return nil, false
	}

	path := strings.TrimPrefix(c.FullPath(), "/api/v1")
	config, ok := moduleActionMap[c.Request.Method+" "+path]
	if !ok {
		config = defaultConfig(c.Request.Method, path)
	}

	return &operationEntry{
		config:     config,
		adminID:    adminID,
		targetID:   parseTargetID(c.Param("id")),
		statusCode: c.Writer.Status(),
		ip:         c.ClientIP(),
		userAgent:  c.Request.UserAgent(),
		requestID:  middleware.GetRequestID(c),
		body:       requestBody,
	}, true
}

// save 保存日志
func (l *OperationLogger) save(e *operationEntry) {
	log := &models.OperationLog{
		AdminID:    e.adminID,
		Module:     e.config.Module,
		Action:     e.config.Action,
		TargetID:   e.targetID,
		StatusCode: e.statusCode,
		IP:         e.ip,
		RequestID:  e.requestID,
	}
	if e.config.TargetType != "" {
		targetType := e.config.TargetType
		log.TargetType = &targetType
	}
	if e.userAgent != "" {
		userAgent := e.userAgent
		log.UserAgent = &userAgent
	}

	if len(e.body) > 0 {
		var data interface{}
		if err := json.Unmarshal(e.body, &data); err == nil {
			if mapData, ok := filterSensitiveData(data).(map[string]interface{}); ok {
				log.AfterData = mapData
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.repo.Create(ctx, log); err != nil {
		logger.Warn("保存操作日志失败",
			logger.AdminID(e.adminID),
			logger.Module(log.Module),
			logger.Action(log.Action),
			zap.Error(err),
		)
	}
}

// defaultConfig 从路径和方法推断模块操作
func defaultConfig(method, path string) OperationConfig {
	module := "unknown"
	if strings.Contains(path, "/rules") {
		module = models.OperationModuleCommissionRule
	} else if strings.Contains(path, "/rates") {
		module = models.OperationModuleCommissionRate
	}

	action := "unknown"
	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut, http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	}

	return OperationConfig{Module: module, Action: action}
}

// parseTargetID 从路径参数获取目标 ID
func parseTargetID(idStr string) *int64 {
	if idStr == "" {
		return nil
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

// filterSensitiveData 过滤敏感数据
func filterSensitiveData(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitiveKey(key) {
				result[key] = "***"
			} else {
				result[key] = filterSensitiveData(value)
			}
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = filterSensitiveData(item)
		}
		return result
	default:
		return data
	}
}

func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sf := range sensitiveFields {
		if strings.Contains(lowerKey, sf) {
			return true
		}
	}
	return false
}
