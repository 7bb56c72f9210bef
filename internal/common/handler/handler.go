// Package handler 提供 API Handler 的通用辅助函数
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/common/logger"
	"github.com/dumeirei/marketplace-backend/internal/common/response"
	"github.com/dumeirei/marketplace-backend/internal/common/utils"
	"github.com/dumeirei/marketplace-backend/internal/middleware"
)

// HandleError 将错误写为统一响应，err 为 nil 时返回 false
// 非 AppError 按 ErrUnknown 返回，原始错误只写日志
//
//	lines, err := svc.GetCommissionLines(ctx, contexts)
//	if handler.HandleError(c, err) {
//	    return
//	}
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	appErr := errors.GetAppError(err)
	status := errors.HTTPStatus(appErr)
	if status >= http.StatusInternalServerError {
		logger.Error("请求处理失败",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("route", c.FullPath()),
			zap.Int("code", appErr.Code),
			zap.Error(err),
		)
	}
	response.ErrorWithStatus(c, status, appErr.Code, appErr.Message)
	return true
}

// MustSucceed 有错误时返回错误响应，否则返回 data
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustSucceedWithMessage 同 MustSucceed，成功时带自定义消息
func MustSucceedWithMessage(c *gin.Context, err error, message string, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.SuccessWithMessage(c, message, data)
}

// MustSucceedPage 分页版本
//
//	p := handler.BindPagination(c)
//	list, total, err := svc.List(ctx, filter, p.Offset, p.Limit)
//	handler.MustSucceedPage(c, err, list, total, p.Offset, p.Limit)
func MustSucceedPage(c *gin.Context, err error, list interface{}, total int64, offset, limit int) {
	if HandleError(c, err) {
		return
	}
	response.SuccessPage(c, list, total, offset, limit)
}

// ParseID 解析路径参数 id，失败时已写入 400 响应
func ParseID(c *gin.Context, resourceName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// ParseQueryID 解析可选的查询参数 ID，参数为空返回 (nil, true)
func ParseQueryID(c *gin.Context, paramName, resourceName string) (*int64, bool) {
	raw := c.Query(paramName)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return nil, false
	}
	return &id, true
}

// BindPagination 读取 offset/limit 查询参数并规范化
func BindPagination(c *gin.Context) utils.Pagination {
	p := utils.Pagination{Limit: utils.DefaultLimit}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil {
		p.Offset = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		p.Limit = v
	}
	p.Normalize()
	return p
}
