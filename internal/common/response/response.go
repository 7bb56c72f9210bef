// Package response 提供统一的 API 响应格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 与请求 ID 中间件写入的上下文键一致
const contextKeyRequestID = "request_id"

// Response API 统一响应结构，Code 为 0 表示成功
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// PageData 分页数据结构
type PageData struct {
	List   interface{} `json:"list"`
	Total  int64       `json:"total"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	c.JSON(status, Response{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: c.GetString(contextKeyRequestID),
	})
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, 0, "success", data)
}

// SuccessWithMessage 成功响应（带消息）
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, 0, message, data)
}

// SuccessPage 分页成功响应
func SuccessPage(c *gin.Context, list interface{}, total int64, offset, limit int) {
	write(c, http.StatusOK, 0, "success", PageData{
		List:   list,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

// ErrorWithStatus 错误响应，code 为业务错误码
func ErrorWithStatus(c *gin.Context, status, code int, message string) {
	write(c, status, code, message, nil)
}

func statusError(c *gin.Context, status int, message, fallback string) {
	if message == "" {
		message = fallback
	}
	write(c, status, status, message, nil)
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, message string) {
	statusError(c, http.StatusBadRequest, message, "bad request")
}

// Unauthorized 未授权
func Unauthorized(c *gin.Context, message string) {
	statusError(c, http.StatusUnauthorized, message, "unauthorized")
}

// InternalError 服务器内部错误
func InternalError(c *gin.Context, message string) {
	statusError(c, http.StatusInternalServerError, message, "internal server error")
}
