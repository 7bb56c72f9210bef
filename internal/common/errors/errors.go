// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码判断，WithMessage/WithError 派生的错误仍与原错误相等
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// New 创建应用错误
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// WithMessage 返回替换了消息的副本
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{Code: e.Code, Message: message, Err: e.Err}
}

// WithError 返回附带原始错误的副本
func (e *AppError) WithError(err error) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Err: err}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown          = New(1000, "未知错误")
	ErrInvalidParams    = New(1001, "参数错误")
	ErrDatabaseError    = New(1004, "数据库错误")
	ErrInternalError    = New(1006, "内部错误")
	ErrRateLimitExceed  = New(1008, "请求过于频繁")
	ErrResourceNotFound = New(1010, "资源不存在")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, "未登录")
	ErrTokenExpired     = New(2001, "登录已过期")
	ErrTokenInvalid     = New(2002, "无效的令牌")
	ErrPermissionDenied = New(2004, "权限不足")
)

// 佣金错误码 (5100-5199)
var (
	ErrCommissionRateNotFound   = New(5100, "佣金费率不存在")
	ErrCommissionRuleNotFound   = New(5101, "佣金规则不存在")
	ErrCommissionRateInvalid    = New(5102, "佣金费率配置无效")
	ErrCommissionRateCodeExists = New(5103, "佣金费率编码已存在")
	ErrInvalidCommissionAmount  = New(5104, "佣金计算金额无效")
	ErrCommissionUpsertFailed   = New(5105, "佣金明细保存失败")
	ErrInvalidReference         = New(5106, "无效的规则引用类型")
	ErrCommissionLineNotFound   = New(5107, "佣金明细不存在")
	ErrRuleBatchFailed          = New(5108, "佣金规则批量操作失败")
)

// 未列出的错误码按 500 处理
var httpStatusByCode = map[int]int{
	ErrInvalidParams.Code:            http.StatusBadRequest,
	ErrCommissionRateInvalid.Code:    http.StatusBadRequest,
	ErrInvalidCommissionAmount.Code:  http.StatusBadRequest,
	ErrInvalidReference.Code:         http.StatusBadRequest,
	ErrResourceNotFound.Code:         http.StatusNotFound,
	ErrCommissionRateNotFound.Code:   http.StatusNotFound,
	ErrCommissionRuleNotFound.Code:   http.StatusNotFound,
	ErrCommissionLineNotFound.Code:   http.StatusNotFound,
	ErrCommissionRateCodeExists.Code: http.StatusConflict,
	ErrRateLimitExceed.Code:          http.StatusTooManyRequests,
	ErrUnauthorized.Code:             http.StatusUnauthorized,
	ErrTokenExpired.Code:             http.StatusUnauthorized,
	ErrTokenInvalid.Code:             http.StatusUnauthorized,
	ErrPermissionDenied.Code:         http.StatusForbidden,
}

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误，非应用错误包装为 ErrUnknown
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// HTTPStatus 返回错误码对应的 HTTP 状态码
func HTTPStatus(e *AppError) int {
	if status, ok := httpStatusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
