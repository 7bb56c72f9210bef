// Package utils 提供通用工具函数
package utils

import "strings"

// StringPtr 返回字符串指针
func StringPtr(s string) *string {
	return &s
}

// NormalizeCode 规范化编码类字符串（去空白、转小写），如币种
func NormalizeCode(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Contains 判断切片是否包含元素
func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// Unique 切片去重，保留首次出现的顺序
func Unique[T comparable](slice []T) []T {
	seen := make(map[T]struct{})
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}

// 分页默认值
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination 偏移量分页参数
type Pagination struct {
	Offset int `json:"offset" form:"offset"`
	Limit  int `json:"limit" form:"limit"`
}

// Normalize 规范化分页参数
func (p *Pagination) Normalize() {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}
