package middleware

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/common/jwt"
	"github.com/dumeirei/marketplace-backend/internal/common/response"
)

func abortWith(c *gin.Context, status int, appErr *errors.AppError) {
	response.ErrorWithStatus(c, status, appErr.Code, appErr.Message)
	c.Abort()
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTManager *jwt.Manager
	UserTypes  []string // 允许的调用方类型，为空时不限制
}

// 上下文键
const (
	ContextKeyUserID   = "user_id"
	ContextKeyUserType = "user_type"
	ContextKeyRole     = "role"
	ContextKeyClaims   = "claims"
)

// Auth 认证中间件
func Auth(config *AuthConfig) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(config.UserTypes))
	for _, t := range config.UserTypes {
		allowed[t] = struct{}{}
	}

	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortWith(c, http.StatusUnauthorized, errors.ErrUnauthorized)
			return
		}

		claims, err := config.JWTManager.ParseToken(token)
		if err != nil {
			if stderrors.Is(err, jwt.ErrTokenExpired) {
				abortWith(c, http.StatusUnauthorized, errors.ErrTokenExpired)
			} else {
				abortWith(c, http.StatusUnauthorized, errors.ErrTokenInvalid)
			}
			return
		}

		if len(allowed) > 0 {
			if _, ok := allowed[claims.UserType]; !ok {
				abortWith(c, http.StatusForbidden, errors.ErrPermissionDenied)
				return
			}
		}

		// 设置上下文
		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserType, claims.UserType)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// AdminAuth 管理员认证中间件
func AdminAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return Auth(&AuthConfig{
		JWTManager: jwtManager,
		UserTypes:  []string{jwt.UserTypeAdmin},
	})
}

// ServiceAuth 内部服务认证中间件，管理员令牌同样放行
func ServiceAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return Auth(&AuthConfig{
		JWTManager: jwtManager,
		UserTypes:  []string{jwt.UserTypeService, jwt.UserTypeAdmin},
	})
}

// extractToken 从请求中提取令牌
func extractToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetUserID 从上下文获取调用方 ID
func GetUserID(c *gin.Context) int64 {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0
	}
	id, _ := userID.(int64)
	return id
}

// GetAdminID 从上下文获取管理员 ID，非管理员返回 0
func GetAdminID(c *gin.Context) int64 {
	if GetUserType(c) != jwt.UserTypeAdmin {
		return 0
	}
	return GetUserID(c)
}

// GetUserType 从上下文获取调用方类型
func GetUserType(c *gin.Context) string {
	userType, exists := c.Get(ContextKeyUserType)
	if !exists {
		return ""
	}
	s, _ := userType.(string)
	return s
}

// GetRole 从上下文获取角色
func GetRole(c *gin.Context) string {
	role, exists := c.Get(ContextKeyRole)
	if !exists {
		return ""
	}
	s, _ := role.(string)
	return s
}

// GetClaims 从上下文获取完整的 Claims
func GetClaims(c *gin.Context) *jwt.Claims {
	claims, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	cl, _ := claims.(*jwt.Claims)
	return cl
}
