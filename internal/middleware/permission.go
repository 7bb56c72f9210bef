package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
)

// 管理员角色，其余角色对佣金配置只读
const (
	RoleSuperAdmin        = "super_admin"
	RoleCommissionManager = "commission_manager"
)

// RequireRoles 要求管理员角色属于 roles 之一
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := allowed[GetRole(c)]; !ok {
			abortWith(c, http.StatusForbidden, errors.ErrPermissionDenied)
			return
		}
		c.Next()
	}
}

// RequireCommissionManager 佣金费率/规则写操作权限
func RequireCommissionManager() gin.HandlerFunc {
	return RequireRoles(RoleSuperAdmin, RoleCommissionManager)
}
