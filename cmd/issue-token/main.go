// Package main 签发管理端或内部服务调用令牌，供本地联调使用
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dumeirei/marketplace-backend/internal/common/config"
	"github.com/dumeirei/marketplace-backend/internal/common/jwt"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	userType := flag.String("type", jwt.UserTypeService, "调用方类型: admin | service")
	userID := flag.Int64("id", 1, "调用方 ID")
	role := flag.String("role", "", "管理员角色，如 super_admin、commission_manager")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	token, expireAt, err := issueToken(&cfg.JWT, *userType, *userID, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", time.Unix(expireAt, 0).Format(time.RFC3339))
}

func issueToken(cfg *config.JWTConfig, userType string, userID int64, role string) (string, int64, error) {
	switch userType {
	case jwt.UserTypeAdmin:
		if role == "" {
			return "", 0, fmt.Errorf("admin token requires -role")
		}
	case jwt.UserTypeService:
		role = ""
	default:
		return "", 0, fmt.Errorf("unknown user type %q", userType)
	}
	if userID <= 0 {
		return "", 0, fmt.Errorf("invalid id %d", userID)
	}

	manager := jwt.NewManager(&jwt.Config{
		Secret:           cfg.Secret,
		AccessExpireTime: cfg.AccessTokenDuration(),
		Issuer:           cfg.Issuer,
	})
	return manager.GenerateAccessToken(userID, userType, role)
}
