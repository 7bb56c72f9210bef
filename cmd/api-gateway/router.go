// Package main 是应用程序入口
package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-backend/internal/common/cache"
	"github.com/dumeirei/marketplace-backend/internal/common/config"
	"github.com/dumeirei/marketplace-backend/internal/common/jwt"
	"github.com/dumeirei/marketplace-backend/internal/common/metrics"
	commonMiddleware "github.com/dumeirei/marketplace-backend/internal/common/middleware"
	adminHandler "github.com/dumeirei/marketplace-backend/internal/handler/admin"
	commissionHandler "github.com/dumeirei/marketplace-backend/internal/handler/commission"
	"github.com/dumeirei/marketplace-backend/internal/middleware"
	"github.com/dumeirei/marketplace-backend/internal/repository"
	adminService "github.com/dumeirei/marketplace-backend/internal/service/admin"
	commissionService "github.com/dumeirei/marketplace-backend/internal/service/commission"
)

// 计算接口请求体上限
const maxCalculationBodySize = 2 << 20

// services 路由依赖的服务集合
type services struct {
	rates      commissionService.RateSource
	commission *commissionService.CommissionService
	rateAdmin  *adminService.CommissionRateAdminService
	opLog      *adminService.OperationLogService
	opLogRepo  *repository.OperationLogRepository
}

// buildServices 初始化仓储与服务，启用缓存时费率读取经 Redis 快照
func buildServices(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *services {
	rateRepo := repository.NewCommissionRateRepository(db)
	ruleRepo := repository.NewCommissionRuleRepository(db)
	lineRepo := repository.NewCommissionLineRepository(db)
	opLogRepo := repository.NewOperationLogRepository(db)

	var (
		rates       commissionService.RateSource = rateRepo
		invalidator commissionService.RateCacheInvalidator
	)
	if cfg.Business.Commission.RateCacheEnabled && redisClient != nil {
		cached := commissionService.NewCachedRateSource(rateRepo, cache.NewJSONStore(redisClient), cfg.Business.Commission.RateCacheDuration())
		rates = cached
		invalidator = cached
	}

	return &services{
		rates:      rates,
		commission: commissionService.NewCommissionService(rates, lineRepo),
		rateAdmin:  adminService.NewCommissionRateAdminService(rateRepo, ruleRepo, invalidator),
		opLog:      adminService.NewOperationLogService(opLogRepo),
		opLogRepo:  opLogRepo,
	}
}

// setupRouter 设置路由
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
	svcs *services,
) {
	// 创建 JWT 管理器
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:           cfg.JWT.Secret,
		AccessExpireTime: cfg.JWT.AccessTokenDuration(),
		Issuer:           cfg.JWT.Issuer,
	})

	// 初始化处理器
	commissionAdminH := adminHandler.NewCommissionHandler(svcs.rateAdmin, svcs.commission)
	opLogH := adminHandler.NewOperationLogHandler(svcs.opLog)
	commissionH := commissionHandler.NewHandler(svcs.commission, cfg.Business.Commission.DefaultCurrency)
	opLogger := commonMiddleware.NewOperationLogger(svcs.opLogRepo)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORSFromConfig(&cfg.CORS))
	probePaths := []string{"/health", "/ping", "/ready", cfg.Metrics.Path}
	if cfg.Tracing.Enabled {
		r.Use(commonMiddleware.Tracing(&commonMiddleware.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
			SkipPaths:   probePaths,
		}))
	}
	if cfg.Metrics.Enabled {
		r.Use(metrics.GetMetrics().Middleware(probePaths...))
	}
	r.Use(middleware.AccessLog(logger, cfg.Metrics.Path))

	// 健康检查（不需要认证）
	readyChecks := []dependencyCheck{databaseCheck(db)}
	if redisClient != nil {
		readyChecks = append(readyChecks, redisCheck(redisClient))
	}
	r.GET("/health", healthHandler(cfg.Server.Name))
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(readyChecks...))

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, metrics.Handler())
	}

	// Swagger 文档
	if !cfg.IsRelease() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")

	// 服务间佣金计算接口
	calc := v1.Group("/commission")
	calc.Use(middleware.ServiceAuth(jwtManager))
	if cfg.RateLimit.Enabled && redisClient != nil {
		calc.Use(middleware.CallerRateLimit(redisClient, cfg.RateLimit.RequestsPerSecond, time.Second))
	}
	calc.Use(middleware.RequestSizeLimiter(maxCalculationBodySize))
	{
		calc.POST("/lines/preview", commissionH.Preview)
		calc.POST("/lines", commissionH.Persist)
		calc.GET("/lines", commissionH.GetLines)
		calc.POST("/lines/delete", commissionH.DeleteLines)
	}

	// 管理端接口
	admin := v1.Group("/admin")
	admin.Use(middleware.AdminAuth(jwtManager))
	admin.Use(opLogger.Log())
	{
		commission := admin.Group("/commission")
		{
			commission.GET("/rates", commissionAdminH.ListRates)
			commission.GET("/rates/:id", commissionAdminH.GetRate)
			commission.GET("/rules", commissionAdminH.ListRules)
			commission.GET("/rules/:id", commissionAdminH.GetRule)
			commission.GET("/lines", commissionAdminH.ListLines)
			commission.GET("/lines/:item_id", commissionAdminH.GetLine)

			write := commission.Group("")
			write.Use(middleware.RequireCommissionManager())
			{
				write.POST("/rates", commissionAdminH.CreateRate)
				write.PUT("/rates/:id", commissionAdminH.UpdateRate)
				write.PUT("/rates/:id/status", commissionAdminH.SetRateStatus)
				write.DELETE("/rates/:id", commissionAdminH.DeleteRate)
				write.POST("/rates/:id/rules/batch", commissionAdminH.BatchRules)
			}
		}

		system := admin.Group("")
		system.Use(middleware.RequireRoles(middleware.RoleSuperAdmin))
		{
			system.GET("/operation-logs", opLogH.List)
			system.GET("/operation-logs/:id", opLogH.Get)
		}
	}
}
