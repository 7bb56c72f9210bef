// Package main 是应用程序入口
//
// @title Marketplace Commission API
// @version 1.0
// @description 市场佣金费率管理与佣金明细计算服务
// @BasePath /
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-backend/internal/common/cache"
	"github.com/dumeirei/marketplace-backend/internal/common/config"
	"github.com/dumeirei/marketplace-backend/internal/common/database"
	"github.com/dumeirei/marketplace-backend/internal/common/logger"
	"github.com/dumeirei/marketplace-backend/internal/common/metrics"
	"github.com/dumeirei/marketplace-backend/internal/common/tracing"
	"github.com/dumeirei/marketplace-backend/internal/common/validation"
	"github.com/dumeirei/marketplace-backend/internal/scheduler"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Logger, zap.String("service", cfg.Server.Name)); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log := logger.GetLogger()

	log.Info("Starting Marketplace Commission Service",
		zap.String("version", version),
		zap.String("env", cfg.Server.Mode),
	)

	// 指标须在任何 GetMetrics 调用之前初始化
	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Server.Name)
	}

	// 初始化链路追踪
	tracer, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}

	// 注册自定义参数校验
	if err := validation.Register(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	// 初始化数据库连接
	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	// 初始化 Redis 连接
	redisClient, err := cache.Init(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Redis connected successfully")

	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	svcs := buildServices(cfg, db, redisClient)

	// 创建 Gin 引擎并设置路由
	engine := gin.New()
	setupRouter(engine, cfg, log, db, redisClient, svcs)

	// 定时任务
	sched := scheduler.NewScheduler()
	tasks := scheduler.NewTaskHandler(svcs.opLogRepo, svcs.rates, cfg.Business.Commission.OperationLogRetentionDays)
	tasks.Register(sched, time.Duration(cfg.Business.Commission.RateCacheWarmInterval)*time.Second)
	sched.Start()

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// 创建超时上下文用于优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	sched.Stop()

	if err := tracer.Shutdown(ctx); err != nil {
		log.Warn("Failed to shutdown tracer", zap.Error(err))
	}

	if err := database.Close(db); err != nil {
		log.Warn("Failed to close database", zap.Error(err))
	}

	log.Info("Server exited")
}
