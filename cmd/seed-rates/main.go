// Package main 从 YAML 费率包导入佣金费率
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-backend/internal/common/cache"
	"github.com/dumeirei/marketplace-backend/internal/common/config"
	"github.com/dumeirei/marketplace-backend/internal/common/database"
	"github.com/dumeirei/marketplace-backend/internal/common/logger"
	"github.com/dumeirei/marketplace-backend/internal/repository"
	adminService "github.com/dumeirei/marketplace-backend/internal/service/admin"
	commissionService "github.com/dumeirei/marketplace-backend/internal/service/commission"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	packPath := flag.String("file", "configs/rates.example.yaml", "费率包文件")
	skipExisting := flag.Bool("skip-existing", true, "编码已存在时跳过")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.GetLogger()

	pack, err := LoadRatePack(*packPath)
	if err != nil {
		log.Fatal("Failed to load rate pack", zap.String("file", *packPath), zap.Error(err))
	}

	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	rateRepo := repository.NewCommissionRateRepository(db)
	var invalidator commissionService.RateCacheInvalidator
	if cfg.Business.Commission.RateCacheEnabled {
		if redisClient, err := cache.Init(&cfg.Redis); err == nil {
			defer redisClient.Close()
			invalidator = commissionService.NewCachedRateSource(rateRepo, cache.NewJSONStore(redisClient), cfg.Business.Commission.RateCacheDuration())
		} else {
			log.Warn("Redis unavailable, rate cache will expire by TTL", zap.Error(err))
		}
	}
	svc := adminService.NewCommissionRateAdminService(rateRepo, repository.NewCommissionRuleRepository(db), invalidator)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := Seed(ctx, svc, pack, *skipExisting)
	if err != nil {
		log.Fatal("Failed to seed rates", zap.Error(err))
	}
	log.Info("Rate pack imported",
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
}
