package commission

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-backend/internal/common/cache"
	"github.com/dumeirei/marketplace-backend/internal/common/logger"
	"github.com/dumeirei/marketplace-backend/internal/common/metrics"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

// RateSource 启用费率的读取来源
// 返回值须按优先级降序、ID 升序排列，并带出规则
type RateSource interface {
	ListEnabled(ctx context.Context, target string) ([]*models.CommissionRate, error)
}

// RateCacheInvalidator 费率变更后使缓存失效
type RateCacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

const rateCacheName = "commission_rates"

// CachedRateSource 带 Redis 缓存的费率来源，按 target 缓存启用费率快照
type CachedRateSource struct {
	source RateSource
	store  *cache.JSONStore
	ttl    time.Duration
}

// NewCachedRateSource 创建带缓存的费率来源
func NewCachedRateSource(source RateSource, store *cache.JSONStore, ttl time.Duration) *CachedRateSource {
	return &CachedRateSource{
		source: source,
		store:  store,
		ttl:    ttl,
	}
}

func rateCacheKey(target string) string {
	if target == "" {
		target = "all"
	}
	return cache.BuildKey(cache.KeyPrefixCommissionRates, target)
}

// ListEnabled 优先读缓存，缓存异常时回源
func (s *CachedRateSource) ListEnabled(ctx context.Context, target string) ([]*models.CommissionRate, error) {
	key := rateCacheKey(target)

	var rates []*models.CommissionRate
	hit, err := s.store.Get(ctx, key, &rates)
	if err != nil {
		logger.Warn("读取费率缓存失败", zap.String("key", key), zap.Error(err))
	}
	if hit {
		metrics.GetMetrics().RecordCacheHit(rateCacheName)
		return rates, nil
	}
	metrics.GetMetrics().RecordCacheMiss(rateCacheName)

	rates, err = s.source.ListEnabled(ctx, target)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, key, rates, s.ttl); err != nil {
		logger.Warn("写入费率缓存失败", zap.String("key", key), zap.Error(err))
	}
	return rates, nil
}

// Invalidate 清除全部费率快照
func (s *CachedRateSource) Invalidate(ctx context.Context) error {
	n, err := s.store.DeleteByPrefix(ctx, cache.KeyPrefixCommissionRates)
	if err != nil {
		return err
	}
	logger.Debug("费率缓存已清除", zap.Int("keys", n))
	return nil
}
