package commission

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-backend/internal/common/cache"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

// countingSource 记录读取次数的费率来源
type countingSource struct {
	rates []*models.CommissionRate
	calls int
	err   error
}

func (s *countingSource) ListEnabled(_ context.Context, target string) ([]*models.CommissionRate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.CommissionRate
	for _, r := range s.rates {
		if target == "" || r.Target == target {
			out = append(out, r)
		}
	}
	return out, nil
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// ==================== 费率缓存测试 ====================

func TestCachedRateSource_CachesByTarget(t *testing.T) {
	mr, client := setupRedis(t)
	source := &countingSource{rates: testRates()}
	cached := NewCachedRateSource(source, cache.NewJSONStore(client), time.Minute)
	ctx := context.Background()

	first, err := cached.ListEnabled(ctx, "")
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, 1, source.calls)
	assert.True(t, mr.Exists("commission:rates:all"))

	second, err := cached.ListEnabled(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls, "命中缓存时不回源")
	require.Len(t, second, 3)
	assert.Equal(t, first[1].Code, second[1].Code)
	assert.True(t, first[1].Value.Equal(second[1].Value))
	require.Len(t, second[1].Rules, 1)
	assert.Equal(t, models.ReferenceSeller, second[1].Rules[0].Reference)

	shipping, err := cached.ListEnabled(ctx, models.CommissionTargetShipping)
	require.NoError(t, err)
	assert.Len(t, shipping, 1)
	assert.Equal(t, 2, source.calls)
}

func TestCachedRateSource_TTLAndInvalidate(t *testing.T) {
	mr, client := setupRedis(t)
	source := &countingSource{rates: testRates()}
	cached := NewCachedRateSource(source, cache.NewJSONStore(client), 30*time.Second)
	ctx := context.Background()

	_, err := cached.ListEnabled(ctx, models.CommissionTargetItem)
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)
	_, err = cached.ListEnabled(ctx, models.CommissionTargetItem)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls, "过期后回源")

	require.NoError(t, cached.Invalidate(ctx))
	assert.False(t, mr.Exists("commission:rates:item"))

	_, err = cached.ListEnabled(ctx, models.CommissionTargetItem)
	require.NoError(t, err)
	assert.Equal(t, 3, source.calls, "失效后回源")
}

func TestCachedRateSource_RedisDownFallsBack(t *testing.T) {
	mr, client := setupRedis(t)
	source := &countingSource{rates: testRates()}
	cached := NewCachedRateSource(source, cache.NewJSONStore(client), time.Minute)
	mr.Close()

	rates, err := cached.ListEnabled(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, rates, 3)
	assert.Equal(t, 1, source.calls)
}

func TestCachedRateSource_SourceError(t *testing.T) {
	_, client := setupRedis(t)
	source := &countingSource{err: assert.AnError}
	cached := NewCachedRateSource(source, cache.NewJSONStore(client), time.Minute)

	_, err := cached.ListEnabled(context.Background(), "")
	assert.ErrorIs(t, err, assert.AnError)
}
