package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-backend/internal/common/config"
)

// setupMiniRedis 创建 miniredis 测试实例
func setupMiniRedis(t *testing.T) *miniredis.Miniredis {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// setupTestStore 创建测试 JSONStore
func setupTestStore(t *testing.T, s *miniredis.Miniredis) *JSONStore {
	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewJSONStore(client)
}

// ==================== Init 测试 ====================

func TestInit(t *testing.T) {
	t.Run("连接成功", func(t *testing.T) {
		s := setupMiniRedis(t)
		client, err := Init(&config.RedisConfig{
			Host:        s.Host(),
			Port:        s.Server().Addr().Port,
			PoolSize:    4,
			DialTimeout: 1,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
		got, err := s.Get("k")
		assert.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("连接失败", func(t *testing.T) {
		client, err := Init(&config.RedisConfig{Host: "127.0.0.1", Port: 1, DialTimeout: 1})
		require.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "127.0.0.1:1")
	})
}

// ==================== JSONStore 测试 ====================

func TestJSONStore_SetAndGet(t *testing.T) {
	s := setupMiniRedis(t)
	store := setupTestStore(t, s)
	ctx := context.Background()

	type snapshot struct {
		Code  string   `json:"code"`
		Value string   `json:"value"`
		Rules []string `json:"rules"`
	}

	in := snapshot{Code: "default", Value: "10", Rules: []string{"seller"}}
	require.NoError(t, store.Set(ctx, "k1", in, time.Minute))

	var out snapshot
	found, err := store.Get(ctx, "k1", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
	assert.Equal(t, time.Minute, s.TTL("k1"))
}

func TestJSONStore_GetMiss(t *testing.T) {
	s := setupMiniRedis(t)
	store := setupTestStore(t, s)

	var out map[string]string
	found, err := store.Get(context.Background(), "missing", &out)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestJSONStore_GetCorrupted(t *testing.T) {
	s := setupMiniRedis(t)
	store := setupTestStore(t, s)
	require.NoError(t, s.Set("bad", "{not-json"))

	var out map[string]string
	found, err := store.Get(context.Background(), "bad", &out)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestJSONStore_SetMarshalError(t *testing.T) {
	s := setupMiniRedis(t)
	store := setupTestStore(t, s)

	err := store.Set(context.Background(), "chan", make(chan int), time.Minute)
	assert.Error(t, err)
	assert.False(t, s.Exists("chan"))
}

func TestJSONStore_Delete(t *testing.T) {
	s := setupMiniRedis(t)
	store := setupTestStore(t, s)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", 1, 0))
	require.NoError(t, store.Set(ctx, "b", 2, 0))

	require.NoError(t, store.Delete(ctx, "a", "b"))
	assert.False(t, s.Exists("a"))
	assert.False(t, s.Exists("b"))

	// 空键列表
	assert.NoError(t, store.Delete(ctx))
}

func TestJSONStore_DeleteByPrefix(t *testing.T) {
	s := setupMiniRedis(t)
	store := setupTestStore(t, s)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, BuildKey(KeyPrefixCommissionRates, "item"), []int{1}, 0))
	require.NoError(t, store.Set(ctx, BuildKey(KeyPrefixCommissionRates, "shipping"), []int{2}, 0))
	require.NoError(t, store.Set(ctx, "other:key", 3, 0))

	n, err := store.DeleteByPrefix(ctx, KeyPrefixCommissionRates)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.False(t, s.Exists("commission:rates:item"))
	assert.False(t, s.Exists("commission:rates:shipping"))
	assert.True(t, s.Exists("other:key"))

	t.Run("超过单批数量", func(t *testing.T) {
		for i := 0; i < scanBatch*2+5; i++ {
			require.NoError(t, s.Set(fmt.Sprintf("%sk%d", KeyPrefixCommissionRates, i), "1"))
		}
		n, err := store.DeleteByPrefix(ctx, KeyPrefixCommissionRates)
		require.NoError(t, err)
		assert.Equal(t, scanBatch*2+5, n)
		assert.Len(t, s.Keys(), 1)
	})

	t.Run("无匹配键", func(t *testing.T) {
		n, err := store.DeleteByPrefix(ctx, "none:")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

// ==================== BuildKey 测试 ====================

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		parts    []string
		expected string
	}{
		{"commission rates by target", KeyPrefixCommissionRates, []string{"item"}, "commission:rates:item"},
		{"rate limit key", KeyPrefixRateLimit, []string{"ip", "10.0.0.1"}, "ratelimit:ip:10.0.0.1"},
		{"prefix only", KeyPrefixCommissionRates, nil, "commission:rates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildKey(tt.prefix, tt.parts...))
		})
	}
}
