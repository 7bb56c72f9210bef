package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/marketplace-backend/internal/models"
	"github.com/dumeirei/marketplace-backend/internal/repository"
)

type stubRateSource struct {
	calls atomic.Int32
	err   error
}

func (s *stubRateSource) ListEnabled(_ context.Context, _ string) ([]*models.CommissionRate, error) {
	s.calls.Add(1)
	return []*models.CommissionRate{{ID: 1}}, s.err
}

func setupTaskTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.OperationLog{}))
	return db
}

// ==================== 调度器测试 ====================

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	s.AddTask("count", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	s.AddTask("disabled", 0, func(ctx context.Context) error {
		t.Fatal("不应执行")
		return nil
	})
	require.Equal(t, 1, s.Len())

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestScheduler_TaskErrorKeepsRunning(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	s.AddTask("failing", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return assert.AnError
	})

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestScheduler_TaskPanicRecovered(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	s.AddTask("panicking", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		panic("boom")
	})

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 10*time.Millisecond)
	s.Stop()
}

// ==================== 定时任务测试 ====================

func TestTaskHandler_PurgeOperationLogs(t *testing.T) {
	db := setupTaskTestDB(t)
	repo := repository.NewOperationLogRepository(db)
	ctx := context.Background()

	old := &models.OperationLog{AdminID: 1, Module: models.OperationModuleCommissionRate, Action: "create", CreatedAt: time.Now().AddDate(0, 0, -100)}
	recent := &models.OperationLog{AdminID: 1, Module: models.OperationModuleCommissionRate, Action: "update", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, recent))

	t.Run("保留期为0不清理", func(t *testing.T) {
		h := NewTaskHandler(repo, &stubRateSource{}, 0)
		require.NoError(t, h.PurgeOperationLogs(ctx))
		_, total, err := repo.List(ctx, nil, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("清理过期日志", func(t *testing.T) {
		h := NewTaskHandler(repo, &stubRateSource{}, 90)
		require.NoError(t, h.PurgeOperationLogs(ctx))
		logs, total, err := repo.List(ctx, nil, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, recent.ID, logs[0].ID)
	})
}

func TestTaskHandler_WarmRateCache(t *testing.T) {
	source := &stubRateSource{}
	h := NewTaskHandler(nil, source, 0)

	require.NoError(t, h.WarmRateCache(context.Background()))
	assert.Equal(t, int32(1), source.calls.Load())

	source.err = assert.AnError
	assert.Error(t, h.WarmRateCache(context.Background()))
}

func TestTaskHandler_Register(t *testing.T) {
	s := NewScheduler()
	h := NewTaskHandler(nil, &stubRateSource{}, 90)

	h.Register(s, 0)
	assert.Equal(t, 1, s.Len(), "预热间隔为0时只注册日志清理")

	h.Register(s, time.Minute)
	assert.Equal(t, 3, s.Len())
}
