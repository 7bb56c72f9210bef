package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/models"
	"github.com/dumeirei/marketplace-backend/internal/repository"
)

// ==================== 操作日志查询测试 ====================

func TestOperationLogService(t *testing.T) {
	db := setupCommissionAdminTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.OperationLog{}))
	repo := repository.NewOperationLogRepository(db)
	svc := NewOperationLogService(repo)
	ctx := context.Background()

	rateID := int64(7)
	target := "commission_rate"
	require.NoError(t, repo.Create(ctx, &models.OperationLog{AdminID: 1, Module: models.OperationModuleCommissionRate, Action: "create", TargetType: &target, TargetID: &rateID}))
	require.NoError(t, repo.Create(ctx, &models.OperationLog{AdminID: 2, Module: models.OperationModuleCommissionRule, Action: "batch"}))

	t.Run("按模块筛选", func(t *testing.T) {
		logs, total, err := svc.List(ctx, &OperationLogQuery{Module: models.OperationModuleCommissionRate}, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, int64(1), logs[0].AdminID)
	})

	t.Run("按目标筛选", func(t *testing.T) {
		_, total, err := svc.List(ctx, &OperationLogQuery{TargetType: target, TargetID: rateID}, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("时间范围非法", func(t *testing.T) {
		start := time.Now()
		end := start.Add(-time.Hour)
		_, _, err := svc.List(ctx, &OperationLogQuery{StartTime: &start, EndTime: &end}, 0, 10)
		assert.ErrorIs(t, err, errors.ErrInvalidParams)
	})

	t.Run("详情", func(t *testing.T) {
		logs, _, err := svc.List(ctx, nil, 0, 10)
		require.NoError(t, err)
		require.Len(t, logs, 2)

		got, err := svc.Get(ctx, logs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "batch", got.Action)

		_, err = svc.Get(ctx, 9999)
		assert.ErrorIs(t, err, errors.ErrResourceNotFound)
	})
}
