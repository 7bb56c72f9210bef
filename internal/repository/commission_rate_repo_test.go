package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/marketplace-backend/internal/models"
)

func setupCommissionTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.CommissionRate{},
		&models.CommissionRule{},
		&models.CommissionLine{},
	))
	return db
}

func newTestRate(code, target string, priority int, rules ...models.CommissionRule) *models.CommissionRate {
	return &models.CommissionRate{
		Code:      code,
		Name:      strings.ToUpper(code),
		Type:      models.CommissionRateTypePercentage,
		Target:    target,
		Value:     decimal.NewFromInt(10),
		IsEnabled: true,
		Priority:  priority,
		Rules:     rules,
	}
}

// ==================== 费率仓储测试 ====================

func TestCommissionRateRepository_CreateAndGet(t *testing.T) {
	db := setupCommissionTestDB(t)
	repo := NewCommissionRateRepository(db)
	ctx := context.Background()

	rate := newTestRate("seller-a", models.CommissionTargetItem, 5,
		models.CommissionRule{Reference: models.ReferenceSeller, ReferenceID: "sel_1"},
		models.CommissionRule{Reference: models.ReferenceProductType, ReferenceID: "ptyp_1"},
	)
	rate.MinAmount = decimal.NewNullDecimal(decimal.RequireFromString("3.50"))

	require.NoError(t, repo.Create(ctx, rate))
	assert.NotZero(t, rate.ID)

	got, err := repo.GetByID(ctx, rate.ID)
	require.NoError(t, err)
	assert.Equal(t, "seller-a", got.Code)
	assert.True(t, got.Value.Equal(decimal.NewFromInt(10)))
	require.True(t, got.MinAmount.Valid)
	assert.Equal(t, "3.50", got.MinAmount.Decimal.StringFixed(2))
	require.Len(t, got.Rules, 2)
	assert.Equal(t, models.ReferenceSeller, got.Rules[0].Reference)
	assert.Equal(t, rate.ID, got.Rules[0].CommissionRateID)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCommissionRateRepository_ExistsByCode(t *testing.T) {
	db := setupCommissionTestDB(t)
	repo := NewCommissionRateRepository(db)
	ctx := context.Background()

	rate := newTestRate("default-item", models.CommissionTargetItem, 0)
	require.NoError(t, repo.Create(ctx, rate))

	exists, err := repo.ExistsByCode(ctx, "default-item", 0)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByCode(ctx, "default-item", rate.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsByCode(ctx, "other", 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCommissionRateRepository_ListEnabled(t *testing.T) {
	db := setupCommissionTestDB(t)
	repo := NewCommissionRateRepository(db)
	ctx := context.Background()

	low := newTestRate("low", models.CommissionTargetItem, 1)
	high := newTestRate("high", models.CommissionTargetItem, 10,
		models.CommissionRule{Reference: models.ReferenceSeller, ReferenceID: "sel_1"})
	tieA := newTestRate("tie-a", models.CommissionTargetItem, 5)
	tieB := newTestRate("tie-b", models.CommissionTargetItem, 5)
	shipping := newTestRate("ship", models.CommissionTargetShipping, 3)
	disabled := newTestRate("disabled", models.CommissionTargetItem, 100)
	disabled.IsEnabled = false

	for _, r := range []*models.CommissionRate{low, high, tieA, tieB, shipping, disabled} {
		require.NoError(t, repo.Create(ctx, r))
	}

	t.Run("按优先级降序且同优先级按 ID 升序", func(t *testing.T) {
		rates, err := repo.ListEnabled(ctx, models.CommissionTargetItem)
		require.NoError(t, err)

		codes := make([]string, 0, len(rates))
		for _, r := range rates {
			codes = append(codes, r.Code)
		}
		assert.Equal(t, []string{"high", "tie-a", "tie-b", "low"}, codes)
		require.Len(t, rates[0].Rules, 1)
	})

	t.Run("不限作用对象", func(t *testing.T) {
		rates, err := repo.ListEnabled(ctx, "")
		require.NoError(t, err)
		assert.Len(t, rates, 5)
	})
}

func TestCommissionRateRepository_List(t *testing.T) {
	db := setupCommissionTestDB(t)
	repo := NewCommissionRateRepository(db)
	ctx := context.Background()

	eur := "eur"
	a := newTestRate("a", models.CommissionTargetItem, 1)
	a.CurrencyCode = &eur
	b := newTestRate("b", models.CommissionTargetItem, 2)
	b.IsEnabled = false
	c := newTestRate("c", models.CommissionTargetShipping, 3)
	for _, r := range []*models.CommissionRate{a, b, c} {
		require.NoError(t, repo.Create(ctx, r))
	}

	rates, total, err := repo.List(ctx, nil, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, rates, 2)
	assert.Equal(t, "c", rates[0].Code)

	enabled := false
	rates, total, err = repo.List(ctx, &CommissionRateFilter{IsEnabled: &enabled}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "b", rates[0].Code)

	rates, total, err = repo.List(ctx, &CommissionRateFilter{CurrencyCode: "eur", Target: models.CommissionTargetItem}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "a", rates[0].Code)
}

func TestCommissionRateRepository_UpdateAndDelete(t *testing.T) {
	db := setupCommissionTestDB(t)
	repo := NewCommissionRateRepository(db)
	ctx := context.Background()

	rate := newTestRate("rate", models.CommissionTargetItem, 1,
		models.CommissionRule{Reference: models.ReferenceProduct, ReferenceID: "prod_1"})
	require.NoError(t, repo.Create(ctx, rate))

	rate.Name = "Renamed"
	rate.IsEnabled = false
	rate.Rules = nil
	require.NoError(t, repo.Update(ctx, rate))

	got, err := repo.GetByID(ctx, rate.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.False(t, got.IsEnabled)
	assert.Len(t, got.Rules, 1, "更新费率不应影响规则")

	require.NoError(t, repo.UpdateFields(ctx, rate.ID, map[string]interface{}{"is_enabled": true}))
	got, err = repo.GetByID(ctx, rate.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEnabled)

	assert.ErrorIs(t, repo.UpdateFields(ctx, 9999, map[string]interface{}{"is_enabled": true}), gorm.ErrRecordNotFound)

	require.NoError(t, repo.Delete(ctx, rate.ID))
	_, err = repo.GetByID(ctx, rate.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var ruleCount int64
	require.NoError(t, db.Model(&models.CommissionRule{}).Count(&ruleCount).Error)
	assert.Zero(t, ruleCount)

	assert.ErrorIs(t, repo.Delete(ctx, rate.ID), gorm.ErrRecordNotFound)
}

// ==================== 规则仓储测试 ====================

func TestCommissionRuleRepository(t *testing.T) {
	db := setupCommissionTestDB(t)
	rateRepo := NewCommissionRateRepository(db)
	repo := NewCommissionRuleRepository(db)
	ctx := context.Background()

	rate := newTestRate("rate", models.CommissionTargetItem, 1)
	require.NoError(t, rateRepo.Create(ctx, rate))

	rules := []*models.CommissionRule{
		{CommissionRateID: rate.ID, Reference: models.ReferenceSeller, ReferenceID: "sel_1"},
		{CommissionRateID: rate.ID, Reference: models.ReferenceSellerProductCategory, ReferenceID: models.JoinReferenceIDs("sel_1", "pcat_1")},
	}
	require.NoError(t, repo.CreateBatch(ctx, rules))
	assert.NotZero(t, rules[0].ID)
	assert.NotZero(t, rules[1].ID)

	t.Run("查询", func(t *testing.T) {
		got, err := repo.GetByIDs(ctx, []int64{rules[1].ID, rules[0].ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, rules[0].ID, got[0].ID)

		list, total, err := repo.List(ctx, &CommissionRuleFilter{Reference: models.ReferenceSeller}, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "sel_1", list[0].ReferenceID)

		count, err := repo.CountByRateID(ctx, rate.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("删除后按原 ID 恢复", func(t *testing.T) {
		snapshot, err := repo.GetByIDs(ctx, []int64{rules[0].ID})
		require.NoError(t, err)

		n, err := repo.DeleteByIDs(ctx, []int64{rules[0].ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = repo.GetByID(ctx, rules[0].ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		require.NoError(t, repo.CreateBatch(ctx, snapshot))
		restored, err := repo.GetByID(ctx, rules[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "sel_1", restored.ReferenceID)
	})

	t.Run("空列表", func(t *testing.T) {
		n, err := repo.DeleteByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		require.NoError(t, repo.CreateBatch(ctx, nil))
	})
}
