package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-backend/internal/common/utils"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

func rule(ref models.CommissionReference, id string) models.CommissionRule {
	return models.CommissionRule{Reference: ref, ReferenceID: id}
}

func itemRate(id int64, priority int, rules ...models.CommissionRule) *models.CommissionRate {
	return &models.CommissionRate{
		ID:        id,
		Code:      "rate_" + decimal.NewFromInt(id).String(),
		Name:      "Rate " + decimal.NewFromInt(id).String(),
		Type:      models.CommissionRateTypePercentage,
		Target:    models.CommissionTargetItem,
		Value:     decimal.NewFromInt(10),
		IsEnabled: true,
		Priority:  priority,
		Rules:     rules,
	}
}

func shippingRate(id int64, priority int, rules ...models.CommissionRule) *models.CommissionRate {
	r := itemRate(id, priority, rules...)
	r.Target = models.CommissionTargetShipping
	return r
}

func testProduct() ProductSnapshot {
	return ProductSnapshot{
		ID:           "prod_1",
		TypeID:       "ptyp_1",
		CollectionID: "pcol_1",
		Categories:   []CategorySnapshot{{ID: "pcat_1"}, {ID: "pcat_2"}},
		Seller:       &SellerSnapshot{ID: "sel_123", GroupIDs: []string{"sgrp_1"}},
	}
}

// ==================== 规则匹配测试 ====================

func TestMatchRule_References(t *testing.T) {
	target := ProductTarget(testProduct())
	shipping := ShippingTarget(ShippingOptionSnapshot{ShippingOptionTypeID: "sotype_express"})

	tests := []struct {
		name   string
		rule   models.CommissionRule
		target Target
		want   bool
	}{
		{"商品命中", rule(models.ReferenceProduct, "prod_1"), target, true},
		{"商品未命中", rule(models.ReferenceProduct, "prod_2"), target, false},
		{"商品类型", rule(models.ReferenceProductType, "ptyp_1"), target, true},
		{"商品集合", rule(models.ReferenceProductCollection, "pcol_1"), target, true},
		{"分类命中任一", rule(models.ReferenceProductCategory, "pcat_2"), target, true},
		{"分类未命中", rule(models.ReferenceProductCategory, "pcat_9"), target, false},
		{"卖家", rule(models.ReferenceSeller, "sel_123"), target, true},
		{"卖家分组", rule(models.ReferenceSellerGroup, "sgrp_1"), target, true},
		{"配送选项类型", rule(models.ReferenceShippingOptionType, "sotype_express"), shipping, true},
		{"配送选项类型不适用于商品", rule(models.ReferenceShippingOptionType, "sotype_express"), target, false},
		{"未知引用类型", rule("warehouse", "prod_1"), target, false},
		{"空引用 ID", rule(models.ReferenceProductType, ""), ProductTarget(ProductSnapshot{ID: "p"}), false},
		{"组合引用全部命中", rule(models.ReferenceSellerProductCategory, models.JoinReferenceIDs("sel_123", "pcat_1")), target, true},
		{"组合引用部分命中", rule(models.ReferenceSellerProductCategory, models.JoinReferenceIDs("sel_123", "pcat_9")), target, false},
		{"组合引用卖家+类型", rule(models.ReferenceSellerProductType, models.JoinReferenceIDs("sel_123", "ptyp_1")), target, true},
		{"组合引用分量数量不符", rule(models.ReferenceSellerProductType, "sel_123"), target, false},
		{"组合引用分量为空", rule(models.ReferenceSellerProductType, models.JoinReferenceIDs("sel_123", "")), target, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.rule
			assert.Equal(t, tt.want, MatchRule(&r, tt.target))
		})
	}
}

func TestMatchRule_NoSeller(t *testing.T) {
	target := ProductTarget(ProductSnapshot{ID: "prod_1"})
	r := rule(models.ReferenceSeller, "sel_123")
	assert.False(t, MatchRule(&r, target))
}

func TestMatchRate_PriorityRespected(t *testing.T) {
	target := ProductTarget(testProduct())

	low := itemRate(1, 5, rule(models.ReferenceSeller, "sel_123"))
	high := itemRate(2, 10, rule(models.ReferenceProduct, "prod_1"))

	got := MatchRate([]*models.CommissionRate{low, high}, target, "usd")
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)
}

func TestMatchRate_RuleBeatsLowerPriorityDefault(t *testing.T) {
	target := ProductTarget(testProduct())

	// 未排序的列表中默认费率在前
	def := itemRate(1, 1)
	seller := itemRate(2, 5, rule(models.ReferenceSeller, "sel_123"))

	got := MatchRate([]*models.CommissionRate{def, seller}, target, "usd")
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)

	// 卖家不符时回落到默认费率
	other := ProductTarget(ProductSnapshot{ID: "prod_x", Seller: &SellerSnapshot{ID: "sel_999"}})
	got = MatchRate([]*models.CommissionRate{def, seller}, other, "usd")
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
}

func TestMatchRate_HigherPriorityDefaultWins(t *testing.T) {
	target := ProductTarget(testProduct())

	def := itemRate(1, 10)
	seller := itemRate(2, 5, rule(models.ReferenceSeller, "sel_123"))

	got := MatchRate([]*models.CommissionRate{seller, def}, target, "usd")
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
}

func TestMatchRate_TieBreakKeepsInputOrder(t *testing.T) {
	target := ProductTarget(testProduct())

	first := itemRate(1, 5)
	second := itemRate(2, 5)

	got := MatchRate([]*models.CommissionRate{first, second}, target, "usd")
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
}

func TestMatchRate_CurrencyScoping(t *testing.T) {
	target := ProductTarget(testProduct())

	eurRate := itemRate(1, 10, rule(models.ReferenceSeller, "sel_123"))
	eurRate.CurrencyCode = utils.StringPtr("eur")

	t.Run("币种不符时跳过", func(t *testing.T) {
		assert.Nil(t, MatchRate([]*models.CommissionRate{eurRate}, target, "usd"))
	})

	t.Run("币种比较不区分大小写", func(t *testing.T) {
		got := MatchRate([]*models.CommissionRate{eurRate}, target, "EUR")
		require.NotNil(t, got)
		assert.Equal(t, int64(1), got.ID)
	})

	t.Run("跳过后继续匹配低优先级费率", func(t *testing.T) {
		def := itemRate(2, 1)
		got := MatchRate([]*models.CommissionRate{eurRate, def}, target, "usd")
		require.NotNil(t, got)
		assert.Equal(t, int64(2), got.ID)
	})
}

func TestMatchRate_NoMatch(t *testing.T) {
	target := ProductTarget(testProduct())

	assert.Nil(t, MatchRate(nil, target, "usd"))
	assert.Nil(t, MatchRate([]*models.CommissionRate{
		itemRate(1, 5, rule(models.ReferenceProduct, "prod_other")),
	}, target, "usd"))
}

func TestMatchRate_SkipsDisabledAndOtherTarget(t *testing.T) {
	target := ProductTarget(testProduct())

	disabled := itemRate(1, 10)
	disabled.IsEnabled = false
	ship := shippingRate(2, 10)

	assert.Nil(t, MatchRate([]*models.CommissionRate{disabled, ship}, target, "usd"))
}

func TestMatchRate_DoesNotReorderInput(t *testing.T) {
	rates := []*models.CommissionRate{itemRate(1, 1), itemRate(2, 9)}
	MatchRate(rates, ProductTarget(testProduct()), "usd")
	assert.Equal(t, int64(1), rates[0].ID)
}
