package commission

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/common/utils"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

func testContext() *CalculationContext {
	return &CalculationContext{
		CurrencyCode: "USD",
		Items: []LineItem{
			{ID: "item_1", Subtotal: d("100.00"), TaxTotal: d("20.00"), Product: testProduct()},
			{ID: "item_2", Subtotal: d("50.00"), TaxTotal: d("5.00"), Product: ProductSnapshot{
				ID: "prod_2", Seller: &SellerSnapshot{ID: "sel_999"},
			}},
		},
		ShippingMethods: []ShippingMethod{
			{ID: "sm_1", Subtotal: d("10.00"), TaxTotal: d("1.00"), ShippingOption: ShippingOptionSnapshot{ShippingOptionTypeID: "sotype_express"}},
			{ID: "sm_2", Subtotal: d("8.00"), TaxTotal: d("0"), ShippingOption: ShippingOptionSnapshot{ShippingOptionTypeID: "sotype_standard"}},
		},
	}
}

func testRates() []*models.CommissionRate {
	seller := itemRate(1, 5, rule(models.ReferenceSeller, "sel_123"))
	seller.Name = "Seller 123"
	seller.Code = "seller-123"

	def := itemRate(2, 1)
	def.Name = "Default"
	def.Code = "default"
	def.Value = d("5")

	express := shippingRate(3, 1, rule(models.ReferenceShippingOptionType, "sotype_express"))
	express.Name = "Express"
	express.Code = "express"
	express.Type = models.CommissionRateTypeFlat
	express.Value = d("1.50")

	return []*models.CommissionRate{def, seller, express}
}

// ==================== 佣金明细构建测试 ====================

func TestPartitionRates(t *testing.T) {
	disabled := itemRate(9, 100)
	disabled.IsEnabled = false

	p := PartitionRates(append(testRates(), disabled, nil))
	require.Len(t, p.Item, 2)
	require.Len(t, p.Shipping, 1)
	assert.Equal(t, int64(1), p.Item[0].ID, "按优先级降序")
	assert.Equal(t, int64(3), p.Shipping[0].ID)
}

func TestBuildCommissionLines(t *testing.T) {
	drafts, err := BuildCommissionLines(testContext(), PartitionRates(testRates()))
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	// 商品行在前，配送方式在后
	assert.Equal(t, "item_1", drafts[0].ItemID)
	assert.Equal(t, "seller-123", drafts[0].Code)
	assert.Equal(t, int64(1), drafts[0].CommissionRateID)
	assert.Equal(t, "Commission: Seller 123", drafts[0].Description)
	assert.Equal(t, "10.00", drafts[0].Amount.StringFixed(2))
	assert.True(t, drafts[0].Rate.Equal(d("10")))
	assert.Equal(t, "usd", drafts[0].CurrencyCode)
	assert.Equal(t, models.CommissionTargetItem, drafts[0].Target)

	assert.Equal(t, "item_2", drafts[1].ItemID)
	assert.Equal(t, "default", drafts[1].Code)
	assert.Equal(t, "2.50", drafts[1].Amount.StringFixed(2))

	assert.Equal(t, "sm_1", drafts[2].ItemID)
	assert.Equal(t, "Shipping Commission: Express", drafts[2].Description)
	assert.Equal(t, "1.50", drafts[2].Amount.StringFixed(2))
	assert.Equal(t, models.CommissionTargetShipping, drafts[2].Target)
}

func TestBuildCommissionLines_Deterministic(t *testing.T) {
	rates := PartitionRates(testRates())

	first, err := BuildCommissionLines(testContext(), rates)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := BuildCommissionLines(testContext(), rates)
		require.NoError(t, err)
		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(firstJSON), string(againJSON))
	}
}

func TestBuildCommissionLines_AtMostOnePerTarget(t *testing.T) {
	// 多个费率同时命中同一商品行
	rates := []*models.CommissionRate{
		itemRate(1, 3),
		itemRate(2, 3, rule(models.ReferenceProduct, "prod_1")),
		itemRate(3, 3, rule(models.ReferenceSeller, "sel_123")),
	}

	drafts, err := BuildCommissionLines(testContext(), PartitionRates(rates))
	require.NoError(t, err)

	seen := map[string]int{}
	for _, d := range drafts {
		seen[d.ItemID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
	assert.Equal(t, int64(1), drafts[0].CommissionRateID, "同优先级按输入顺序")
}

func TestBuildCommissionLines_CurrencyScopedRateSkipped(t *testing.T) {
	eur := itemRate(1, 10, rule(models.ReferenceSeller, "sel_123"))
	eur.CurrencyCode = utils.StringPtr("eur")

	calc := &CalculationContext{
		CurrencyCode: "usd",
		Items:        []LineItem{{ID: "item_1", Subtotal: d("100"), Product: testProduct()}},
	}

	drafts, err := BuildCommissionLines(calc, PartitionRates([]*models.CommissionRate{eur}))
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestBuildCommissionLines_InvalidAmount(t *testing.T) {
	calc := &CalculationContext{
		CurrencyCode: "usd",
		Items:        []LineItem{{ID: "item_1", Subtotal: d("-1"), Product: testProduct()}},
	}

	_, err := BuildCommissionLines(calc, PartitionRates([]*models.CommissionRate{itemRate(1, 1)}))
	assert.ErrorIs(t, err, errors.ErrInvalidCommissionAmount)
}

func TestBuildCommissionLines_EmptyContext(t *testing.T) {
	drafts, err := BuildCommissionLines(&CalculationContext{CurrencyCode: "usd"}, PartitionRates(testRates()))
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestLineDraft_ToModel(t *testing.T) {
	draft := LineDraft{
		ItemID:           "item_1",
		Code:             "c",
		Rate:             decimal.NewFromInt(10),
		Amount:           d("1.23"),
		CurrencyCode:     "usd",
		CommissionRateID: 4,
		Description:      "Commission: C",
	}
	line := draft.ToModel()
	assert.Equal(t, "item_1", line.ItemID)
	assert.Equal(t, int64(4), line.CommissionRateID)
	assert.True(t, line.Amount.Equal(d("1.23")))
	assert.Zero(t, line.ID)
}
