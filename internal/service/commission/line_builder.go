package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dumeirei/marketplace-backend/internal/common/utils"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

// 佣金明细描述前缀
const (
	itemDescriptionFormat     = "Commission: %s"
	shippingDescriptionFormat = "Shipping Commission: %s"
)

// LineDraft 待持久化的佣金明细
type LineDraft struct {
	ItemID           string          `json:"item_id"`
	Code             string          `json:"code"`
	Rate             decimal.Decimal `json:"rate"`
	Amount           decimal.Decimal `json:"amount"`
	CurrencyCode     string          `json:"currency_code"`
	CommissionRateID int64           `json:"commission_rate_id"`
	Description      string          `json:"description"`
	Target           string          `json:"target"`
}

// ToModel 转换为持久化模型
func (d *LineDraft) ToModel() *models.CommissionLine {
	return &models.CommissionLine{
		ItemID:           d.ItemID,
		Code:             d.Code,
		Rate:             d.Rate,
		Amount:           d.Amount,
		CurrencyCode:     d.CurrencyCode,
		CommissionRateID: d.CommissionRateID,
		Description:      d.Description,
	}
}

// PartitionedRates 按作用对象拆分后的费率，各自已按优先级排序
type PartitionedRates struct {
	Item     []*models.CommissionRate
	Shipping []*models.CommissionRate
}

// PartitionRates 拆分费率为商品行与配送两组，忽略停用费率
func PartitionRates(rates []*models.CommissionRate) PartitionedRates {
	var p PartitionedRates
	for _, rate := range SortByPriority(rates) {
		if rate == nil || !rate.IsEnabled {
			continue
		}
		switch rate.Target {
		case models.CommissionTargetItem:
			p.Item = append(p.Item, rate)
		case models.CommissionTargetShipping:
			p.Shipping = append(p.Shipping, rate)
		}
	}
	return p
}

// BuildCommissionLines 为一个计算上下文生成佣金明细草稿
//
// 输出顺序为商品行在前、配送方式在后，各自保持输入顺序。未命中费率的对象不产生明细。
func BuildCommissionLines(calc *CalculationContext, rates PartitionedRates) ([]LineDraft, error) {
	drafts := make([]LineDraft, 0, len(calc.Items)+len(calc.ShippingMethods))
	currency := utils.NormalizeCode(calc.CurrencyCode)

	for _, item := range calc.Items {
		rate := MatchRate(rates.Item, ProductTarget(item.Product), currency)
		if rate == nil {
			continue
		}
		draft, err := newDraft(rate, item.ID, item.Subtotal, item.TaxTotal, currency, itemDescriptionFormat)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", item.ID, err)
		}
		drafts = append(drafts, draft)
	}

	for _, method := range calc.ShippingMethods {
		rate := MatchRate(rates.Shipping, ShippingTarget(method.ShippingOption), currency)
		if rate == nil {
			continue
		}
		draft, err := newDraft(rate, method.ID, method.Subtotal, method.TaxTotal, currency, shippingDescriptionFormat)
		if err != nil {
			return nil, fmt.Errorf("shipping method %s: %w", method.ID, err)
		}
		drafts = append(drafts, draft)
	}

	return drafts, nil
}

func newDraft(rate *models.CommissionRate, itemID string, subtotal, taxTotal decimal.Decimal, currency, descriptionFormat string) (LineDraft, error) {
	amount, err := ComputeAmount(rate, subtotal, taxTotal, currency)
	if err != nil {
		return LineDraft{}, err
	}
	return LineDraft{
		ItemID:           itemID,
		Code:             rate.Code,
		Rate:             rate.Value,
		Amount:           amount,
		CurrencyCode:     currency,
		CommissionRateID: rate.ID,
		Description:      fmt.Sprintf(descriptionFormat, rate.Name),
		Target:           rate.Target,
	}, nil
}
