package commission

import (
	"github.com/shopspring/decimal"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ComputeAmount 按费率计算佣金金额
//
// 基数为 subtotal（include_tax 时加上 taxTotal）。百分比费率取 基数*value/100，
// 固定费率直接取 value。低于 min_amount 时取 min_amount，最后按币种最小单位舍入一次。
// 不设上限。
func ComputeAmount(rate *models.CommissionRate, subtotal, taxTotal decimal.Decimal, currencyCode string) (decimal.Decimal, error) {
	if rate == nil {
		return decimal.Zero, errors.ErrCommissionRateInvalid
	}
	if subtotal.IsNegative() {
		return decimal.Zero, errors.ErrInvalidCommissionAmount.WithMessage("小计金额不能为负")
	}
	if taxTotal.IsNegative() {
		return decimal.Zero, errors.ErrInvalidCommissionAmount.WithMessage("税额不能为负")
	}
	if rate.Value.IsNegative() {
		return decimal.Zero, errors.ErrInvalidCommissionAmount.WithMessage("费率值不能为负")
	}
	if rate.MinAmount.Valid && rate.MinAmount.Decimal.IsNegative() {
		return decimal.Zero, errors.ErrInvalidCommissionAmount.WithMessage("最低佣金不能为负")
	}

	var amount decimal.Decimal
	switch rate.Type {
	case models.CommissionRateTypePercentage:
		base := subtotal
		if rate.IncludeTax {
			base = base.Add(taxTotal)
		}
		amount = base.Mul(rate.Value).Div(hundred)
	case models.CommissionRateTypeFlat:
		amount = rate.Value
	default:
		return decimal.Zero, errors.ErrCommissionRateInvalid.WithMessage("未知的费率类型: " + rate.Type)
	}

	if rate.MinAmount.Valid && amount.LessThan(rate.MinAmount.Decimal) {
		amount = rate.MinAmount.Decimal
	}

	return RoundToMinorUnit(amount, currencyCode), nil
}
