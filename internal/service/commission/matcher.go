package commission

import (
	"sort"
	"strings"

	"github.com/dumeirei/marketplace-backend/internal/common/utils"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

// SortByPriority 按优先级降序稳定排序，同优先级保持原有顺序（即 ID 升序）
// 返回新切片，不修改入参
func SortByPriority(rates []*models.CommissionRate) []*models.CommissionRate {
	sorted := make([]*models.CommissionRate, len(rates))
	copy(sorted, rates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}

// MatchRate 从候选费率中选出适用于 target 的唯一费率，无匹配返回 nil
//
// 候选按优先级降序依次检查：币种不符的跳过；无规则的默认费率直接命中；
// 否则任一规则命中即选中该费率。
func MatchRate(candidates []*models.CommissionRate, target Target, currencyCode string) *models.CommissionRate {
	currency := utils.NormalizeCode(currencyCode)

	for _, rate := range SortByPriority(candidates) {
		if rate == nil || !rate.IsEnabled {
			continue
		}
		if rate.Target != "" && target.Kind != "" && rate.Target != target.Kind {
			continue
		}
		if rate.CurrencyCode != nil && utils.NormalizeCode(*rate.CurrencyCode) != "" &&
			utils.NormalizeCode(*rate.CurrencyCode) != currency {
			continue
		}

		if rate.IsDefault() {
			return rate
		}

		for i := range rate.Rules {
			if MatchRule(&rate.Rules[i], target) {
				return rate
			}
		}
	}

	return nil
}

// MatchRule 判断单条规则是否命中
func MatchRule(rule *models.CommissionRule, target Target) bool {
	if !rule.Reference.IsCombined() {
		return matchReference(rule.Reference, rule.ReferenceID, target)
	}

	components := rule.Reference.Components()
	ids := strings.Split(rule.ReferenceID, models.CombinedReferenceIDSeparator)
	if len(ids) != len(components) {
		return false
	}
	for i, ref := range components {
		if ref.IsCombined() || !matchReference(ref, ids[i], target) {
			return false
		}
	}
	return true
}

// matchReference 单一引用比较，未知引用类型一律不匹配
func matchReference(ref models.CommissionReference, referenceID string, target Target) bool {
	if referenceID == "" {
		return false
	}

	switch ref {
	case models.ReferenceProduct:
		return target.ProductID == referenceID
	case models.ReferenceProductType:
		return target.ProductTypeID == referenceID
	case models.ReferenceProductCollection:
		return target.ProductCollectionID == referenceID
	case models.ReferenceProductCategory:
		return utils.Contains(target.CategoryIDs, referenceID)
	case models.ReferenceSeller:
		return target.SellerID == referenceID
	case models.ReferenceSellerGroup:
		return utils.Contains(target.SellerGroupIDs, referenceID)
	case models.ReferenceShippingOptionType:
		return target.ShippingOptionTypeID == referenceID
	case models.ReferenceSellerProductCategory, models.ReferenceSellerProductType:
		// 组合引用由 MatchRule 拆分
		return false
	}
	return false
}
