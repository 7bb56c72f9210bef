// Package commission 佣金规则匹配与计算引擎
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/dumeirei/marketplace-backend/internal/models"
)

// CalculationContext 一次佣金计算的输入快照（订单或购物车）
type CalculationContext struct {
	Items           []LineItem       `json:"items" binding:"dive"`
	ShippingMethods []ShippingMethod `json:"shipping_methods" binding:"dive"`
	CurrencyCode    string           `json:"currency_code" binding:"omitempty,currency_code"`
}

// LineItem 商品行快照
type LineItem struct {
	ID       string          `json:"id" binding:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxTotal decimal.Decimal `json:"tax_total"`
	Product  ProductSnapshot `json:"product"`
}

// ProductSnapshot 商品描述
type ProductSnapshot struct {
	ID           string             `json:"id"`
	TypeID       string             `json:"type_id,omitempty"`
	CollectionID string             `json:"collection_id,omitempty"`
	Categories   []CategorySnapshot `json:"categories,omitempty"`
	Seller       *SellerSnapshot    `json:"seller,omitempty"`
}

// CategorySnapshot 商品分类
type CategorySnapshot struct {
	ID string `json:"id"`
}

// SellerSnapshot 卖家描述
type SellerSnapshot struct {
	ID       string   `json:"id"`
	GroupIDs []string `json:"group_ids,omitempty"`
}

// ShippingMethod 配送方式快照
type ShippingMethod struct {
	ID             string                 `json:"id" binding:"required"`
	Subtotal       decimal.Decimal        `json:"subtotal"`
	TaxTotal       decimal.Decimal        `json:"tax_total"`
	ShippingOption ShippingOptionSnapshot `json:"shipping_option"`
}

// ShippingOptionSnapshot 配送选项描述
type ShippingOptionSnapshot struct {
	ID                   string `json:"id,omitempty"`
	ShippingOptionTypeID string `json:"shipping_option_type_id"`
}

// Target 规则匹配对象，由商品或配送选项构造
type Target struct {
	Kind                 string
	ProductID            string
	ProductTypeID        string
	ProductCollectionID  string
	CategoryIDs          []string
	SellerID             string
	SellerGroupIDs       []string
	ShippingOptionTypeID string
}

// ProductTarget 由商品快照构造匹配对象
func ProductTarget(p ProductSnapshot) Target {
	t := Target{
		Kind:                models.CommissionTargetItem,
		ProductID:           p.ID,
		ProductTypeID:       p.TypeID,
		ProductCollectionID: p.CollectionID,
	}
	for _, c := range p.Categories {
		t.CategoryIDs = append(t.CategoryIDs, c.ID)
	}
	if p.Seller != nil {
		t.SellerID = p.Seller.ID
		t.SellerGroupIDs = p.Seller.GroupIDs
	}
	return t
}

// ShippingTarget 由配送选项快照构造匹配对象
func ShippingTarget(o ShippingOptionSnapshot) Target {
	return Target{
		Kind:                 models.CommissionTargetShipping,
		ShippingOptionTypeID: o.ShippingOptionTypeID,
	}
}
