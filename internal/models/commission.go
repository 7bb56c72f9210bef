package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CommissionRate 佣金费率
// 无规则的费率即为其 Target 下的默认费率
type CommissionRate struct {
	ID           int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	Code         string              `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Name         string              `gorm:"type:varchar(100);not null" json:"name"`
	Type         string              `gorm:"type:varchar(20);not null" json:"type"`
	Target       string              `gorm:"type:varchar(20);not null;index" json:"target"`
	Value        decimal.Decimal     `gorm:"type:decimal(14,4);not null" json:"value"`
	CurrencyCode *string             `gorm:"type:varchar(3)" json:"currency_code,omitempty"`
	IncludeTax   bool                `gorm:"not null" json:"include_tax"`
	MinAmount    decimal.NullDecimal `gorm:"type:decimal(14,4)" json:"min_amount"`
	IsEnabled    bool                `gorm:"not null;index" json:"is_enabled"`
	Priority     int                 `gorm:"not null;default:0;index" json:"priority"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Rules []CommissionRule `gorm:"foreignKey:CommissionRateID" json:"rules"`
}

// TableName 表名
func (CommissionRate) TableName() string {
	return "commission_rates"
}

// IsDefault 是否为默认费率（无任何规则）
func (r *CommissionRate) IsDefault() bool {
	return len(r.Rules) == 0
}

// CommissionRateType 费率类型
const (
	CommissionRateTypePercentage = "percentage" // 百分比
	CommissionRateTypeFlat       = "flat"       // 固定金额
)

// CommissionTarget 费率作用对象
const (
	CommissionTargetItem     = "item"     // 订单商品行
	CommissionTargetShipping = "shipping" // 配送方式
)

// CommissionRule 佣金规则，限定费率的适用范围
type CommissionRule struct {
	ID               int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	CommissionRateID int64               `gorm:"index;not null" json:"commission_rate_id"`
	Reference        CommissionReference `gorm:"type:varchar(50);not null;index" json:"reference"`
	ReferenceID      string              `gorm:"type:varchar(255);not null" json:"reference_id"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (CommissionRule) TableName() string {
	return "commission_rules"
}

// CommissionReference 规则引用类型
type CommissionReference string

// 单一引用
const (
	ReferenceProduct            CommissionReference = "product"
	ReferenceProductType        CommissionReference = "product_type"
	ReferenceProductCollection  CommissionReference = "product_collection"
	ReferenceProductCategory    CommissionReference = "product_category"
	ReferenceSeller             CommissionReference = "seller"
	ReferenceSellerGroup        CommissionReference = "seller_group"
	ReferenceShippingOptionType CommissionReference = "shipping_option_type"
)

// 组合引用，ReferenceID 为各分量 ID 按顺序以 CombinedReferenceIDSeparator 拼接
const (
	ReferenceSellerProductCategory CommissionReference = "seller+product_category"
	ReferenceSellerProductType     CommissionReference = "seller+product_type"
)

const (
	combinedReferenceSeparator   = "+"
	CombinedReferenceIDSeparator = ";"
)

var commissionReferences = map[CommissionReference]struct{}{
	ReferenceProduct:               {},
	ReferenceProductType:           {},
	ReferenceProductCollection:     {},
	ReferenceProductCategory:       {},
	ReferenceSeller:                {},
	ReferenceSellerGroup:           {},
	ReferenceShippingOptionType:    {},
	ReferenceSellerProductCategory: {},
	ReferenceSellerProductType:     {},
}

// IsValid 是否为已知引用类型
func (r CommissionReference) IsValid() bool {
	_, ok := commissionReferences[r]
	return ok
}

// IsCombined 是否为组合引用
func (r CommissionReference) IsCombined() bool {
	return strings.Contains(string(r), combinedReferenceSeparator)
}

// Components 返回组合引用的各分量；单一引用返回自身
func (r CommissionReference) Components() []CommissionReference {
	if !r.IsCombined() {
		return []CommissionReference{r}
	}
	parts := strings.Split(string(r), combinedReferenceSeparator)
	components := make([]CommissionReference, 0, len(parts))
	for _, p := range parts {
		components = append(components, CommissionReference(p))
	}
	return components
}

// JoinReferenceIDs 拼接组合引用的 ReferenceID
func JoinReferenceIDs(ids ...string) string {
	return strings.Join(ids, CombinedReferenceIDSeparator)
}

// CommissionLine 佣金明细，每个商品行或配送方式至多一条
type CommissionLine struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID           string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"item_id"`
	Code             string          `gorm:"type:varchar(64);not null" json:"code"`
	Rate             decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"rate"`
	Amount           decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"amount"`
	CurrencyCode     string          `gorm:"type:varchar(3);not null" json:"currency_code"`
	CommissionRateID int64           `gorm:"index;not null" json:"commission_rate_id"`
	Description      string          `gorm:"type:varchar(255);not null" json:"description"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (CommissionLine) TableName() string {
	return "commission_lines"
}
