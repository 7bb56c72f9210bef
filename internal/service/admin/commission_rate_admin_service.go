// Package admin 提供管理后台服务
package admin

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/common/logger"
	"github.com/dumeirei/marketplace-backend/internal/common/metrics"
	"github.com/dumeirei/marketplace-backend/internal/common/utils"
	"github.com/dumeirei/marketplace-backend/internal/models"
	"github.com/dumeirei/marketplace-backend/internal/repository"
	"github.com/dumeirei/marketplace-backend/internal/service/commission"
)

var percentageMax = decimal.NewFromInt(100)

// CommissionRateAdminService 佣金费率管理服务
type CommissionRateAdminService struct {
	rateRepo *repository.CommissionRateRepository
	ruleRepo *repository.CommissionRuleRepository
	cache    commission.RateCacheInvalidator
	log      *zap.Logger
}

// NewCommissionRateAdminService 创建佣金费率管理服务，cache 可为 nil
func NewCommissionRateAdminService(
	rateRepo *repository.CommissionRateRepository,
	ruleRepo *repository.CommissionRuleRepository,
	cache commission.RateCacheInvalidator,
) *CommissionRateAdminService {
	return &CommissionRateAdminService{
		rateRepo: rateRepo,
		ruleRepo: ruleRepo,
		cache:    cache,
		log:      logger.Named("commission_admin"),
	}
}

// RuleInput 规则参数
type RuleInput struct {
	Reference   models.CommissionReference `json:"reference" yaml:"reference" binding:"required,commission_reference" example:"seller"`
	ReferenceID string                     `json:"reference_id" yaml:"reference_id" binding:"required,max=255" example:"sel_123"`
}

// CreateRateRequest 创建费率请求
type CreateRateRequest struct {
	Code         string           `json:"code" yaml:"code" binding:"required,max=64"`
	Name         string           `json:"name" yaml:"name" binding:"required,max=100"`
	Type         string           `json:"type" yaml:"type" binding:"required,commission_rate_type" example:"percentage"`
	Target       string           `json:"target" yaml:"target" binding:"required,commission_target" example:"item"`
	Value        decimal.Decimal  `json:"value" yaml:"value" swaggertype:"string" example:"10"`
	CurrencyCode *string          `json:"currency_code" yaml:"currency_code" binding:"omitempty,currency_code"`
	IncludeTax   bool             `json:"include_tax" yaml:"include_tax"`
	MinAmount    *decimal.Decimal `json:"min_amount" yaml:"min_amount" swaggertype:"string"`
	IsEnabled    *bool            `json:"is_enabled" yaml:"is_enabled"`
	Priority     int              `json:"priority" yaml:"priority"`
	Rules        []RuleInput      `json:"rules" yaml:"rules" binding:"omitempty,dive"`
}

// UpdateRateRequest 更新费率请求，未传字段保持不变
type UpdateRateRequest struct {
	Code           *string          `json:"code" binding:"omitempty,min=1,max=64"`
	Name           *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Type           *string          `json:"type" binding:"omitempty,commission_rate_type"`
	Target         *string          `json:"target" binding:"omitempty,commission_target"`
	Value          *decimal.Decimal `json:"value" swaggertype:"string"`
	CurrencyCode   *string          `json:"currency_code" binding:"omitempty,currency_code"`
	ClearCurrency  bool             `json:"clear_currency"`
	IncludeTax     *bool            `json:"include_tax"`
	MinAmount      *decimal.Decimal `json:"min_amount" swaggertype:"string"`
	ClearMinAmount bool             `json:"clear_min_amount"`
	IsEnabled      *bool            `json:"is_enabled"`
	Priority       *int             `json:"priority"`
}

// RateListFilter 费率列表筛选
type RateListFilter struct {
	Target       string `form:"target" binding:"omitempty,commission_target"`
	IsEnabled    *bool  `form:"is_enabled"`
	CurrencyCode string `form:"currency_code"`
	Code         string `form:"code"`
}

// CreateRate 创建费率，可同时创建初始规则
func (s *CommissionRateAdminService) CreateRate(ctx context.Context, req *CreateRateRequest) (*models.CommissionRate, error) {
	rate := &models.CommissionRate{
		Code:       strings.TrimSpace(req.Code),
		Name:       req.Name,
		Type:       req.Type,
		Target:     req.Target,
		Value:      req.Value,
		IncludeTax: req.IncludeTax,
		IsEnabled:  true,
		Priority:   req.Priority,
	}
	if req.CurrencyCode != nil && *req.CurrencyCode != "" {
		rate.CurrencyCode = utils.StringPtr(utils.NormalizeCode(*req.CurrencyCode))
	}
	if req.MinAmount != nil {
		rate.MinAmount = decimal.NewNullDecimal(*req.MinAmount)
	}
	if req.IsEnabled != nil {
		rate.IsEnabled = *req.IsEnabled
	}
	if rate.Code == "" || rate.Name == "" {
		return nil, errors.ErrInvalidParams.WithMessage("费率编码和名称不能为空")
	}
	if err := validateRateConfig(rate); err != nil {
		return nil, err
	}
	if err := validateRuleInputs(req.Rules); err != nil {
		return nil, err
	}

	exists, err := s.rateRepo.ExistsByCode(ctx, rate.Code, 0)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return nil, errors.ErrCommissionRateCodeExists
	}

	for _, in := range req.Rules {
		rate.Rules = append(rate.Rules, models.CommissionRule{
			Reference:   in.Reference,
			ReferenceID: in.ReferenceID,
		})
	}

	if err := s.rateRepo.Create(ctx, rate); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.afterWrite(ctx, "create_rate", rate.ID)
	return rate, nil
}

// GetRate 获取费率详情（含规则）
func (s *CommissionRateAdminService) GetRate(ctx context.Context, id int64) (*models.CommissionRate, error) {
	rate, err := s.rateRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrCommissionRateNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return rate, nil
}

// ListRates 获取费率列表
func (s *CommissionRateAdminService) ListRates(ctx context.Context, offset, limit int, filter *RateListFilter) ([]*models.CommissionRate, int64, error) {
	repoFilter := &repository.CommissionRateFilter{}
	if filter != nil {
		repoFilter.Target = filter.Target
		repoFilter.IsEnabled = filter.IsEnabled
		repoFilter.CurrencyCode = utils.NormalizeCode(filter.CurrencyCode)
		repoFilter.Code = filter.Code
	}

	rates, total, err := s.rateRepo.List(ctx, repoFilter, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return rates, total, nil
}

// UpdateRate 更新费率
func (s *CommissionRateAdminService) UpdateRate(ctx context.Context, id int64, req *UpdateRateRequest) (*models.CommissionRate, error) {
	rate, err := s.GetRate(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Code != nil {
		code := strings.TrimSpace(*req.Code)
		if code == "" {
			return nil, errors.ErrInvalidParams.WithMessage("费率编码不能为空")
		}
		if code != rate.Code {
			exists, err := s.rateRepo.ExistsByCode(ctx, code, id)
			if err != nil {
				return nil, errors.ErrDatabaseError.WithError(err)
			}
			if exists {
				return nil, errors.ErrCommissionRateCodeExists
			}
			rate.Code = code
		}
	}
	if req.Name != nil {
		rate.Name = *req.Name
	}
	if req.Type != nil {
		rate.Type = *req.Type
	}
	if req.Target != nil {
		rate.Target = *req.Target
	}
	if req.Value != nil {
		rate.Value = *req.Value
	}
	if req.ClearCurrency {
		rate.CurrencyCode = nil
	} else if req.CurrencyCode != nil && *req.CurrencyCode != "" {
		rate.CurrencyCode = utils.StringPtr(utils.NormalizeCode(*req.CurrencyCode))
	}
	if req.IncludeTax != nil {
		rate.IncludeTax = *req.IncludeTax
	}
	if req.ClearMinAmount {
		rate.MinAmount = decimal.NullDecimal{}
	} else if req.MinAmount != nil {
		rate.MinAmount = decimal.NewNullDecimal(*req.MinAmount)
	}
	if req.IsEnabled != nil {
		rate.IsEnabled = *req.IsEnabled
	}
	if req.Priority != nil {
		rate.Priority = *req.Priority
	}

	if err := validateRateConfig(rate); err != nil {
		return nil, err
	}

	if err := s.rateRepo.Update(ctx, rate); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.afterWrite(ctx, "update_rate", rate.ID)
	return rate, nil
}

// SetRateEnabled 启用或停用费率
func (s *CommissionRateAdminService) SetRateEnabled(ctx context.Context, id int64, enabled bool) error {
	if err := s.rateRepo.UpdateFields(ctx, id, map[string]interface{}{"is_enabled": enabled}); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrCommissionRateNotFound
		}
		return errors.ErrDatabaseError.WithError(err)
	}

	action := "disable_rate"
	if enabled {
		action = "enable_rate"
	}
	s.afterWrite(ctx, action, id)
	return nil
}

// DeleteRate 删除费率及其规则，已生成的佣金明细保留
func (s *CommissionRateAdminService) DeleteRate(ctx context.Context, id int64) error {
	if err := s.rateRepo.Delete(ctx, id); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrCommissionRateNotFound
		}
		return errors.ErrDatabaseError.WithError(err)
	}

	s.afterWrite(ctx, "delete_rate", id)
	return nil
}

// afterWrite 费率或规则变更后失效缓存并记录指标
func (s *CommissionRateAdminService) afterWrite(ctx context.Context, operation string, rateID int64) {
	metrics.GetMetrics().RecordCommissionRateWrite(operation)
	s.log.Info("佣金费率已变更", logger.Action(operation), logger.RateID(rateID))

	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		// 失效失败不回滚写入，由 TTL 过期
		s.log.Warn("清除费率缓存失败", logger.RateID(rateID), zap.Error(err))
	}
}

// validateRateConfig 校验费率配置
func validateRateConfig(rate *models.CommissionRate) error {
	switch rate.Target {
	case models.CommissionTargetItem, models.CommissionTargetShipping:
	default:
		return errors.ErrCommissionRateInvalid.WithMessage("无效的费率作用对象")
	}

	if rate.Value.IsNegative() {
		return errors.ErrCommissionRateInvalid.WithMessage("费率值不能为负数")
	}
	switch rate.Type {
	case models.CommissionRateTypePercentage:
		if rate.Value.GreaterThan(percentageMax) {
			return errors.ErrCommissionRateInvalid.WithMessage("百分比费率必须在0-100之间")
		}
	case models.CommissionRateTypeFlat:
	default:
		return errors.ErrCommissionRateInvalid.WithMessage("无效的费率类型")
	}

	if rate.MinAmount.Valid && rate.MinAmount.Decimal.IsNegative() {
		return errors.ErrCommissionRateInvalid.WithMessage("最低佣金不能为负数")
	}
	if rate.CurrencyCode != nil && len(*rate.CurrencyCode) != 3 {
		return errors.ErrCommissionRateInvalid.WithMessage("币种代码必须为3位")
	}
	return nil
}

// validateRuleInputs 校验规则引用类型及组合引用的 ID 格式
func validateRuleInputs(inputs []RuleInput) error {
	for _, in := range inputs {
		if !in.Reference.IsValid() {
			return errors.ErrInvalidReference.WithMessage("无效的规则引用类型: " + string(in.Reference))
		}
		if in.ReferenceID == "" {
			return errors.ErrInvalidReference.WithMessage("规则引用 ID 不能为空")
		}
		if !in.Reference.IsCombined() {
			continue
		}
		parts := strings.Split(in.ReferenceID, models.CombinedReferenceIDSeparator)
		if len(parts) != len(in.Reference.Components()) {
			return errors.ErrInvalidReference.WithMessage("组合引用 ID 分量数量不符")
		}
		for _, p := range parts {
			if p == "" {
				return errors.ErrInvalidReference.WithMessage("组合引用 ID 分量不能为空")
			}
		}
	}
	return nil
}
