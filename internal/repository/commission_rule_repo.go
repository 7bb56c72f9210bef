// Package repository 提供数据访问层
package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-backend/internal/common/database"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

// CommissionRuleRepository 佣金规则仓储
type CommissionRuleRepository struct {
	db *gorm.DB
}

// NewCommissionRuleRepository 创建佣金规则仓储
func NewCommissionRuleRepository(db *gorm.DB) *CommissionRuleRepository {
	return &CommissionRuleRepository{db: db}
}

// CommissionRuleFilter 规则查询条件
type CommissionRuleFilter struct {
	CommissionRateID int64
	Reference        models.CommissionReference
	ReferenceID      string
}

// CreateBatch 批量创建规则
// 规则 ID 非零时按原 ID 写入，用于撤销删除
func (r *CommissionRuleRepository) CreateBatch(ctx context.Context, rules []*models.CommissionRule) error {
	if len(rules) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rules).Error
}

// GetByID 根据 ID 获取规则
func (r *CommissionRuleRepository) GetByID(ctx context.Context, id int64) (*models.CommissionRule, error) {
	var rule models.CommissionRule
	if err := r.db.WithContext(ctx).First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// GetByIDs 根据 ID 列表获取规则
func (r *CommissionRuleRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.CommissionRule, error) {
	var rules []*models.CommissionRule
	if len(ids) == 0 {
		return rules, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&rules).Error
	return rules, err
}

// List 获取规则列表
func (r *CommissionRuleRepository) List(ctx context.Context, filter *CommissionRuleFilter, offset, limit int) ([]*models.CommissionRule, int64, error) {
	var rules []*models.CommissionRule
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CommissionRule{})

	if filter != nil {
		if filter.CommissionRateID > 0 {
			query = query.Where("commission_rate_id = ?", filter.CommissionRateID)
		}
		if filter.Reference != "" {
			query = query.Where("reference = ?", filter.Reference)
		}
		if filter.ReferenceID != "" {
			query = query.Where("reference_id = ?", filter.ReferenceID)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id ASC").Scopes(database.OffsetLimit(offset, limit)).Find(&rules).Error; err != nil {
		return nil, 0, err
	}

	return rules, total, nil
}

// DeleteByIDs 批量删除规则，返回删除行数
func (r *CommissionRuleRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.CommissionRule{})
	return result.RowsAffected, result.Error
}

// CountByRateID 统计费率下的规则数
func (r *CommissionRuleRepository) CountByRateID(ctx context.Context, rateID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CommissionRule{}).Where("commission_rate_id = ?", rateID).Count(&count).Error
	return count, err
}
