// Package repository 提供数据访问层
package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/marketplace-backend/internal/common/database"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

// CommissionRateRepository 佣金费率仓储
type CommissionRateRepository struct {
	db *gorm.DB
}

// NewCommissionRateRepository 创建佣金费率仓储
func NewCommissionRateRepository(db *gorm.DB) *CommissionRateRepository {
	return &CommissionRateRepository{db: db}
}

// CommissionRateFilter 费率查询条件
type CommissionRateFilter struct {
	Target       string
	IsEnabled    *bool
	CurrencyCode string
	Code         string
}

// preloadRules 规则按 ID 升序加载
func preloadRules(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// Create 创建费率，Rules 一并写入
func (r *CommissionRateRepository) Create(ctx context.Context, rate *models.CommissionRate) error {
	return r.db.WithContext(ctx).Create(rate).Error
}

// GetByID 根据 ID 获取费率（含规则）
func (r *CommissionRateRepository) GetByID(ctx context.Context, id int64) (*models.CommissionRate, error) {
	var rate models.CommissionRate
	err := r.db.WithContext(ctx).Preload("Rules", preloadRules).First(&rate, id).Error
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

// ExistsByCode 编码是否已被其他费率使用
func (r *CommissionRateRepository) ExistsByCode(ctx context.Context, code string, excludeID int64) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.CommissionRate{}).Where("code = ?", code)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update 更新费率自身字段，不处理规则
func (r *CommissionRateRepository) Update(ctx context.Context, rate *models.CommissionRate) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(rate).Error
}

// UpdateFields 更新指定字段
func (r *CommissionRateRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.CommissionRate{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除费率及其规则
func (r *CommissionRateRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("commission_rate_id = ?", id).Delete(&models.CommissionRule{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.CommissionRate{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// List 获取费率列表，按优先级降序、ID 升序
func (r *CommissionRateRepository) List(ctx context.Context, filter *CommissionRateFilter, offset, limit int) ([]*models.CommissionRate, int64, error) {
	var rates []*models.CommissionRate
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CommissionRate{})

	if filter != nil {
		if filter.Target != "" {
			query = query.Where("target = ?", filter.Target)
		}
		if filter.IsEnabled != nil {
			query = query.Where("is_enabled = ?", *filter.IsEnabled)
		}
		if filter.CurrencyCode != "" {
			query = query.Where("currency_code = ?", filter.CurrencyCode)
		}
		if filter.Code != "" {
			query = query.Where("code = ?", filter.Code)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("Rules", preloadRules).
		Order("priority DESC").Order("id ASC").
		Scopes(database.OffsetLimit(offset, limit)).
		Find(&rates).Error
	if err != nil {
		return nil, 0, err
	}

	return rates, total, nil
}

// ListEnabled 获取启用的费率（含规则），按优先级降序、ID 升序
// target 为空时返回全部作用对象
func (r *CommissionRateRepository) ListEnabled(ctx context.Context, target string) ([]*models.CommissionRate, error) {
	var rates []*models.CommissionRate

	query := r.db.WithContext(ctx).Where("is_enabled = ?", true)
	if target != "" {
		query = query.Where("target = ?", target)
	}

	err := query.Preload("Rules", preloadRules).
		Order("priority DESC").Order("id ASC").
		Find(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}
