// Package repository 提供数据访问层
package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/marketplace-backend/internal/common/database"
	"github.com/dumeirei/marketplace-backend/internal/models"
)

// CommissionLineRepository 佣金明细仓储
type CommissionLineRepository struct {
	db *gorm.DB
}

// NewCommissionLineRepository 创建佣金明细仓储
func NewCommissionLineRepository(db *gorm.DB) *CommissionLineRepository {
	return &CommissionLineRepository{db: db}
}

// CommissionLineFilter 明细查询条件
type CommissionLineFilter struct {
	ItemID           string
	CommissionRateID int64
	Code             string
}

// UpsertResult 写入结果
type UpsertResult struct {
	Lines    []*models.CommissionLine // 写入后的明细，顺序与入参一致
	Previous []*models.CommissionLine // 写入前已存在的同 item_id 明细
}

// upsertColumns 冲突时覆盖的列
var upsertColumns = []string{
	"code", "rate", "amount", "currency_code", "commission_rate_id", "description", "updated_at",
}

// Upsert 按 item_id 幂等写入明细，整批在一个事务内完成
// 同一批次内 item_id 重复时以最后一条为准
func (r *CommissionLineRepository) Upsert(ctx context.Context, lines []*models.CommissionLine) (*UpsertResult, error) {
	result := &UpsertResult{}
	if len(lines) == 0 {
		return result, nil
	}

	batch, itemIDs := dedupeByItemID(lines)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id IN ?", itemIDs).Order("id ASC").Find(&result.Previous).Error; err != nil {
			return err
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).Create(&batch).Error
		if err != nil {
			return err
		}

		var stored []*models.CommissionLine
		if err := tx.Where("item_id IN ?", itemIDs).Find(&stored).Error; err != nil {
			return err
		}
		result.Lines = orderByItemIDs(stored, itemIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Restore 将明细恢复为 previous 快照：删除 itemIDs 中不在快照内的明细，快照内的按原值写回
func (r *CommissionLineRepository) Restore(ctx context.Context, itemIDs []string, previous []*models.CommissionLine) error {
	keep := make(map[string]struct{}, len(previous))
	for _, line := range previous {
		keep[line.ItemID] = struct{}{}
	}
	var remove []string
	for _, id := range itemIDs {
		if _, ok := keep[id]; !ok {
			remove = append(remove, id)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(remove) > 0 {
			if err := tx.Where("item_id IN ?", remove).Delete(&models.CommissionLine{}).Error; err != nil {
				return err
			}
		}
		if len(previous) == 0 {
			return nil
		}
		// 按 item_id 写回，主键由冲突行保留
		restored := make([]*models.CommissionLine, 0, len(previous))
		for _, line := range previous {
			cp := *line
			cp.ID = 0
			restored = append(restored, &cp)
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).Create(&restored).Error
	})
}

// GetByItemID 根据 item_id 获取明细
func (r *CommissionLineRepository) GetByItemID(ctx context.Context, itemID string) (*models.CommissionLine, error) {
	var line models.CommissionLine
	if err := r.db.WithContext(ctx).Where("item_id = ?", itemID).First(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

// GetByItemIDs 根据 item_id 列表获取明细
func (r *CommissionLineRepository) GetByItemIDs(ctx context.Context, itemIDs []string) ([]*models.CommissionLine, error) {
	var lines []*models.CommissionLine
	if len(itemIDs) == 0 {
		return lines, nil
	}
	err := r.db.WithContext(ctx).Where("item_id IN ?", itemIDs).Order("id ASC").Find(&lines).Error
	return lines, err
}

// DeleteByItemIDs 删除明细，返回删除行数
func (r *CommissionLineRepository) DeleteByItemIDs(ctx context.Context, itemIDs []string) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("item_id IN ?", itemIDs).Delete(&models.CommissionLine{})
	return result.RowsAffected, result.Error
}

// List 获取明细列表，按 ID 倒序
func (r *CommissionLineRepository) List(ctx context.Context, filter *CommissionLineFilter, offset, limit int) ([]*models.CommissionLine, int64, error) {
	var lines []*models.CommissionLine
	var total int64

	query := r.db.WithContext(ctx).Model(&models.CommissionLine{})

	if filter != nil {
		if filter.ItemID != "" {
			query = query.Where("item_id = ?", filter.ItemID)
		}
		if filter.CommissionRateID > 0 {
			query = query.Where("commission_rate_id = ?", filter.CommissionRateID)
		}
		if filter.Code != "" {
			query = query.Where("code = ?", filter.Code)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Scopes(database.OffsetLimit(offset, limit)).Find(&lines).Error; err != nil {
		return nil, 0, err
	}

	return lines, total, nil
}

// dedupeByItemID 按 item_id 去重，保留最后一条，顺序为各 item_id 首次出现的顺序
func dedupeByItemID(lines []*models.CommissionLine) ([]*models.CommissionLine, []string) {
	index := make(map[string]int, len(lines))
	batch := make([]*models.CommissionLine, 0, len(lines))
	itemIDs := make([]string, 0, len(lines))

	for _, line := range lines {
		if i, ok := index[line.ItemID]; ok {
			batch[i] = line
			continue
		}
		index[line.ItemID] = len(batch)
		batch = append(batch, line)
		itemIDs = append(itemIDs, line.ItemID)
	}
	return batch, itemIDs
}

func orderByItemIDs(lines []*models.CommissionLine, itemIDs []string) []*models.CommissionLine {
	byItem := make(map[string]*models.CommissionLine, len(lines))
	for _, line := range lines {
		byItem[line.ItemID] = line
	}
	ordered := make([]*models.CommissionLine, 0, len(itemIDs))
	for _, id := range itemIDs {
		if line, ok := byItem[id]; ok {
			ordered = append(ordered, line)
		}
	}
	return ordered
}
