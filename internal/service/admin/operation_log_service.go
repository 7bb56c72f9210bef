package admin

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/models"
	"github.com/dumeirei/marketplace-backend/internal/repository"
)

// OperationLogService 操作日志查询服务
type OperationLogService struct {
	repo *repository.OperationLogRepository
}

// NewOperationLogService 创建操作日志查询服务
func NewOperationLogService(repo *repository.OperationLogRepository) *OperationLogService {
	return &OperationLogService{repo: repo}
}

// OperationLogQuery 操作日志查询条件
type OperationLogQuery struct {
	AdminID    int64      `form:"admin_id"`
	Module     string     `form:"module"`
	Action     string     `form:"action"`
	TargetType string     `form:"target_type"`
	TargetID   int64      `form:"target_id"`
	StartTime  *time.Time `form:"start_time" time_format:"2006-01-02T15:04:05Z07:00"`
	EndTime    *time.Time `form:"end_time" time_format:"2006-01-02T15:04:05Z07:00"`
}

// List 分页查询操作日志
func (s *OperationLogService) List(ctx context.Context, query *OperationLogQuery, offset, limit int) ([]*models.OperationLog, int64, error) {
	filter := &repository.OperationLogFilter{}
	if query != nil {
		if query.StartTime != nil && query.EndTime != nil && query.EndTime.Before(*query.StartTime) {
			return nil, 0, errors.ErrInvalidParams.WithMessage("结束时间不能早于开始时间")
		}
		filter.AdminID = query.AdminID
		filter.Module = query.Module
		filter.Action = query.Action
		filter.TargetType = query.TargetType
		filter.TargetID = query.TargetID
		filter.StartTime = query.StartTime
		filter.EndTime = query.EndTime
	}

	logs, total, err := s.repo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return logs, total, nil
}

// Get 获取操作日志详情
func (s *OperationLogService) Get(ctx context.Context, id int64) (*models.OperationLog, error) {
	log, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrResourceNotFound.WithMessage("操作日志不存在")
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return log, nil
}
