package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dumeirei/marketplace-backend/internal/common/logger"
	"github.com/dumeirei/marketplace-backend/internal/repository"
	"github.com/dumeirei/marketplace-backend/internal/service/commission"
)

// TaskHandler 任务处理器
type TaskHandler struct {
	opLogRepo     *repository.OperationLogRepository
	rates         commission.RateSource
	retentionDays int
	log           *zap.Logger
}

// NewTaskHandler 创建任务处理器，retentionDays 不大于 0 时不清理操作日志
func NewTaskHandler(
	opLogRepo *repository.OperationLogRepository,
	rates commission.RateSource,
	retentionDays int,
) *TaskHandler {
	return &TaskHandler{
		opLogRepo:     opLogRepo,
		rates:         rates,
		retentionDays: retentionDays,
		log:           logger.Named("task"),
	}
}

// PurgeOperationLogs 清理超过保留期的操作日志
func (h *TaskHandler) PurgeOperationLogs(ctx context.Context) error {
	if h.retentionDays <= 0 {
		return nil
	}
	before := time.Now().AddDate(0, 0, -h.retentionDays)

	n, err := h.opLogRepo.DeleteBefore(ctx, before)
	if err != nil {
		return err
	}
	if n > 0 {
		h.log.Info("已清理过期操作日志", zap.Int64("count", n), zap.Time("before", before))
	}
	return nil
}

// WarmRateCache 预热启用费率快照
func (h *TaskHandler) WarmRateCache(ctx context.Context) error {
	rates, err := h.rates.ListEnabled(ctx, "")
	if err != nil {
		return err
	}
	h.log.Debug("费率快照已预热", zap.Int("rates", len(rates)))
	return nil
}

// Register 向调度器注册任务
func (h *TaskHandler) Register(s *Scheduler, warmInterval time.Duration) {
	s.AddTask("purge_operation_logs", 24*time.Hour, h.PurgeOperationLogs)
	s.AddTask("warm_rate_cache", warmInterval, h.WarmRateCache)
}
