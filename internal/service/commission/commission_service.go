package commission

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/common/logger"
	"github.com/dumeirei/marketplace-backend/internal/common/metrics"
	"github.com/dumeirei/marketplace-backend/internal/common/tracing"
	"github.com/dumeirei/marketplace-backend/internal/models"
	"github.com/dumeirei/marketplace-backend/internal/repository"
)

// 写入结果状态
const (
	upsertStatusSuccess = "success"
	upsertStatusFailed  = "failed"
)

// CommissionService 佣金计算服务
type CommissionService struct {
	rates    RateSource
	lineRepo *repository.CommissionLineRepository
	log      *zap.Logger
}

// NewCommissionService 创建佣金计算服务
func NewCommissionService(rates RateSource, lineRepo *repository.CommissionLineRepository) *CommissionService {
	return &CommissionService{
		rates:    rates,
		lineRepo: lineRepo,
		log:      logger.Named("commission"),
	}
}

// CalculationResult 计算并持久化的结果
type CalculationResult struct {
	Drafts   []LineDraft              `json:"drafts"`
	Lines    []*models.CommissionLine `json:"lines"`
	Previous []*models.CommissionLine `json:"-"`
}

// GetCommissionLines 为多个计算上下文生成佣金明细草稿
// 整批只读取一次费率，各上下文之间互不影响，结果按上下文顺序拼接
func (s *CommissionService) GetCommissionLines(ctx context.Context, contexts []*CalculationContext) ([]LineDraft, error) {
	ctx, span := tracing.Start(ctx, "commission.GetCommissionLines",
		tracing.WithOperation("calculate"),
		tracing.WithItemCount(countTargets(contexts)),
	)
	defer span.End()

	start := time.Now()

	if err := validateContexts(contexts); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	rates, err := s.rates.ListEnabled(ctx, "")
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	partitioned := PartitionRates(rates)

	var drafts []LineDraft
	for _, calc := range contexts {
		lines, err := BuildCommissionLines(calc, partitioned)
		if err != nil {
			tracing.SetError(ctx, err)
			logger.WithContext(ctx, s.log).Warn("计算佣金明细失败", logger.CurrencyCode(calc.CurrencyCode), zap.Error(err))
			return nil, err
		}
		recordOutcomes(calc, lines)
		drafts = append(drafts, lines...)
	}

	metrics.GetMetrics().ObserveCommissionCalculation(time.Since(start))
	tracing.SetAttributes(ctx, tracing.WithLineCount(len(drafts)))

	if drafts == nil {
		drafts = []LineDraft{}
	}
	return drafts, nil
}

// UpsertCommissionLines 按 item_id 幂等写入明细，全部成功或全部失败
// 返回结果中的 Previous 为被覆盖前的明细，可交给 RestoreCommissionLines 撤销
func (s *CommissionService) UpsertCommissionLines(ctx context.Context, drafts []LineDraft) (*repository.UpsertResult, error) {
	ctx, span := tracing.Start(ctx, "commission.UpsertCommissionLines",
		tracing.WithOperation("upsert"),
		tracing.WithDBTable(models.CommissionLine{}.TableName()),
		tracing.WithLineCount(len(drafts)),
	)
	defer span.End()

	lines := make([]*models.CommissionLine, 0, len(drafts))
	for i := range drafts {
		if drafts[i].ItemID == "" {
			return nil, errors.ErrInvalidParams.WithMessage("item_id 不能为空")
		}
		lines = append(lines, drafts[i].ToModel())
	}

	result, err := s.lineRepo.Upsert(ctx, lines)
	if err != nil {
		metrics.GetMetrics().RecordCommissionUpsert(upsertStatusFailed)
		tracing.SetError(ctx, err)
		logger.WithContext(ctx, s.log).Error("保存佣金明细失败", zap.Int("lines", len(lines)), zap.Error(err))
		return nil, errors.ErrCommissionUpsertFailed.WithError(err)
	}

	metrics.GetMetrics().RecordCommissionUpsert(upsertStatusSuccess)
	return result, nil
}

// CalculateAndPersist 计算并写入佣金明细，一次读取费率、一次批量写入
func (s *CommissionService) CalculateAndPersist(ctx context.Context, contexts []*CalculationContext) (*CalculationResult, error) {
	drafts, err := s.GetCommissionLines(ctx, contexts)
	if err != nil {
		return nil, err
	}

	result, err := s.UpsertCommissionLines(ctx, drafts)
	if err != nil {
		return nil, err
	}

	return &CalculationResult{
		Drafts:   drafts,
		Lines:    result.Lines,
		Previous: result.Previous,
	}, nil
}

// RestoreCommissionLines 撤销一次写入：itemIDs 为该次写入涉及的明细，previous 为写入前快照
func (s *CommissionService) RestoreCommissionLines(ctx context.Context, itemIDs []string, previous []*models.CommissionLine) error {
	if err := s.lineRepo.Restore(ctx, itemIDs, previous); err != nil {
		logger.WithContext(ctx, s.log).Error("恢复佣金明细失败", zap.Strings("item_ids", itemIDs), zap.Error(err))
		return errors.ErrCommissionUpsertFailed.WithError(err)
	}
	return nil
}

// DeleteCommissionLines 删除已移除商品行或配送方式的明细
func (s *CommissionService) DeleteCommissionLines(ctx context.Context, itemIDs []string) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	n, err := s.lineRepo.DeleteByItemIDs(ctx, itemIDs)
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}
	return n, nil
}

// GetCommissionLine 获取单个商品行或配送方式的明细
func (s *CommissionService) GetCommissionLine(ctx context.Context, itemID string) (*models.CommissionLine, error) {
	line, err := s.lineRepo.GetByItemID(ctx, itemID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrCommissionLineNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return line, nil
}

// GetCommissionLinesByItemIDs 按 item_id 查询明细
func (s *CommissionService) GetCommissionLinesByItemIDs(ctx context.Context, itemIDs []string) ([]*models.CommissionLine, error) {
	lines, err := s.lineRepo.GetByItemIDs(ctx, itemIDs)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return lines, nil
}

// ListCommissionLines 分页查询明细
func (s *CommissionService) ListCommissionLines(ctx context.Context, filter *repository.CommissionLineFilter, offset, limit int) ([]*models.CommissionLine, int64, error) {
	lines, total, err := s.lineRepo.List(ctx, filter, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return lines, total, nil
}

func validateContexts(contexts []*CalculationContext) error {
	for _, calc := range contexts {
		if calc == nil {
			return errors.ErrInvalidParams.WithMessage("计算上下文不能为空")
		}
		for _, item := range calc.Items {
			if item.ID == "" {
				return errors.ErrInvalidParams.WithMessage("商品行 id 不能为空")
			}
		}
		for _, method := range calc.ShippingMethods {
			if method.ID == "" {
				return errors.ErrInvalidParams.WithMessage("配送方式 id 不能为空")
			}
		}
	}
	return nil
}

func countTargets(contexts []*CalculationContext) int {
	n := 0
	for _, calc := range contexts {
		if calc != nil {
			n += len(calc.Items) + len(calc.ShippingMethods)
		}
	}
	return n
}

// recordOutcomes 记录各对象的匹配结果
func recordOutcomes(calc *CalculationContext, drafts []LineDraft) {
	matched := map[string]int{}
	for _, d := range drafts {
		matched[d.Target]++
	}

	m := metrics.GetMetrics()
	record := func(target string, total int) {
		for i := 0; i < total; i++ {
			if i < matched[target] {
				m.RecordCommissionLine(target, metrics.OutcomeMatched)
			} else {
				m.RecordCommissionLine(target, metrics.OutcomeUnmatched)
			}
		}
	}
	record(models.CommissionTargetItem, len(calc.Items))
	record(models.CommissionTargetShipping, len(calc.ShippingMethods))
}
