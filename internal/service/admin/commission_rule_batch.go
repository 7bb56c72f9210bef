package admin

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dumeirei/marketplace-backend/internal/common/errors"
	"github.com/dumeirei/marketplace-backend/internal/common/utils"
	"github.com/dumeirei/marketplace-backend/internal/models"
	"github.com/dumeirei/marketplace-backend/internal/repository"
)

// RuleCommand 可撤销的规则变更步骤
type RuleCommand interface {
	Do(ctx context.Context) error
	Undo(ctx context.Context) error
}

// createRulesCommand 为费率创建一组规则
type createRulesCommand struct {
	repo    *repository.CommissionRuleRepository
	rateID  int64
	inputs  []RuleInput
	created []*models.CommissionRule
}

func (c *createRulesCommand) Do(ctx context.Context) error {
	rules := make([]*models.CommissionRule, 0, len(c.inputs))
	for _, in := range c.inputs {
		rules = append(rules, &models.CommissionRule{
			CommissionRateID: c.rateID,
			Reference:        in.Reference,
			ReferenceID:      in.ReferenceID,
		})
	}
	if err := c.repo.CreateBatch(ctx, rules); err != nil {
		return err
	}
	c.created = rules
	return nil
}

func (c *createRulesCommand) Undo(ctx context.Context) error {
	ids := make([]int64, 0, len(c.created))
	for _, r := range c.created {
		ids = append(ids, r.ID)
	}
	_, err := c.repo.DeleteByIDs(ctx, ids)
	return err
}

// deleteRulesCommand 删除费率下的规则，撤销时按原 ID 恢复
type deleteRulesCommand struct {
	repo    *repository.CommissionRuleRepository
	rateID  int64
	ids     []int64
	deleted []*models.CommissionRule
}

func (c *deleteRulesCommand) Do(ctx context.Context) error {
	rules, err := c.repo.GetByIDs(ctx, c.ids)
	if err != nil {
		return err
	}
	found := make(map[int64]bool, len(rules))
	for _, r := range rules {
		if r.CommissionRateID != c.rateID {
			return errors.ErrCommissionRuleNotFound.WithMessage("规则不属于该费率")
		}
		found[r.ID] = true
	}
	for _, id := range c.ids {
		if !found[id] {
			return errors.ErrCommissionRuleNotFound
		}
	}

	if _, err := c.repo.DeleteByIDs(ctx, c.ids); err != nil {
		return err
	}
	c.deleted = rules
	return nil
}

func (c *deleteRulesCommand) Undo(ctx context.Context) error {
	return c.repo.CreateBatch(ctx, c.deleted)
}

// runRuleCommands 依次执行，失败时按相反顺序撤销已完成的步骤
func runRuleCommands(ctx context.Context, log *zap.Logger, cmds []RuleCommand) error {
	done := make([]RuleCommand, 0, len(cmds))
	for _, cmd := range cmds {
		if err := cmd.Do(ctx); err != nil {
			for i := len(done) - 1; i >= 0; i-- {
				if undoErr := done[i].Undo(ctx); undoErr != nil {
					log.Error("撤销规则变更失败", zap.Int("step", i), zap.Error(undoErr))
				}
			}
			return err
		}
		done = append(done, cmd)
	}
	return nil
}

// BatchRulesRequest 批量变更规则请求
type BatchRulesRequest struct {
	Create []RuleInput `json:"create" binding:"omitempty,dive"`
	Delete []int64     `json:"delete"`
}

// BatchRulesResult 批量变更规则结果
type BatchRulesResult struct {
	Created   []*models.CommissionRule `json:"created"`
	Deleted   []int64                  `json:"deleted"`
	RuleCount int64                    `json:"rule_count"` // 批次完成后费率剩余规则数，0 表示兜底费率
}

// RuleListFilter 规则列表筛选
type RuleListFilter struct {
	CommissionRateID int64                      `form:"commission_rate_id"`
	Reference        models.CommissionReference `form:"reference" binding:"omitempty,commission_reference"`
	ReferenceID      string                     `form:"reference_id"`
}

// CreateRules 为费率新增规则
func (s *CommissionRateAdminService) CreateRules(ctx context.Context, rateID int64, inputs []RuleInput) ([]*models.CommissionRule, error) {
	result, err := s.BatchRules(ctx, rateID, &BatchRulesRequest{Create: inputs})
	if err != nil {
		return nil, err
	}
	return result.Created, nil
}

// DeleteRules 删除费率下的规则
func (s *CommissionRateAdminService) DeleteRules(ctx context.Context, rateID int64, ids []int64) error {
	_, err := s.BatchRules(ctx, rateID, &BatchRulesRequest{Delete: ids})
	return err
}

// BatchRules 在一个批次内新增和删除规则，任一步失败则撤销已完成的步骤
func (s *CommissionRateAdminService) BatchRules(ctx context.Context, rateID int64, req *BatchRulesRequest) (*BatchRulesResult, error) {
	if _, err := s.GetRate(ctx, rateID); err != nil {
		return nil, err
	}
	if err := validateRuleInputs(req.Create); err != nil {
		return nil, err
	}

	deleteIDs := utils.Unique(req.Delete)
	var (
		cmds   []RuleCommand
		create *createRulesCommand
	)
	if len(req.Create) > 0 {
		create = &createRulesCommand{repo: s.ruleRepo, rateID: rateID, inputs: req.Create}
		cmds = append(cmds, create)
	}
	if len(deleteIDs) > 0 {
		cmds = append(cmds, &deleteRulesCommand{repo: s.ruleRepo, rateID: rateID, ids: deleteIDs})
	}

	if err := runRuleCommands(ctx, s.log, cmds); err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.ErrRuleBatchFailed.WithError(err)
	}

	result := &BatchRulesResult{
		Created: []*models.CommissionRule{},
		Deleted: deleteIDs,
	}
	if create != nil {
		result.Created = create.created
	}
	count, err := s.ruleRepo.CountByRateID(ctx, rateID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	result.RuleCount = count
	if len(cmds) > 0 {
		if count == 0 && len(deleteIDs) > 0 {
			s.log.Warn("费率规则已全部删除，将作为兜底费率匹配所有对象",
				zap.Int64("rate_id", rateID),
				zap.Int("deleted", len(deleteIDs)),
			)
		}
		s.afterWrite(ctx, "batch_rules", rateID)
	}
	return result, nil
}

// GetRule 获取规则详情
func (s *CommissionRateAdminService) GetRule(ctx context.Context, id int64) (*models.CommissionRule, error) {
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrCommissionRuleNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return rule, nil
}

// ListRules 获取规则列表
func (s *CommissionRateAdminService) ListRules(ctx context.Context, offset, limit int, filter *RuleListFilter) ([]*models.CommissionRule, int64, error) {
	repoFilter := &repository.CommissionRuleFilter{}
	if filter != nil {
		repoFilter.CommissionRateID = filter.CommissionRateID
		repoFilter.Reference = filter.Reference
		repoFilter.ReferenceID = filter.ReferenceID
	}

	rules, total, err := s.ruleRepo.List(ctx, repoFilter, offset, limit)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return rules, total, nil
}
