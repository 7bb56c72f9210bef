// Package commission 提供佣金计算的服务间 HTTP Handler
package commission

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/marketplace-backend/internal/common/handler"
	"github.com/dumeirei/marketplace-backend/internal/common/response"
	"github.com/dumeirei/marketplace-backend/internal/common/utils"
	commissionService "github.com/dumeirei/marketplace-backend/internal/service/commission"
)

// Handler 佣金计算处理器
type Handler struct {
	service         *commissionService.CommissionService
	defaultCurrency string
}

// NewHandler 创建佣金计算处理器
func NewHandler(svc *commissionService.CommissionService, defaultCurrency string) *Handler {
	return &Handler{
		service:         svc,
		defaultCurrency: utils.NormalizeCode(defaultCurrency),
	}
}

// CalculateRequest 佣金计算请求
type CalculateRequest struct {
	Contexts []*commissionService.CalculationContext `json:"contexts" binding:"required,min=1,max=100,dive,required"`
}

// DeleteLinesRequest 删除佣金明细请求
type DeleteLinesRequest struct {
	ItemIDs []string `json:"item_ids" binding:"required,min=1,dive,required"`
}

// DeleteLinesResponse 删除佣金明细响应
type DeleteLinesResponse struct {
	Deleted int64 `json:"deleted"`
}

// bindContexts 绑定计算请求并补齐默认币种
func (h *Handler) bindContexts(c *gin.Context) ([]*commissionService.CalculationContext, bool) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return nil, false
	}
	for _, calc := range req.Contexts {
		if calc.CurrencyCode == "" {
			calc.CurrencyCode = h.defaultCurrency
		}
	}
	return req.Contexts, true
}

// Preview 计算佣金明细但不保存
// @Summary 预览佣金明细
// @Description 按启用费率为每个商品行和配送方式匹配至多一个费率，返回明细草稿
// @Tags 佣金计算
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CalculateRequest true "计算上下文"
// @Success 200 {object} response.Response{data=[]commission.LineDraft}
// @Router /api/v1/commission/lines/preview [post]
func (h *Handler) Preview(c *gin.Context) {
	contexts, ok := h.bindContexts(c)
	if !ok {
		return
	}

	drafts, err := h.service.GetCommissionLines(c.Request.Context(), contexts)
	handler.MustSucceed(c, err, drafts)
}

// Persist 计算并保存佣金明细
// @Summary 计算并保存佣金明细
// @Description 按 item_id 幂等写入，整批成功或整批失败
// @Tags 佣金计算
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body CalculateRequest true "计算上下文"
// @Success 200 {object} response.Response{data=commission.CalculationResult}
// @Router /api/v1/commission/lines [post]
func (h *Handler) Persist(c *gin.Context) {
	contexts, ok := h.bindContexts(c)
	if !ok {
		return
	}

	result, err := h.service.CalculateAndPersist(c.Request.Context(), contexts)
	handler.MustSucceed(c, err, result)
}

// DeleteLines 删除已移除商品行或配送方式的明细
// @Summary 删除佣金明细
// @Tags 佣金计算
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body DeleteLinesRequest true "请求参数"
// @Success 200 {object} response.Response{data=DeleteLinesResponse}
// @Router /api/v1/commission/lines/delete [post]
func (h *Handler) DeleteLines(c *gin.Context) {
	var req DeleteLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	n, err := h.service.DeleteCommissionLines(c.Request.Context(), utils.Unique(req.ItemIDs))
	handler.MustSucceed(c, err, &DeleteLinesResponse{Deleted: n})
}

// GetLines 按 item_id 查询已保存的明细
// @Summary 查询佣金明细
// @Tags 佣金计算
// @Produce json
// @Security Bearer
// @Param item_id query []string true "商品行或配送方式ID" collectionFormat(multi)
// @Success 200 {object} response.Response{data=[]models.CommissionLine}
// @Router /api/v1/commission/lines [get]
func (h *Handler) GetLines(c *gin.Context) {
	itemIDs := c.QueryArray("item_id")
	if len(itemIDs) == 0 {
		response.BadRequest(c, "item_id 不能为空")
		return
	}

	lines, err := h.service.GetCommissionLinesByItemIDs(c.Request.Context(), itemIDs)
	handler.MustSucceed(c, err, lines)
}
