// Package admin 提供管理端 HTTP Handler
package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/marketplace-backend/internal/common/handler"
	"github.com/dumeirei/marketplace-backend/internal/common/response"
	"github.com/dumeirei/marketplace-backend/internal/repository"
	adminService "github.com/dumeirei/marketplace-backend/internal/service/admin"
	commissionService "github.com/dumeirei/marketplace-backend/internal/service/commission"
)

// CommissionHandler 佣金费率管理处理器
type CommissionHandler struct {
	rateService       *adminService.CommissionRateAdminService
	commissionService *commissionService.CommissionService
}

// NewCommissionHandler 创建佣金费率管理处理器
func NewCommissionHandler(
	rateSvc *adminService.CommissionRateAdminService,
	commissionSvc *commissionService.CommissionService,
) *CommissionHandler {
	return &CommissionHandler{
		rateService:       rateSvc,
		commissionService: commissionSvc,
	}
}

// SetRateStatusRequest 启停费率请求
type SetRateStatusRequest struct {
	IsEnabled *bool `json:"is_enabled" binding:"required"`
}

// ListRates 获取费率列表
// @Summary 获取佣金费率列表
// @Tags 管理端-佣金管理
// @Produce json
// @Security Bearer
// @Param offset query int false "偏移量" default(0)
// @Param limit query int false "每页数量" default(20)
// @Param target query string false "作用对象：item/shipping"
// @Param is_enabled query bool false "是否启用"
// @Param currency_code query string false "币种"
// @Param code query string false "费率编码"
// @Success 200 {object} response.Response{data=response.PageData{list=[]models.CommissionRate}}
// @Router /api/v1/admin/commission/rates [get]
func (h *CommissionHandler) ListRates(c *gin.Context) {
	var filter adminService.RateListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	p := handler.BindPagination(c)

	rates, total, err := h.rateService.ListRates(c.Request.Context(), p.Offset, p.Limit, &filter)
	handler.MustSucceedPage(c, err, rates, total, p.Offset, p.Limit)
}

// CreateRate 创建费率
// @Summary 创建佣金费率
// @Tags 管理端-佣金管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body admin.CreateRateRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.CommissionRate}
// @Router /api/v1/admin/commission/rates [post]
func (h *CommissionHandler) CreateRate(c *gin.Context) {
	var req adminService.CreateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rate, err := h.rateService.CreateRate(c.Request.Context(), &req)
	handler.MustSucceed(c, err, rate)
}

// GetRate 获取费率详情
// @Summary 获取佣金费率详情
// @Tags 管理端-佣金管理
// @Produce json
// @Security Bearer
// @Param id path int true "费率ID"
// @Success 200 {object} response.Response{data=models.CommissionRate}
// @Router /api/v1/admin/commission/rates/{id} [get]
func (h *CommissionHandler) GetRate(c *gin.Context) {
	id, ok := handler.ParseID(c, "费率")
	if !ok {
		return
	}

	rate, err := h.rateService.GetRate(c.Request.Context(), id)
	handler.MustSucceed(c, err, rate)
}

// UpdateRate 更新费率
// @Summary 更新佣金费率
// @Tags 管理端-佣金管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "费率ID"
// @Param request body admin.UpdateRateRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.CommissionRate}
// @Router /api/v1/admin/commission/rates/{id} [put]
func (h *CommissionHandler) UpdateRate(c *gin.Context) {
	id, ok := handler.ParseID(c, "费率")
	if !ok {
		return
	}

	var req adminService.UpdateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	rate, err := h.rateService.UpdateRate(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, rate)
}

// SetRateStatus 启用或停用费率
// @Summary 启用或停用佣金费率
// @Tags 管理端-佣金管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "费率ID"
// @Param request body SetRateStatusRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/commission/rates/{id}/status [put]
func (h *CommissionHandler) SetRateStatus(c *gin.Context) {
	id, ok := handler.ParseID(c, "费率")
	if !ok {
		return
	}

	var req SetRateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	err := h.rateService.SetRateEnabled(c.Request.Context(), id, *req.IsEnabled)
	handler.MustSucceedWithMessage(c, err, "状态已更新", nil)
}

// DeleteRate 删除费率
// @Summary 删除佣金费率（同时删除其规则）
// @Tags 管理端-佣金管理
// @Produce json
// @Security Bearer
// @Param id path int true "费率ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/commission/rates/{id} [delete]
func (h *CommissionHandler) DeleteRate(c *gin.Context) {
	id, ok := handler.ParseID(c, "费率")
	if !ok {
		return
	}

	err := h.rateService.DeleteRate(c.Request.Context(), id)
	handler.MustSucceedWithMessage(c, err, "删除成功", nil)
}

// BatchRules 批量新增和删除规则
// @Summary 批量变更佣金规则
// @Description 任一步失败时撤销本批次已完成的变更
// @Tags 管理端-佣金管理
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "费率ID"
// @Param request body admin.BatchRulesRequest true "请求参数"
// @Success 200 {object} response.Response{data=admin.BatchRulesResult}
// @Router /api/v1/admin/commission/rates/{id}/rules/batch [post]
func (h *CommissionHandler) BatchRules(c *gin.Context) {
	id, ok := handler.ParseID(c, "费率")
	if !ok {
		return
	}

	var req adminService.BatchRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.rateService.BatchRules(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, result)
}

// ListRules 获取规则列表
// @Summary 获取佣金规则列表
// @Tags 管理端-佣金管理
// @Produce json
// @Security Bearer
// @Param offset query int false "偏移量" default(0)
// @Param limit query int false "每页数量" default(20)
// @Param commission_rate_id query int false "费率ID"
// @Param reference query string false "引用类型"
// @Param reference_id query string false "引用ID"
// @Success 200 {object} response.Response{data=response.PageData{list=[]models.CommissionRule}}
// @Router /api/v1/admin/commission/rules [get]
func (h *CommissionHandler) ListRules(c *gin.Context) {
	var filter adminService.RuleListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	p := handler.BindPagination(c)

	rules, total, err := h.rateService.ListRules(c.Request.Context(), p.Offset, p.Limit, &filter)
	handler.MustSucceedPage(c, err, rules, total, p.Offset, p.Limit)
}

// GetRule 获取规则详情
// @Summary 获取佣金规则详情
// @Tags 管理端-佣金管理
// @Produce json
// @Security Bearer
// @Param id path int true "规则ID"
// @Success 200 {object} response.Response{data=models.CommissionRule}
// @Router /api/v1/admin/commission/rules/{id} [get]
func (h *CommissionHandler) GetRule(c *gin.Context) {
	id, ok := handler.ParseID(c, "规则")
	if !ok {
		return
	}

	rule, err := h.rateService.GetRule(c.Request.Context(), id)
	handler.MustSucceed(c, err, rule)
}

// ListLines 获取佣金明细列表
// @Summary 获取佣金明细列表
// @Tags 管理端-佣金管理
// @Produce json
// @Security Bearer
// @Param offset query int false "偏移量" default(0)
// @Param limit query int false "每页数量" default(20)
// @Param item_id query string false "商品行或配送方式ID"
// @Param commission_rate_id query int false "费率ID"
// @Param code query string false "费率编码"
// @Success 200 {object} response.Response{data=response.PageData{list=[]models.CommissionLine}}
// @Router /api/v1/admin/commission/lines [get]
func (h *CommissionHandler) ListLines(c *gin.Context) {
	rateID, ok := handler.ParseQueryID(c, "commission_rate_id", "费率")
	if !ok {
		return
	}
	p := handler.BindPagination(c)

	filter := &repository.CommissionLineFilter{
		ItemID: c.Query("item_id"),
		Code:   c.Query("code"),
	}
	if rateID != nil {
		filter.CommissionRateID = *rateID
	}

	lines, total, err := h.commissionService.ListCommissionLines(c.Request.Context(), filter, p.Offset, p.Limit)
	handler.MustSucceedPage(c, err, lines, total, p.Offset, p.Limit)
}

// GetLine 获取单条佣金明细
// @Summary 获取佣金明细详情
// @Tags 管理端-佣金管理
// @Produce json
// @Security Bearer
// @Param item_id path string true "商品行或配送方式ID"
// @Success 200 {object} response.Response{data=models.CommissionLine}
// @Router /api/v1/admin/commission/lines/{item_id} [get]
func (h *CommissionHandler) GetLine(c *gin.Context) {
	line, err := h.commissionService.GetCommissionLine(c.Request.Context(), c.Param("item_id"))
	handler.MustSucceed(c, err, line)
}
