package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/dumeirei/marketplace-backend/internal/common/handler"
	"github.com/dumeirei/marketplace-backend/internal/common/response"
	adminService "github.com/dumeirei/marketplace-backend/internal/service/admin"
)

// OperationLogHandler 操作日志处理器
type OperationLogHandler struct {
	service *adminService.OperationLogService
}

// NewOperationLogHandler 创建操作日志处理器
func NewOperationLogHandler(svc *adminService.OperationLogService) *OperationLogHandler {
	return &OperationLogHandler{service: svc}
}

// List 获取操作日志列表
// @Summary 获取操作日志列表
// @Tags 管理端-系统管理
// @Produce json
// @Security Bearer
// @Param offset query int false "偏移量" default(0)
// @Param limit query int false "每页数量" default(20)
// @Param admin_id query int false "管理员ID"
// @Param module query string false "模块"
// @Param action query string false "操作"
// @Param target_type query string false "目标类型"
// @Param target_id query int false "目标ID"
// @Param start_time query string false "开始时间 RFC3339"
// @Param end_time query string false "结束时间 RFC3339"
// @Success 200 {object} response.Response{data=response.PageData{list=[]models.OperationLog}}
// @Router /api/v1/admin/operation-logs [get]
func (h *OperationLogHandler) List(c *gin.Context) {
	var query adminService.OperationLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	p := handler.BindPagination(c)

	logs, total, err := h.service.List(c.Request.Context(), &query, p.Offset, p.Limit)
	handler.MustSucceedPage(c, err, logs, total, p.Offset, p.Limit)
}

// Get 获取操作日志详情
// @Summary 获取操作日志详情
// @Tags 管理端-系统管理
// @Produce json
// @Security Bearer
// @Param id path int true "日志ID"
// @Success 200 {object} response.Response{data=models.OperationLog}
// @Router /api/v1/admin/operation-logs/{id} [get]
func (h *OperationLogHandler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "日志")
	if !ok {
		return
	}

	log, err := h.service.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, log)
}
