package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/model/dto"
	"github.com/qs3c/apply_go_server/internal/pkg/response"
	"github.com/qs3c/apply_go_server/internal/service"
)

type ApplicationHandler struct {
	appService *service.ApplicationService
}

func NewApplicationHandler(appService *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{
		appService: appService,
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "无效的申请ID")
		return 0, false
	}
	return id, true
}

// applicationError 把服务层错误映射为响应码
func applicationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrApplicationNotFound), errors.Is(err, service.ErrScreenshotNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrNotPendingReview), errors.Is(err, service.ErrNotRetryable):
		response.ConflictError(c, err.Error())
	case errors.Is(err, service.ErrInvalidOutcome), errors.Is(err, service.ErrNoValidURL):
		response.ParamError(c, err.Error())
	default:
		zap.L().Error("application request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.ServerError(c, "")
	}
}

// Enqueue 批量提交职位链接
// POST /api/v1/applications
func (h *ApplicationHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.appService.Enqueue(c.Request.Context(), req.URLs)
	if err != nil {
		applicationError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已加入队列", resp)
}

// List 申请列表
// GET /api/v1/applications
func (h *ApplicationHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status := c.Query("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.appService.List(page, pageSize, status)
	if err != nil {
		applicationError(c, err)
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get 申请详情
// GET /api/v1/applications/:id
func (h *ApplicationHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	detail, err := h.appService.Get(id)
	if err != nil {
		applicationError(c, err)
		return
	}

	response.Success(c, detail)
}

// Logs 处理日志，按时间正序
// GET /api/v1/applications/:id/logs
func (h *ApplicationHandler) Logs(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	items, err := h.appService.Logs(id)
	if err != nil {
		applicationError(c, err)
		return
	}

	response.Success(c, items)
}

// Screenshot 审核截图，本地文件直接返回，OSS 跳转到签名地址
// GET /api/v1/applications/:id/screenshot
func (h *ApplicationHandler) Screenshot(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	loc, err := h.appService.Screenshot(id)
	if err != nil {
		applicationError(c, err)
		return
	}

	if loc.URL != "" {
		c.Redirect(http.StatusFound, loc.URL)
		return
	}
	c.File(loc.Path)
}

// Review 记录人工处理结果
// POST /api/v1/applications/:id/review
func (h *ApplicationHandler) Review(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.appService.Review(id, req.Outcome); err != nil {
		applicationError(c, err)
		return
	}

	detail, err := h.appService.Get(id)
	if err != nil {
		applicationError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已记录", detail)
}

// Retry 同一链接重新入队
// POST /api/v1/applications/:id/retry
func (h *ApplicationHandler) Retry(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	newID, err := h.appService.Retry(c.Request.Context(), id)
	if err != nil {
		applicationError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已重新入队", dto.RetryResponse{ApplicationID: newID})
}
