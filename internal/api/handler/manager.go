package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/api/middleware"
	"github.com/qs3c/apply_go_server/internal/model/dto"
	"github.com/qs3c/apply_go_server/internal/pkg/response"
	"github.com/qs3c/apply_go_server/internal/service"
	"github.com/qs3c/apply_go_server/internal/supervisor"
)

// ManagerController 由 supervisor.Manager 实现
type ManagerController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context, force bool) error
	Status() *dto.ManagerStatus
}

type ManagerHandler struct {
	manager    ManagerController
	appService *service.ApplicationService
}

func NewManagerHandler(manager ManagerController, appService *service.ApplicationService) *ManagerHandler {
	return &ManagerHandler{
		manager:    manager,
		appService: appService,
	}
}

func (h *ManagerHandler) snapshot() *dto.ManagerStatus {
	status := h.manager.Status()
	stats, err := h.appService.Stats()
	if err != nil {
		zap.L().Warn("load queue stats failed", zap.Error(err))
		return status
	}
	status.Queue = stats
	return status
}

// Status 任务管理器、worker 和队列快照
// GET /api/v1/manager/status
func (h *ManagerHandler) Status(c *gin.Context) {
	response.Success(c, h.snapshot())
}

// Start 启动 worker
// POST /api/v1/manager/start
func (h *ManagerHandler) Start(c *gin.Context) {
	if err := h.manager.Start(c.Request.Context()); err != nil {
		if errors.Is(err, supervisor.ErrAlreadyActive) {
			response.DuplicateError(c, "任务管理器已在其他实例运行")
			return
		}
		zap.L().Error("start task manager failed", zap.Error(err))
		response.ServerError(c, "启动失败")
		return
	}

	operator, _ := middleware.GetOperator(c)
	zap.L().Info("task manager start requested", zap.String("operator", operator))
	response.SuccessWithMessage(c, "已启动", h.snapshot())
}

// Stop 停止 worker，force=true 时直接结束进程
// POST /api/v1/manager/stop
func (h *ManagerHandler) Stop(c *gin.Context) {
	force := c.Query("force") == "true"

	// 客户端断开不应打断优雅停止
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.manager.Stop(ctx, force); err != nil {
		zap.L().Error("stop task manager failed", zap.Error(err))
		response.ServerError(c, "停止失败")
		return
	}

	operator, _ := middleware.GetOperator(c)
	zap.L().Info("task manager stop requested", zap.String("operator", operator), zap.Bool("force", force))
	response.SuccessWithMessage(c, "已停止", h.snapshot())
}
