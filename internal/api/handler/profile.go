package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/api/middleware"
	"github.com/qs3c/apply_go_server/internal/model/dto"
	"github.com/qs3c/apply_go_server/internal/pkg/response"
	"github.com/qs3c/apply_go_server/internal/service"
)

type ProfileHandler struct {
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

func profileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrUnknownField), errors.Is(err, service.ErrValueNotCandidate):
		response.ParamError(c, err.Error())
	default:
		zap.L().Error("profile request failed", zap.Error(err))
		response.ServerError(c, "")
	}
}

// Conflicts 未消解的资料冲突
// GET /api/v1/profile/conflicts
func (h *ProfileHandler) Conflicts(c *gin.Context) {
	items, err := h.profileService.Conflicts()
	if err != nil {
		profileError(c, err)
		return
	}
	response.Success(c, items)
}

// Resolve 选定冲突字段的取值
// POST /api/v1/profile/conflicts/resolve
func (h *ProfileHandler) Resolve(c *gin.Context) {
	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.profileService.ResolveConflict(req.Field, req.Value); err != nil {
		profileError(c, err)
		return
	}

	operator, _ := middleware.GetOperator(c)
	zap.L().Info("profile conflict resolved", zap.String("field", req.Field), zap.String("operator", operator))

	items, err := h.profileService.Conflicts()
	if err != nil {
		profileError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已保存", items)
}
