package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/model/dto"
	"github.com/qs3c/apply_go_server/internal/pkg/response"
	"github.com/qs3c/apply_go_server/internal/service"
)

type AnswerHandler struct {
	answerService *service.AnswerService
}

func NewAnswerHandler(answerService *service.AnswerService) *AnswerHandler {
	return &AnswerHandler{
		answerService: answerService,
	}
}

func answerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAnswerNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrEmptyAnswer):
		response.ParamError(c, err.Error())
	default:
		zap.L().Error("answer request failed", zap.Error(err))
		response.ServerError(c, "")
	}
}

// List 标准答案列表
// GET /api/v1/answers
func (h *AnswerHandler) List(c *gin.Context) {
	answers, err := h.answerService.List()
	if err != nil {
		answerError(c, err)
		return
	}
	response.Success(c, answers)
}

// Create 新增标准答案
// POST /api/v1/answers
func (h *AnswerHandler) Create(c *gin.Context) {
	var req dto.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	answer, err := h.answerService.Create(req.Question, req.Answer)
	if err != nil {
		answerError(c, err)
		return
	}
	response.SuccessWithMessage(c, "创建成功", answer)
}

// Update 修改标准答案
// PUT /api/v1/answers/:id
func (h *AnswerHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的答案ID")
		return
	}

	var req dto.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	answer, err := h.answerService.Update(id, req.Question, req.Answer)
	if err != nil {
		answerError(c, err)
		return
	}
	response.SuccessWithMessage(c, "更新成功", answer)
}
