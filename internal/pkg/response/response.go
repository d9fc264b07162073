package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码，HTTP 状态码始终为 200，由 code 区分结果
const (
	CodeSuccess          = 0
	CodeParamError       = 1000
	CodeAuthFailed       = 1001
	CodeResourceNotFound = 1003
	CodeStateConflict    = 1004
	CodeDuplicateAction  = 1005
	CodeServerError      = 5000
)

var codeMessages = map[int]string{
	CodeSuccess:          "success",
	CodeParamError:       "参数错误",
	CodeAuthFailed:       "认证失败",
	CodeResourceNotFound: "资源不存在",
	CodeStateConflict:    "当前状态不允许该操作",
	CodeDuplicateAction:  "重复操作",
	CodeServerError:      "服务器内部错误",
}

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type PageData struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}

func envelope(code int, message string, data interface{}) Response {
	if message == "" {
		message = codeMessages[code]
	}
	return Response{Code: code, Message: message, Data: data}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope(CodeSuccess, "", data))
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, envelope(CodeSuccess, message, data))
}

// SuccessPage 列表接口统一的分页结构
func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	Success(c, PageData{Total: total, Page: page, PageSize: pageSize, Items: items})
}

// Error message 为空时使用错误码的默认消息，未知错误码没有默认消息
func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, envelope(code, message, nil))
}

// Abort 写入错误并终止后续 handler，中间件使用
func Abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(http.StatusOK, envelope(code, message, nil))
}

func failWith(code int) func(c *gin.Context, message string) {
	return func(c *gin.Context, message string) {
		Error(c, code, message)
	}
}

var (
	ParamError     = failWith(CodeParamError)
	AuthError      = failWith(CodeAuthFailed)
	NotFoundError  = failWith(CodeResourceNotFound)
	ConflictError  = failWith(CodeStateConflict)
	DuplicateError = failWith(CodeDuplicateAction)
	ServerError    = failWith(CodeServerError)
)
