package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, handlers ...gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	router := gin.New()
	router.GET("/test", handlers...)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestSuccess(t *testing.T) {
	w, resp := serve(t, func(c *gin.Context) {
		Success(c, gin.H{"key": "value"})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "success", resp.Message)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "value", data["key"])

	_, resp = serve(t, func(c *gin.Context) { Success(c, nil) })
	assert.Nil(t, resp.Data)

	_, resp = serve(t, func(c *gin.Context) { SuccessWithMessage(c, "已启动", gin.H{"result": true}) })
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "已启动", resp.Message)
}

func TestSuccessPage(t *testing.T) {
	tests := []struct {
		name  string
		total int64
		items []string
	}{
		{name: "with items", total: 100, items: []string{"a", "b", "c"}},
		{name: "empty", total: 0, items: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := serve(t, func(c *gin.Context) {
				SuccessPage(c, tt.total, 1, 10, tt.items)
			})

			data, ok := resp.Data.(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, float64(tt.total), data["total"])
			assert.Equal(t, float64(1), data["page"])
			assert.Equal(t, float64(10), data["page_size"])
			items, ok := data["items"].([]interface{})
			require.True(t, ok)
			assert.Len(t, items, len(tt.items))
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name        string
		fail        func(*gin.Context, string)
		code        int
		defaultText string
	}{
		{name: "param", fail: ParamError, code: CodeParamError, defaultText: "参数错误"},
		{name: "auth", fail: AuthError, code: CodeAuthFailed, defaultText: "认证失败"},
		{name: "not found", fail: NotFoundError, code: CodeResourceNotFound, defaultText: "资源不存在"},
		{name: "conflict", fail: ConflictError, code: CodeStateConflict, defaultText: "当前状态不允许该操作"},
		{name: "duplicate", fail: DuplicateError, code: CodeDuplicateAction, defaultText: "重复操作"},
		{name: "server", fail: ServerError, code: CodeServerError, defaultText: "服务器内部错误"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := serve(t, func(c *gin.Context) { tt.fail(c, "") })
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.defaultText, resp.Message)
			assert.Nil(t, resp.Data)

			_, resp = serve(t, func(c *gin.Context) { tt.fail(c, "申请不在待审核状态") })
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, "申请不在待审核状态", resp.Message)
		})
	}
}

func TestError_UnknownCode(t *testing.T) {
	_, resp := serve(t, func(c *gin.Context) { Error(c, 9999, "") })

	assert.Equal(t, 9999, resp.Code)
	assert.Empty(t, resp.Message)
}

func TestAbort(t *testing.T) {
	called := false
	w, resp := serve(t, func(c *gin.Context) {
		Abort(c, CodeAuthFailed, "")
	}, func(c *gin.Context) {
		called = true
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, CodeAuthFailed, resp.Code)
	assert.Equal(t, "认证失败", resp.Message)
	assert.False(t, called)
}
