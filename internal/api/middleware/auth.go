package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/apply_go_server/internal/pkg/jwt"
	"github.com/qs3c/apply_go_server/internal/pkg/response"
)

const (
	OperatorKey = "operator"
)

// Auth 操作员 JWT 认证
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, response.CodeAuthFailed, "请提供认证信息")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.Abort(c, response.CodeAuthFailed, "认证格式错误")
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.Abort(c, response.CodeAuthFailed, "认证失败或已过期")
			return
		}

		c.Set(OperatorKey, claims.Operator)
		c.Next()
	}
}

// GetOperator 从上下文获取操作员名
func GetOperator(c *gin.Context) (string, bool) {
	v, exists := c.Get(OperatorKey)
	if !exists {
		return "", false
	}
	operator, ok := v.(string)
	return operator, ok
}
