package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminKeyAuth 管理接口共享密钥校验中间件。
//
// 身份体系不在本服务范围内，管理接口只做部署级的共享密钥校验。
// 密钥未配置时管理接口整体不可用。
func AdminKeyAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Admin-Key")

		if adminKey == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"message": "无权访问管理接口",
			})
			return
		}

		c.Next()
	}
}
