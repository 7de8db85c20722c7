package middleware

import (
	"net/http"
	"strings"

	"go-file-share/pkg/logger"
	"go-file-share/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDKey   = "userID"
	usernameKey = "username"
)

// Identify 解析可选的 Bearer token，把调用者写入上下文。
// 没有 token 时，requireToken 为 false 则交给处理器使用表单中的 user_id/username。
func Identify(tokens *utils.TokenIssuer, requireToken bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if requireToken {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization header is required."})
				return
			}
			c.Next()
			return
		}

		// 通常Authorization格式为: "Bearer token"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") || tokens == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid authorization format."})
			return
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil {
			logger.L.Debug("Rejected bearer token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token."})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(usernameKey, claims.Username)
		c.Next()
	}
}

// Caller 返回 token 中的调用者，ok 为 false 表示请求没有携带 token
func Caller(c *gin.Context) (userID uint, username string, ok bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return 0, "", false
	}
	userID, ok = value.(uint)
	if !ok || userID == 0 {
		return 0, "", false
	}
	return userID, c.GetString(usernameKey), true
}
