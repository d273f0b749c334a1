package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// AuthMiddleware JWT 认证中间件
func AuthMiddleware(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		// 移除 "Bearer " 前缀
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		identity, err := tokens.Parse(token)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		// 将调用方信息存储到上下文
		c.Set(identityKey, identity)
		c.Set("actor_id", identity.ActorID)
		c.Set("actor_type", identity.ActorType)
		c.Set("role", identity.Role)

		c.Next()
	}
}

// RequireActorType 限制调用方类型
func RequireActorType(actorTypes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		for _, t := range actorTypes {
			if identity.ActorType == t {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{
			"code":    http.StatusForbidden,
			"kind":    "authorization",
			"message": "you do not have permission to perform this action",
		})
		c.Abort()
	}
}

// IdentityFrom 从上下文获取调用方身份
func IdentityFrom(c *gin.Context) (*Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*Identity)
	return identity, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"kind":    "authentication",
		"message": message,
	})
	c.Abort()
}
