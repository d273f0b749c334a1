package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/membership-gin/internal/auth"
)

// NewUpgrader 创建升级器,allowedOrigins 为空或包含 * 时允许任意来源
func NewUpgrader(allowedOrigins []string) gorillaWS.Upgrader {
	return gorillaWS.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// WebSocketHandler 实时通知推送
// token 通过 query 参数传递;管理员接收管理员广播和自己的消息,会员只接收自己的消息
func WebSocketHandler(hub *Hub, tokens *auth.TokenManager, upgrader gorillaWS.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从 query 参数获取 token
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "kind": "authentication", "message": "missing token"})
			return
		}

		// 2. 验证 token
		identity, err := tokens.Parse(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "kind": "authentication", "message": err.Error()})
			return
		}
		if identity.ActorType != auth.ActorAdmin && identity.ActorType != auth.ActorMember {
			c.JSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "kind": "authorization", "message": "you do not have permission to perform this action"})
			return
		}

		// 3. 升级连接,失败时 upgrader 已写入响应
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.WithError(err).Warn("failed to upgrade websocket connection")
			return
		}

		// 4. 创建客户端
		client := NewClient(
			uuid.New().String(),
			identity.ActorID,
			identity.ActorType,
			hub,
			conn,
		)

		// 5. 注册客户端
		select {
		case hub.Register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		// 6. 启动 readPump 和 writePump
		go client.ReadPump()
		go client.WritePump()
	}
}
