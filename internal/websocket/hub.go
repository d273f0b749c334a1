package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mautops/membership-gin/internal/auth"
	"github.com/sirupsen/logrus"
)

// Hub 管理所有 WebSocket 连接
type Hub struct {
	// 已注册的客户端
	clients map[*Client]bool

	// 广播消息到所有客户端
	Broadcast chan []byte

	// 注册新客户端
	Register chan *Client

	// 注销客户端
	Unregister chan *Client

	// 互斥锁，保护 clients map
	mu sync.RWMutex

	logger logrus.FieldLogger
	done   chan struct{}
	once   sync.Once
}

// NewHub 创建新的 Hub
func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan []byte),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run 运行 Hub,直到 Stop 被调用
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case message := <-h.Broadcast:
			h.deliver(message, func(*Client) bool { return true })

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止 Hub 并关闭所有客户端
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// PublishToAdmins 向所有在线管理员推送消息
func (h *Hub) PublishToAdmins(v interface{}) error {
	message, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal websocket message: %w", err)
	}
	h.deliver(message, func(c *Client) bool { return c.ActorType == auth.ActorAdmin })
	return nil
}

// PublishToUser 向特定用户推送消息
func (h *Hub) PublishToUser(userID string, v interface{}) error {
	message, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal websocket message: %w", err)
	}
	h.deliver(message, func(c *Client) bool { return c.UserID == userID })
	return nil
}

// GetClientCount 获取在线客户端数量
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// deliver 向满足条件的客户端发送消息,发送缓冲已满的客户端被断开
func (h *Hub) deliver(message []byte, match func(*Client) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			h.logger.WithField("client_id", client.ID).Warn("websocket client too slow, disconnecting")
			h.remove(client)
		}
	}
}

// remove 调用方需持有写锁
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}
