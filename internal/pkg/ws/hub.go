package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/qs3c/apply_go_server/internal/pkg/pubsub"
)

// Hub 管理操作员的 websocket 连接，事件广播给所有连接
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Operator string
	Conn     *websocket.Conn
	mu       sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	zap.L().Info("websocket connected", zap.String("operator", client.Operator), zap.Int("total", total))
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	zap.L().Info("websocket disconnected", zap.String("operator", client.Operator))
}

// Broadcast 向所有连接发送消息，写失败只记录日志
func (h *Hub) Broadcast(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// 复制一份引用，避免长时间持锁
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.Conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			zap.L().Debug("websocket write failed", zap.String("operator", c.Operator), zap.Error(err))
		}
	}
	return nil
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Relay 把 worker 发布的事件转发给所有连接，直到 ctx 结束
func (h *Hub) Relay(ctx context.Context, sub *pubsub.Subscriber) error {
	return sub.Subscribe(ctx, func(ev *pubsub.Event) {
		if err := h.Broadcast(&Message{Type: ev.Type, Data: ev}); err != nil {
			zap.L().Debug("relay event failed", zap.String("type", ev.Type), zap.Error(err))
		}
	})
}
