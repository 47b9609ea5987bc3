// internal/service/push/hub.go
package push

import (
	"context"
	"sync"

	"warung/internal/pkg/logger"
)

// Hub 维护所有活跃的 WebSocket 连接，并按订阅键投递消息。
// 顾客用自己的 userId 订阅订单事件，推广用户用 affiliateId 订阅仪表盘事件。
type Hub struct {
	clients    map[string]*Client // 订阅键 → 连接
	register   chan *Client
	unregister chan *Client
	lock       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run 处理连接的注册与注销，直到 ctx 取消
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			// 同一订阅键的旧连接被新连接顶掉
			if old, ok := h.clients[client.subscriptionKey]; ok {
				close(old.send)
			}
			h.clients[client.subscriptionKey] = client
			h.lock.Unlock()
			logger.Ctx(ctx).Info().Str("key", client.subscriptionKey).Msg("client registered")

		case client := <-h.unregister:
			h.lock.Lock()
			if current, ok := h.clients[client.subscriptionKey]; ok && current == client {
				delete(h.clients, client.subscriptionKey)
				close(client.send)
			}
			h.lock.Unlock()
			logger.Ctx(ctx).Info().Str("key", client.subscriptionKey).Msg("client unregistered")

		case <-ctx.Done():
			h.lock.Lock()
			for key, client := range h.clients {
				close(client.send)
				delete(h.clients, key)
			}
			h.lock.Unlock()
			return ctx.Err()
		}
	}
}

// Deliver 把消息投递给订阅键匹配的连接。
// 没有匹配的在线连接是正常情况（用户连在别的节点或已离线）。
// 发送全程持有读锁：send 通道只会在写锁内被关闭，
// 锁内发送保证不会写到已关闭的通道上。
func (h *Hub) Deliver(key string, message []byte) bool {
	h.lock.RLock()
	defer h.lock.RUnlock()
	client, ok := h.clients[key]
	if !ok {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		// 写缓冲打满说明连接已经不健康，丢弃消息由客户端重连恢复
		return false
	}
}
