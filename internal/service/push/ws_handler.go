// internal/service/push/ws_handler.go
package push

import (
	"context"
	"net/http"

	"warung/internal/pkg/logger"
	"warung/internal/pkg/session"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// WsHandler 负责 WebSocket 升级和会话登记
type WsHandler struct {
	hub        *Hub
	sessionMgr *session.Manager
	nodeID     string
}

func NewWsHandler(hub *Hub, sessionMgr *session.Manager, nodeID string) *WsHandler {
	return &WsHandler{hub: hub, sessionMgr: sessionMgr, nodeID: nodeID}
}

// RegisterRoutes 在 ServeMux 上注册路由
func (h *WsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.serveWs)
}

// serveWs 把 HTTP 连接升级为 WebSocket 并注册进 Hub。
// userId 同时是消息订阅键：顾客传 userId，推广用户传 affiliateId。
func (h *WsHandler) serveWs(w http.ResponseWriter, r *http.Request) {
	subscriptionKey := r.URL.Query().Get("userId")
	if subscriptionKey == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: h.hub, conn: conn, send: make(chan []byte, 256), subscriptionKey: subscriptionKey}
	h.hub.register <- client

	if err := h.sessionMgr.SetUserGateway(context.Background(), subscriptionKey, h.nodeID); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Str("key", subscriptionKey).
			Msg("failed to record session, closing connection")
		conn.Close()
		return
	}

	go client.writePump()
	go func() {
		client.readPump()
		// 连接断开后清理会话路由记录
		if err := h.sessionMgr.RemoveUserGateway(context.Background(), subscriptionKey, h.nodeID); err != nil {
			logger.Ctx(context.Background()).Warn().Err(err).Str("key", subscriptionKey).
				Msg("failed to remove session record")
		}
	}()
}
