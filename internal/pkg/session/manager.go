// internal/pkg/session/manager.go
package session

import (
	"context"
	"fmt"
	"time"

	"warung/internal/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "push:session:"
	sessionTTL       = 24 * time.Hour
)

// Manager 在 Redis 里维护 用户 → 网关节点 的会话路由表。
// 多个网关节点水平扩展时，消息路由层据此找到用户所在的节点。
type Manager struct {
	redisClient *redis.Client
}

func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{redisClient: redisClient}
}

// SetUserGateway 记录用户当前连接在哪个网关节点上
func (m *Manager) SetUserGateway(ctx context.Context, userID, nodeID string) error {
	return m.redisClient.GetClient().Set(ctx, sessionKeyPrefix+userID, nodeID, sessionTTL).Err()
}

// GetUserGateway 查询用户所在的网关节点，没有在线会话时返回空字符串
func (m *Manager) GetUserGateway(ctx context.Context, userID string) (string, error) {
	nodeID, err := m.redisClient.GetClient().Get(ctx, sessionKeyPrefix+userID).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up session for user %s: %w", userID, err)
	}
	return nodeID, nil
}

// RemoveUserGateway 连接断开时清理会话记录。
// 只在记录仍然指向本节点时删除，避免误删用户重连到其他节点后的新会话。
func (m *Manager) RemoveUserGateway(ctx context.Context, userID, nodeID string) error {
	current, err := m.GetUserGateway(ctx, userID)
	if err != nil {
		return err
	}
	if current != nodeID {
		return nil
	}
	return m.redisClient.GetClient().Del(ctx, sessionKeyPrefix+userID).Err()
}
