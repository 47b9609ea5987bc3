// internal/service/affiliate/infrastructure/click_gate_redis.go
package infrastructure

import (
	"context"
	"fmt"

	"warung/internal/pkg/redis"
	"warung/internal/service/affiliate/domain"
)

const clickGateScriptName = "affiliate_click_gate"

// ClickGateRedisAdapter 是 domain.ClickGate 的 Redis 实现。
// 同一个 (推广码, 访客) 组合在 TTL 窗口内只放行一次，
// 把重复点击挡在数据库唯一索引之前。
type ClickGateRedisAdapter struct {
	redisClient *redis.Client
}

var _ domain.ClickGate = (*ClickGateRedisAdapter)(nil)

// NewClickGateRedisAdapter 创建点击挡板适配器。
// 它在创建时会加载需要的 Lua 脚本。
func NewClickGateRedisAdapter(redisClient *redis.Client) (*ClickGateRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(clickGateScriptName, clickGateScript); err != nil {
		return nil, fmt.Errorf("failed to load click gate script: %w", err)
	}
	return &ClickGateRedisAdapter{redisClient: redisClient}, nil
}

// Allow 实现 domain.ClickGate
func (a *ClickGateRedisAdapter) Allow(ctx context.Context, code, visitorID string) (bool, error) {
	key := fmt.Sprintf("affiliate:click:{%s}:%s", code, visitorID)

	result, err := a.redisClient.RunScript(ctx, clickGateScriptName, []string{key})
	if err != nil {
		return false, fmt.Errorf("click gate failed to run script: %w", err)
	}

	passed, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	return passed == 1, nil
}

var clickGateScript = `
-- KEYS[1]: 点击挡板的 Key, 例如: affiliate:click:{CODE123}:visitor-abc

-- 1. Key 已存在说明这个访客最近点过同一条链接
if redis.call('exists', KEYS[1]) == 1 then
    return 0 -- 返回 0, 代表重复点击
end

-- 2. 首次点击，写入挡板并设置 24 小时过期
redis.call('set', KEYS[1], 1, 'EX', 86400)
return 1 -- 返回 1, 代表放行
`
