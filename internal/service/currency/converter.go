// internal/service/currency/converter.go
package currency

import (
	"context"
	"encoding/json"
	"time"

	"warung/internal/pkg/logger"
	"warung/internal/pkg/redis"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// 所有 Provider 都失败时使用的保底汇率：100 IDR / JPY。
// 精度不重要，展示用途，宁可给一个粗略值也不能让页面空白。
const fallbackIDRPerJPY = 100.0

const (
	rateCacheKey = "currency:rate:jpy_idr"
	rateCacheTTL = time.Hour
)

// Rate 是一次汇率查询的结果。Degraded 为 true 表示
// 这是保底值或过期缓存，而不是 Provider 的新鲜数据。
type Rate struct {
	Rate      float64   `json:"rate"`
	Timestamp time.Time `json:"timestamp"`
	Degraded  bool      `json:"degraded"`
}

// Converter 按顺序尝试多个汇率 Provider，结果缓存一小时。
// GetRate 永远不返回错误：链路全挂时降级到保底汇率。
type Converter struct {
	providers []Provider
	redis     *redis.Client
	tracer    trace.Tracer
}

func NewConverter(providers []Provider, redisClient *redis.Client, tracer trace.Tracer) *Converter {
	return &Converter{providers: providers, redis: redisClient, tracer: tracer}
}

// GetRate 返回当前 JPY→IDR 汇率
func (c *Converter) GetRate(ctx context.Context) *Rate {
	ctx, span := c.tracer.Start(ctx, "currency.GetRate")
	defer span.End()

	if cached := c.fromCache(ctx); cached != nil {
		span.AddEvent("Rate served from cache.")
		return cached
	}

	for _, provider := range c.providers {
		rate, err := provider.FetchRate(ctx)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("provider", provider.Name()).
				Msg("⚠️ currency provider failed, trying next")
			continue
		}
		result := &Rate{Rate: rate, Timestamp: time.Now()}
		c.toCache(ctx, result)
		logger.Ctx(ctx).Info().Float64("rate", rate).Str("provider", provider.Name()).
			Msg("currency rate refreshed")
		return result
	}

	logger.Ctx(ctx).Error().Msg("🛑 all currency providers failed, serving fallback rate")
	span.AddEvent("All providers failed, fallback rate used.")
	return &Rate{Rate: fallbackIDRPerJPY, Timestamp: time.Now(), Degraded: true}
}

func (c *Converter) fromCache(ctx context.Context) *Rate {
	if c.redis == nil {
		return nil
	}
	raw, err := c.redis.GetClient().Get(ctx, rateCacheKey).Result()
	if err != nil {
		if err != goredis.Nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("currency cache read failed")
		}
		return nil
	}
	var rate Rate
	if err := json.Unmarshal([]byte(raw), &rate); err != nil {
		return nil
	}
	return &rate
}

func (c *Converter) toCache(ctx context.Context, rate *Rate) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(rate)
	if err != nil {
		return
	}
	if err := c.redis.GetClient().Set(ctx, rateCacheKey, raw, rateCacheTTL).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("currency cache write failed")
	}
}
