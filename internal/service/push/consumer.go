// internal/service/push/consumer.go
package push

import (
	"context"

	"warung/internal/pkg/logger"
	"warung/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// EventConsumer 消费领域事件 topic，把消息按 key 路由进 Hub。
// 订单事件以订单 ID 为 key，推广事件以推广用户 ID 为 key，
// 客户端用同样的键建立订阅。
type EventConsumer struct {
	reader *kafka.Reader
	hub    *Hub
}

func NewEventConsumer(reader *kafka.Reader, hub *Hub) *EventConsumer {
	return &EventConsumer{reader: reader, hub: hub}
}

// Run 拉取消息直到 ctx 取消。投递失败不阻塞位点提交：
// 推送是尽力而为的通道，客户端重连后以查询接口的数据为准。
func (c *EventConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Ctx(ctx).Error().Err(err).Msg("🛑 failed to fetch message from kafka")
			return err
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
		delivered := c.hub.Deliver(string(msg.Key), msg.Value)
		logger.Ctx(msgCtx).Debug().Str("key", string(msg.Key)).Bool("delivered", delivered).
			Str("topic", msg.Topic).Msg("event routed")

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(msgCtx).Warn().Err(err).Msg("failed to commit kafka offset")
		}
	}
}

// Close 关闭底层 reader
func (c *EventConsumer) Close() error {
	return c.reader.Close()
}
