// internal/service/order/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"

	"warung/internal/pkg/logger"
	"warung/internal/pkg/mq"
	"warung/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
)

// OrderEventProducer 把订单领域事件发布到 order-events topic
type OrderEventProducer struct {
	writer *kafka.Writer
}

func NewOrderEventProducer(writer *kafka.Writer) *OrderEventProducer {
	return &OrderEventProducer{writer: writer}
}

// Publish 实现 domain.EventProducer
func (p *OrderEventProducer) Publish(ctx context.Context, event *domain.OrderEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to marshal order event")
		return err
	}

	// 以订单 ID 为 key，保证同一订单的事件落在同一分区内有序
	if err := mq.ProduceMessage(ctx, p.writer, []byte(event.OrderID), eventBytes); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to produce order event to kafka")
		return err
	}
	return nil
}
