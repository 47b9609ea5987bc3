// internal/service/affiliate/infrastructure/kafka_producer.go
package infrastructure

import (
	"context"
	"encoding/json"

	"warung/internal/pkg/logger"
	"warung/internal/pkg/mq"
	"warung/internal/service/affiliate/domain"

	"github.com/segmentio/kafka-go"
)

// AffiliateEventProducer 把推广领域事件发布到 affiliate-events topic
type AffiliateEventProducer struct {
	writer *kafka.Writer
}

func NewAffiliateEventProducer(writer *kafka.Writer) *AffiliateEventProducer {
	return &AffiliateEventProducer{writer: writer}
}

// Publish 实现 domain.EventProducer
func (p *AffiliateEventProducer) Publish(ctx context.Context, event *domain.AffiliateEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to marshal affiliate event")
		return err
	}

	// 以推广用户 ID 为 key，推送网关按分区内顺序路由到对应的仪表盘连接
	if err := mq.ProduceMessage(ctx, p.writer, []byte(event.AffiliateID), eventBytes); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to produce affiliate event to kafka")
		return err
	}
	return nil
}
