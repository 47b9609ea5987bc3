// internal/service/order/domain/event.go
package domain

import "time"

// 订单事件类型，推送网关按 UserKey 路由给订阅的前端
const (
	EventOrderCreated   = "order.created"
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent 是发布到 order-events topic 的领域事件
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	Status      Status    `json:"status"`
	TotalPrice  int64     `json:"total_price"`
	AffiliateID string    `json:"affiliate_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
