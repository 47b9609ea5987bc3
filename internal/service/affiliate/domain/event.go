// internal/service/affiliate/domain/event.go
package domain

import "time"

// 推广事件类型，推送网关按 AffiliateID 路由给订阅的仪表盘
const (
	EventClick      = "affiliate.click"
	EventRegistered = "affiliate.registered"
	EventCommission = "affiliate.commission"
	EventPayout     = "affiliate.payout"
)

// AffiliateEvent 是发布到 affiliate-events topic 的领域事件
type AffiliateEvent struct {
	Type         string    `json:"type"`
	AffiliateID  string    `json:"affiliate_id"`
	ReferralCode string    `json:"referral_code,omitempty"`
	OrderID      string    `json:"order_id,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	Status       string    `json:"status,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
