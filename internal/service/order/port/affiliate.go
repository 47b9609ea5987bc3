// internal/service/order/port/affiliate.go
package port

import "context"

// OrderAttribution 描述一笔刚创建的订单里与推广归因相关的信息
type OrderAttribution struct {
	OrderID       string
	OrderTotal    int64
	ItemCount     int
	UserID        string // 登录用户，游客为空
	ReferralCode  string // 显式携带的推广码，可为空
	VisitorToken  string // 服务端签发的访客令牌，可为空
	IsNewCustomer bool
}

// AffiliateAttribution 是订单服务对推广子系统的出站端口。
// 归因失败不阻塞下单流程，找不到可归因记录是静默空操作。
// 返回解析出的推广用户 ID 和访客 ID，未归因时两者都为空。
type AffiliateAttribution interface {
	AttributeOrder(ctx context.Context, attribution OrderAttribution) (affiliateID, visitorID string, err error)
}
