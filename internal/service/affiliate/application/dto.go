// internal/service/affiliate/application/dto.go
package application

import (
	"time"

	"warung/internal/service/affiliate/domain"
)

// Config 是推广应用服务的运行参数
type Config struct {
	DefaultCommissionRate int    // 百分比，settings 未初始化时的种子值
	MinPayoutAmount       int64  // IDR，settings 未初始化时的种子值
	VisitorTokenSecret    string // 访客令牌 HMAC 密钥
	CounterMaxRetries     int    // 计数器乐观写回的最大重试次数
}

// RegisterAffiliateRequest 注册成为推广用户
type RegisterAffiliateRequest struct {
	UserID            string `json:"user_id"`
	BankName          string `json:"bank_name"`
	BankAccountName   string `json:"bank_account_name"`
	BankAccountNumber string `json:"bank_account_number"`
}

// TrackClickResult 是一次点击上报的结果。
// Counted 为 false 表示这是同一访客对同一条链接的重复点击。
type TrackClickResult struct {
	VisitorToken string `json:"visitor_token"`
	Counted      bool   `json:"counted"`
}

// OrderAttributionCommand 是订单侧发起的归因请求
type OrderAttributionCommand struct {
	OrderID       string
	OrderTotal    int64
	ItemCount     int
	UserID        string // 下单用户，游客为空
	ReferralCode  string // 下单时显式携带的推广码，可为空
	VisitorToken  string
	IsNewCustomer bool
}

// AttributionResult 是归因的结果。AffiliateID 为空表示没有归因。
type AttributionResult struct {
	AffiliateID  string
	VisitorID    string
	CommissionID string // 产生了佣金时非空
	Amount       int64
}

// RequestPayoutCommand 发起一笔提现申请
type RequestPayoutCommand struct {
	AffiliateID string `json:"affiliate_id"`
	Amount      int64  `json:"amount"`
	Method      string `json:"method"`
}

// UpdateSettingsRequest 更新全局推广设置
type UpdateSettingsRequest struct {
	DefaultCommissionRate int      `json:"default_commission_rate"`
	MinPayoutAmount       int64    `json:"min_payout_amount"`
	PayoutMethods         []string `json:"payout_methods"`
	CommissionRule        string   `json:"commission_rule"`
}

// Follower 是从推荐记录派生出来的"粉丝"视图，不单独存储
type Follower struct {
	UserID      string                `json:"user_id"`
	Status      domain.ReferralStatus `json:"status"`
	FirstSeenAt time.Time             `json:"first_seen_at"`
}

// Dashboard 聚合了推广用户仪表盘需要的数据
type Dashboard struct {
	Affiliate   *domain.AffiliateUser `json:"affiliate"`
	Referrals   []*domain.Referral    `json:"referrals"`
	Commissions []*domain.Commission  `json:"commissions"`
	Payouts     []*domain.Payout      `json:"payouts"`
}
