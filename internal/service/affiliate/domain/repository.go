// internal/service/affiliate/domain/repository.go
package domain

import "context"

// AffiliateRepository 是推广用户的持久化端口
type AffiliateRepository interface {
	Save(ctx context.Context, affiliate *AffiliateUser) error
	FindByID(ctx context.Context, id string) (*AffiliateUser, error)
	FindByUserID(ctx context.Context, userID string) (*AffiliateUser, error)
	FindByReferralCode(ctx context.Context, code string) (*AffiliateUser, error)
	List(ctx context.Context) ([]*AffiliateUser, error)

	// UpdateCounters 以 Version 为守卫写回计数器，自增版本号。
	// 版本不匹配返回 ErrTxConflict，调用方应重读后重试。
	UpdateCounters(ctx context.Context, affiliate *AffiliateUser) error

	// UpdateBankDetails 只写收款资料三列，不触碰计数器和版本号，
	// 并发的记账写入不会被资料编辑覆盖。
	UpdateBankDetails(ctx context.Context, affiliateID, bankName, accountName, accountNumber string) error
}

// ReferralRepository 是推荐记录的持久化端口
type ReferralRepository interface {
	Save(ctx context.Context, referral *Referral) error
	FindByID(ctx context.Context, id string) (*Referral, error)

	// FindByCodeAndVisitor 按 (推广码, 访客ID) 唯一键查找，用于点击去重
	FindByCodeAndVisitor(ctx context.Context, code, visitorID string) (*Referral, error)

	// FindLatestByVisitor 返回该访客最近的一条指定状态的记录
	FindLatestByVisitor(ctx context.Context, visitorID string, statuses ...ReferralStatus) (*Referral, error)

	// FindLatestByUser 返回该注册用户最近的一条指定状态的记录
	FindLatestByUser(ctx context.Context, userID string, statuses ...ReferralStatus) (*Referral, error)

	ListByReferrer(ctx context.Context, referrerID string) ([]*Referral, error)
}

// CommissionRepository 是佣金的持久化端口
type CommissionRepository interface {
	Save(ctx context.Context, commission *Commission) error
	FindByID(ctx context.Context, id string) (*Commission, error)
	ListByAffiliate(ctx context.Context, affiliateID string) ([]*Commission, error)
	ListByAffiliateAndStatus(ctx context.Context, affiliateID string, status CommissionStatus) ([]*Commission, error)
}

// PayoutRepository 是提现申请的持久化端口
type PayoutRepository interface {
	Save(ctx context.Context, payout *Payout) error
	FindByID(ctx context.Context, id string) (*Payout, error)
	ListByAffiliate(ctx context.Context, affiliateID string) ([]*Payout, error)
	ListPending(ctx context.Context) ([]*Payout, error)
}

// SettingsRepository 是全局设置单例的持久化端口
type SettingsRepository interface {
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, settings *Settings) error
}

// ClickGate 是点击去重的快速通道。Allow 返回 false 表示
// 这个 (推广码, 访客) 组合近期已经处理过，可以直接跳过。
// 它只是挡板，(code, visitor) 的数据库唯一索引才是最终裁决。
type ClickGate interface {
	Allow(ctx context.Context, code, visitorID string) (bool, error)
}

// RuleEngine 评估佣金资格规则
type RuleEngine interface {
	Evaluate(rule string, fact Fact) (bool, error)
}

// Fact 是规则评估的输入
type Fact struct {
	OrderTotal    int64 `json:"order_total"`
	ItemCount     int   `json:"item_count"`
	IsNewCustomer bool  `json:"is_new_customer"`
}

// Locker 在一个分布式互斥区内执行 fn，
// 用于防止两个管理员并发处理同一条佣金/提现。
type Locker interface {
	WithLock(ctx context.Context, resourceID string, fn func() error) error
}

// EventProducer 发布推广领域事件
type EventProducer interface {
	Publish(ctx context.Context, event *AffiliateEvent) error
}
