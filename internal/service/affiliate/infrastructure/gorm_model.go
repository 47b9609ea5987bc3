// internal/service/affiliate/infrastructure/gorm_model.go
package infrastructure

import "time"

// AffiliateModel 对应数据库中的 affiliates 表
type AffiliateModel struct {
	ID           string `gorm:"type:char(36);primarykey"`
	UserID       string `gorm:"type:char(36);not null;uniqueIndex"`
	ReferralCode string `gorm:"type:varchar(32);not null;uniqueIndex"`

	TotalClicks       int64 `gorm:"not null;default:0"`
	TotalReferrals    int64 `gorm:"not null;default:0"`
	TotalCommission   int64 `gorm:"not null;default:0"`
	PendingCommission int64 `gorm:"not null;default:0"`
	PaidCommission    int64 `gorm:"not null;default:0"`

	BankName          string `gorm:"type:varchar(64)"`
	BankAccountName   string `gorm:"type:varchar(128)"`
	BankAccountNumber string `gorm:"type:varchar(64)"`

	// 计数器写回的乐观锁版本号
	Version int64 `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (AffiliateModel) TableName() string {
	return "affiliates"
}

// ReferralModel 对应数据库中的 affiliate_referrals 表。
// (referral_code, visitor_id) 唯一索引是点击去重的最终裁决。
type ReferralModel struct {
	ID             string `gorm:"type:char(36);primarykey"`
	ReferralCode   string `gorm:"type:varchar(32);not null;uniqueIndex:idx_referral_code_visitor"`
	VisitorID      string `gorm:"type:varchar(64);not null;uniqueIndex:idx_referral_code_visitor"`
	ReferrerID     string `gorm:"type:char(36);not null;index"`
	ReferredUserID string `gorm:"type:char(36);index;default:''"`
	Status         string `gorm:"type:varchar(16);not null;index"`

	OrderID          string `gorm:"type:char(36);index;default:''"`
	OrderTotal       int64  `gorm:"not null;default:0"`
	CommissionAmount int64  `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (ReferralModel) TableName() string {
	return "affiliate_referrals"
}

// CommissionModel 对应数据库中的 affiliate_commissions 表。
// 一笔订单至多产生一笔佣金。
type CommissionModel struct {
	ID          string `gorm:"type:char(36);primarykey"`
	AffiliateID string `gorm:"type:char(36);not null;index"`
	ReferralID  string `gorm:"type:char(36);index;default:''"`
	OrderID     string `gorm:"type:char(36);not null;uniqueIndex"`
	OrderTotal  int64  `gorm:"not null;default:0"`
	Rate        int    `gorm:"not null;default:0"` // 创建时刻的费率快照（百分比）
	Amount      int64  `gorm:"not null;default:0"`
	Status      string `gorm:"type:varchar(16);not null;index"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (CommissionModel) TableName() string {
	return "affiliate_commissions"
}

// PayoutModel 对应数据库中的 affiliate_payouts 表
type PayoutModel struct {
	ID          string `gorm:"type:char(36);primarykey"`
	AffiliateID string `gorm:"type:char(36);not null;index"`
	Amount      int64  `gorm:"not null"`
	Method      string `gorm:"type:varchar(32)"`
	Status      string `gorm:"type:varchar(16);not null;index"`

	// 申请时刻的银行信息快照
	BankName          string `gorm:"type:varchar(64)"`
	BankAccountName   string `gorm:"type:varchar(128)"`
	BankAccountNumber string `gorm:"type:varchar(64)"`

	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

// TableName 指定表名
func (PayoutModel) TableName() string {
	return "affiliate_payouts"
}

// SettingsModel 对应数据库中的 affiliate_settings 表，单行单例
type SettingsModel struct {
	ID                    uint   `gorm:"primarykey"`
	DefaultCommissionRate int    `gorm:"not null;default:0"`
	MinPayoutAmount       int64  `gorm:"not null;default:0"`
	PayoutMethods         string `gorm:"type:text"` // 逗号分隔
	CommissionRule        string `gorm:"type:text"`
	UpdatedAt             time.Time
}

// TableName 指定表名
func (SettingsModel) TableName() string {
	return "affiliate_settings"
}
