// internal/service/affiliate/domain/affiliate.go
package domain

import "time"

// AffiliateUser 是推广用户聚合根，每个参与推广的用户一条。
// 各项计数器是账本（referral/commission/payout）的派生汇总，
// 所有修改都必须走版本守卫的原子写入以保持一致。
// 不变式: TotalCommission = PendingCommission + PaidCommission + 已拒绝移除的金额
type AffiliateUser struct {
	ID           string
	UserID       string
	ReferralCode string // 全局唯一

	TotalClicks       int64
	TotalReferrals    int64
	TotalCommission   int64 // IDR，历史累计产生的佣金
	PendingCommission int64 // IDR，可提现余额（含未审批部分，见下）
	PaidCommission    int64 // IDR，已打款

	BankName          string
	BankAccountName   string
	BankAccountNumber string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version 是乐观锁版本号，计数器写回时守卫
	Version int64
}

// AddClick 记录一次首次点击
func (a *AffiliateUser) AddClick() {
	a.TotalClicks++
	a.UpdatedAt = time.Now()
}

// AddCommission 记录一笔新产生的佣金。
// PendingCommission 语义是"可用于提现的余额"：佣金创建即计入，
// 审批通过本身不挪动任何计数器，资金只在提现完成/佣金被拒时移动。
func (a *AffiliateUser) AddCommission(amount int64) {
	a.TotalCommission += amount
	a.PendingCommission += amount
	a.TotalReferrals++
	a.UpdatedAt = time.Now()
}

// RemoveRejectedCommission 佣金被拒绝，从可提现余额中移除
func (a *AffiliateUser) RemoveRejectedCommission(amount int64) {
	a.PendingCommission -= amount
	a.UpdatedAt = time.Now()
}

// EarmarkPayout 提现申请成功时立刻从可提现余额中扣除（预留）
func (a *AffiliateUser) EarmarkPayout(amount int64) error {
	if amount > a.PendingCommission {
		return ErrInsufficientCommission
	}
	a.PendingCommission -= amount
	a.UpdatedAt = time.Now()
	return nil
}

// ReturnPayout 提现被拒绝，预留的资金退回可提现余额
func (a *AffiliateUser) ReturnPayout(amount int64) {
	a.PendingCommission += amount
	a.UpdatedAt = time.Now()
}

// SettlePayout 提现完成，金额计入已打款
func (a *AffiliateUser) SettlePayout(amount int64) {
	a.PaidCommission += amount
	a.UpdatedAt = time.Now()
}
