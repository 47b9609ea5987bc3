// internal/service/affiliate/domain/commission.go
package domain

import "time"

// CommissionStatus 定义了佣金的审批状态
type CommissionStatus string

const (
	CommissionPending  CommissionStatus = "pending"
	CommissionApproved CommissionStatus = "approved"
	CommissionRejected CommissionStatus = "rejected"
	CommissionPaid     CommissionStatus = "paid"
)

// Commission 是一笔订单归因产生的佣金，每笔被归因的订单一条。
type Commission struct {
	ID          string
	AffiliateID string
	ReferralID  string // 关联的推荐记录，可为空
	OrderID     string
	OrderTotal  int64

	// 创建时刻的全局费率快照（百分比）。之后修改全局设置不影响已有佣金。
	Rate   int
	Amount int64

	Status    CommissionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComputeCommission 按创建时刻的全局费率计算佣金：floor(total * rate / 100)。
// 金额为非负整数 IDR，整数除法即向下取整。
func ComputeCommission(orderTotal int64, ratePercent int) int64 {
	if orderTotal <= 0 || ratePercent <= 0 {
		return 0
	}
	return orderTotal * int64(ratePercent) / 100
}

// NewCommission 创建一笔待审批佣金
func NewCommission(id, affiliateID, referralID, orderID string, orderTotal int64, ratePercent int) *Commission {
	now := time.Now()
	return &Commission{
		ID:          id,
		AffiliateID: affiliateID,
		ReferralID:  referralID,
		OrderID:     orderID,
		OrderTotal:  orderTotal,
		Rate:        ratePercent,
		Amount:      ComputeCommission(orderTotal, ratePercent),
		Status:      CommissionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Approve 审批通过。注意：不挪动推广用户的任何计数器，
// PendingCommission 的语义是"可提现余额"而不是"待审批金额"。
func (c *Commission) Approve() error {
	if c.Status != CommissionPending {
		return ErrInvalidState
	}
	c.Status = CommissionApproved
	c.UpdatedAt = time.Now()
	return nil
}

// Reject 拒绝佣金，对应金额从推广用户可提现余额中移除
func (c *Commission) Reject() error {
	if c.Status != CommissionPending {
		return ErrInvalidState
	}
	c.Status = CommissionRejected
	c.UpdatedAt = time.Now()
	return nil
}

// MarkPaid 佣金随提现完成打款
func (c *Commission) MarkPaid() error {
	if c.Status != CommissionApproved {
		return ErrInvalidState
	}
	c.Status = CommissionPaid
	c.UpdatedAt = time.Now()
	return nil
}
