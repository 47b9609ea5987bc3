// internal/service/affiliate/domain/referral.go
package domain

import "time"

// ReferralStatus 定义了推荐记录的漏斗状态机
// clicked → registered → ordered → approved|rejected → paid
type ReferralStatus string

const (
	ReferralClicked    ReferralStatus = "clicked"    // 首次点击推广链接
	ReferralRegistered ReferralStatus = "registered" // 访客完成注册
	ReferralOrdered    ReferralStatus = "ordered"    // 归因到一笔订单
	ReferralApproved   ReferralStatus = "approved"   // 关联佣金审批通过
	ReferralRejected   ReferralStatus = "rejected"   // 关联佣金被拒绝
	ReferralPaid       ReferralStatus = "paid"       // 佣金已随提现打款

	// ReferralPurchased 是旧版数据里 ordered 的别名，只读兼容
	ReferralPurchased ReferralStatus = "purchased"
)

// Referral 是一条推荐记录，每个被归因的访客/点击一条。
// (ReferralCode, VisitorID) 全局唯一，同一访客重复点击不会新建记录。
type Referral struct {
	ID             string
	ReferralCode   string
	ReferrerID     string // 推广用户（AffiliateUser）ID
	ReferredUserID string // 注册后回填，游客为空
	VisitorID      string
	Status         ReferralStatus

	// 订单归因后回填
	OrderID          string
	OrderTotal       int64
	CommissionAmount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewReferral 创建一条 clicked 状态的推荐记录
func NewReferral(id, code, referrerID, visitorID string) *Referral {
	now := time.Now()
	return &Referral{
		ID:           id,
		ReferralCode: code,
		ReferrerID:   referrerID,
		VisitorID:    visitorID,
		Status:       ReferralClicked,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MarkRegistered 访客完成注册
func (r *Referral) MarkRegistered(userID string) error {
	if r.Status != ReferralClicked {
		return ErrInvalidState
	}
	r.Status = ReferralRegistered
	r.ReferredUserID = userID
	r.UpdatedAt = time.Now()
	return nil
}

// MarkOrdered 归因到一笔订单。游客可以不经过 registered 直接下单。
func (r *Referral) MarkOrdered(orderID string, orderTotal, commissionAmount int64) error {
	if r.Status != ReferralClicked && r.Status != ReferralRegistered {
		return ErrInvalidState
	}
	r.Status = ReferralOrdered
	r.OrderID = orderID
	r.OrderTotal = orderTotal
	r.CommissionAmount = commissionAmount
	r.UpdatedAt = time.Now()
	return nil
}

// Approve 关联佣金审批通过
func (r *Referral) Approve() error {
	if r.Status != ReferralOrdered && r.Status != ReferralPurchased {
		return ErrInvalidState
	}
	r.Status = ReferralApproved
	r.UpdatedAt = time.Now()
	return nil
}

// Reject 关联佣金被拒绝
func (r *Referral) Reject() error {
	if r.Status != ReferralOrdered && r.Status != ReferralPurchased {
		return ErrInvalidState
	}
	r.Status = ReferralRejected
	r.UpdatedAt = time.Now()
	return nil
}

// MarkPaid 佣金随提现完成打款，漏斗到达终态
func (r *Referral) MarkPaid() error {
	if r.Status != ReferralApproved {
		return ErrInvalidState
	}
	r.Status = ReferralPaid
	r.UpdatedAt = time.Now()
	return nil
}

// CountsAsFollower 判断这条记录是否计入"粉丝"派生视图：
// 漏斗走到 registered 及之后、且能解析出用户身份的记录。
func (r *Referral) CountsAsFollower() bool {
	if r.ReferredUserID == "" {
		return false
	}
	switch r.Status {
	case ReferralRegistered, ReferralOrdered, ReferralApproved, ReferralPaid, ReferralPurchased:
		return true
	}
	return false
}
