// internal/service/affiliate/domain/errors.go
package domain

import "errors"

var (
	ErrAffiliateNotFound  = errors.New("affiliate not found")
	ErrReferralNotFound   = errors.New("referral not found")
	ErrCommissionNotFound = errors.New("commission not found")
	ErrPayoutNotFound     = errors.New("payout not found")

	// ErrInvalidReferralCode 表示推广码不存在或已失效
	ErrInvalidReferralCode = errors.New("invalid referral code")

	// ErrInvalidVisitorToken 表示访客令牌签名校验失败（被篡改）
	ErrInvalidVisitorToken = errors.New("invalid visitor token")

	// ErrInsufficientCommission 表示提现金额超过当前可提现余额
	ErrInsufficientCommission = errors.New("payout amount exceeds pending commission")

	// ErrBelowMinimumPayout 表示提现金额低于全局最低提现额
	ErrBelowMinimumPayout = errors.New("payout amount below minimum")

	// ErrInvalidState 表示佣金/提现/推荐记录的非法状态流转
	ErrInvalidState = errors.New("invalid status transition")

	// ErrTxConflict 表示计数器的版本守卫写入发现并发修改，调用方应重读重试
	ErrTxConflict = errors.New("optimistic update conflict")
)
