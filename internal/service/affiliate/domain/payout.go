// internal/service/affiliate/domain/payout.go
package domain

import "time"

// PayoutStatus 定义了提现申请的处理状态
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutRejected   PayoutStatus = "rejected"
)

// Payout 是一次提现申请。申请成功即从可提现余额中预留金额，
// 银行信息是申请时刻的快照，之后修改资料不影响在途提现。
type Payout struct {
	ID          string
	AffiliateID string
	Amount      int64 // IDR
	Method      string
	Status      PayoutStatus

	BankName          string
	BankAccountName   string
	BankAccountNumber string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}

// NewPayout 创建一笔待处理的提现申请
func NewPayout(id, affiliateID string, amount int64, method string, bankName, accountName, accountNumber string) *Payout {
	now := time.Now()
	return &Payout{
		ID:                id,
		AffiliateID:       affiliateID,
		Amount:            amount,
		Method:            method,
		Status:            PayoutPending,
		BankName:          bankName,
		BankAccountName:   accountName,
		BankAccountNumber: accountNumber,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// StartProcessing 管理员开始处理，不发生余额变动
func (p *Payout) StartProcessing() error {
	if p.Status != PayoutPending {
		return ErrInvalidState
	}
	p.Status = PayoutProcessing
	p.UpdatedAt = time.Now()
	return nil
}

// Complete 打款完成。只有处理中的提现可以完成，终态不可逆。
func (p *Payout) Complete() error {
	if p.Status != PayoutProcessing {
		return ErrInvalidState
	}
	now := time.Now()
	p.Status = PayoutCompleted
	p.ProcessedAt = &now
	p.UpdatedAt = now
	return nil
}

// Reject 拒绝提现，预留的金额退回可提现余额。终态不可逆。
func (p *Payout) Reject() error {
	if p.Status != PayoutProcessing {
		return ErrInvalidState
	}
	now := time.Now()
	p.Status = PayoutRejected
	p.ProcessedAt = &now
	p.UpdatedAt = now
	return nil
}
