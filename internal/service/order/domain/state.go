// internal/service/order/domain/state.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending    Status = "PENDING"    // 下单成功，等待管理员确认
	StatusConfirmed  Status = "CONFIRMED"  // 已确认，库存已扣减
	StatusCancelled  Status = "CANCELLED"  // 已取消（未扣减过库存）
	StatusProcessing Status = "PROCESSING" // 备货/配送中
	StatusCompleted  Status = "COMPLETED"  // 已完成
)

// PaymentStatus 定义了支付凭证的审核状态
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"  // 等待审核
	PaymentVerified PaymentStatus = "VERIFIED" // 审核通过
	PaymentRejected PaymentStatus = "REJECTED" // 审核拒绝
)
