// internal/service/order/domain/order.go
package domain

import (
	"errors"
	"time"
)

// Order 是订单聚合的根实体
type Order struct {
	ID            string
	Status        Status
	PaymentStatus PaymentStatus
	Items         []OrderItem
	ShippingFee   int64 // IDR
	TotalPrice    int64 // IDR，含运费
	Customer      CustomerInfo

	// 推广归因，下单时解析，可为空
	AffiliateID string
	VisitorID   string

	// 支付凭证图片的下载地址，对象存储返回的不透明 URL
	PaymentProofURL string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
}

// OrderItem 是订单行值对象
type OrderItem struct {
	ProductID string // 可为空：历史数据允许无商品引用的订单行
	Name      string
	Quantity  int
	UnitPrice int64

	// 顾客选择的规格。SelectedVariantName 优先；
	// 旧版客户端只传 SelectedVariants 选项表，其中 "variant" 键是规格名。
	SelectedVariantName string
	SelectedVariants    map[string]string
}

// CustomerInfo 是收件人信息值对象
type CustomerInfo struct {
	Name    string
	Phone   string
	Address string
	Note    string
}

// NewOrder 创建一个新的待确认订单
func NewOrder(id string, items []OrderItem, shippingFee int64, customer CustomerInfo) (*Order, error) {
	if id == "" || len(items) == 0 {
		return nil, errors.New("cannot create order with empty required fields")
	}
	var total int64
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, errors.New("order item quantity must be positive")
		}
		total += item.UnitPrice * int64(item.Quantity)
	}
	now := time.Now()
	return &Order{
		ID:            id,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		Items:         items,
		ShippingFee:   shippingFee,
		TotalPrice:    total + shippingFee,
		Customer:      customer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// VariantTarget 返回订单行指向的规格名。
// ok 为 false 表示订单行针对基础商品库存。
func (i OrderItem) VariantTarget() (string, bool) {
	if i.SelectedVariantName != "" {
		return i.SelectedVariantName, true
	}
	if name, ok := i.SelectedVariants["variant"]; ok && name != "" {
		return name, true
	}
	return "", false
}

// Confirm 将订单置为已确认。只有待确认订单可以被确认；
// 重复确认返回 ErrAlreadyConfirmed，其余状态返回 ErrInvalidState。
func (o *Order) Confirm(now time.Time) error {
	switch o.Status {
	case StatusConfirmed:
		return ErrAlreadyConfirmed
	case StatusPending:
		o.Status = StatusConfirmed
		o.ConfirmedAt = &now
		o.UpdatedAt = now
		return nil
	default:
		return ErrInvalidState
	}
}

// Cancel 取消订单。待确认订单从未占用库存，所以取消不回补任何库存。
func (o *Order) Cancel() error {
	if o.Status != StatusPending {
		return ErrInvalidState
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now()
	return nil
}

// MarkProcessing 已确认订单进入备货状态
func (o *Order) MarkProcessing() error {
	if o.Status != StatusConfirmed {
		return ErrInvalidState
	}
	o.Status = StatusProcessing
	o.UpdatedAt = time.Now()
	return nil
}

// Complete 备货中的订单完成
func (o *Order) Complete() error {
	if o.Status != StatusProcessing {
		return ErrInvalidState
	}
	o.Status = StatusCompleted
	o.UpdatedAt = time.Now()
	return nil
}

// VerifyPayment 审核通过支付凭证
func (o *Order) VerifyPayment() error {
	if o.PaymentStatus != PaymentPending {
		return ErrInvalidState
	}
	o.PaymentStatus = PaymentVerified
	o.UpdatedAt = time.Now()
	return nil
}

// RejectPayment 拒绝支付凭证
func (o *Order) RejectPayment() error {
	if o.PaymentStatus != PaymentPending {
		return ErrInvalidState
	}
	o.PaymentStatus = PaymentRejected
	o.UpdatedAt = time.Now()
	return nil
}
