// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrAlreadyConfirmed 表示订单已经确认过，确认操作不可重复执行
	ErrAlreadyConfirmed = errors.New("order is already confirmed")

	// ErrInvalidState 表示请求的状态流转不被状态机允许
	ErrInvalidState = errors.New("invalid status transition")

	// ErrTxConflict 表示乐观事务提交时发现读取过的文档被并发修改。
	// 事务执行器捕获它并对整个 read-validate-write 块重试。
	ErrTxConflict = errors.New("optimistic transaction conflict")
)

// VariantNotFoundError 表示订单行指定的规格在商品的规格列表中不存在
type VariantNotFoundError struct {
	ProductName string
	VariantName string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant '%s' not found on product '%s'", e.VariantName, e.ProductName)
}

// InsufficientStockError 表示库存不足以满足订单行的数量。
// 携带完整上下文，便于界面层直接翻译成用户提示。
type InsufficientStockError struct {
	ProductName string
	VariantName string // 空字符串表示基础商品库存
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	if e.VariantName != "" {
		return fmt.Sprintf("insufficient stock for '%s' variant '%s': available %d, requested %d",
			e.ProductName, e.VariantName, e.Available, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for '%s': available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}
