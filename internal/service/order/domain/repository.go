// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 是订单的持久化端口
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
}

// ProductRepository 是商品的持久化端口（事务外的普通读写）
type ProductRepository interface {
	Save(ctx context.Context, product *Product) error
	FindByID(ctx context.Context, id string) (*Product, error)
}

// InventoryTx 提供确认事务内部的读写原语。
// 底层事务原语不允许读写交错：调用方必须先完成全部 Get，
// 校验通过后再执行全部 Put。
type InventoryTx interface {
	GetOrder(ctx context.Context, id string) (*Order, error)
	GetProduct(ctx context.Context, id string) (*Product, error)

	// PutProductStock 写回商品库存，以读取时的 Version 做守卫。
	// 版本不匹配返回 ErrTxConflict。
	PutProductStock(ctx context.Context, product *Product) error

	// PutOrderConfirmed 写回已确认的订单，以 PENDING 状态做守卫。
	PutOrderConfirmed(ctx context.Context, order *Order) error
}

// TxRunner 执行一个乐观并发事务块。
// fn 内任何写入触发 ErrTxConflict 时，整个块会放弃已有写入并基于
// 新的读取快照重试；fn 返回其他错误则事务整体回滚并向上传播。
type TxRunner interface {
	RunOptimistic(ctx context.Context, fn func(tx InventoryTx) error) error
}

// EventProducer 发布订单领域事件
type EventProducer interface {
	Publish(ctx context.Context, event *OrderEvent) error
}
