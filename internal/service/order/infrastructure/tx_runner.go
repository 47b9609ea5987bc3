// internal/service/order/infrastructure/tx_runner.go
package infrastructure

import (
	"context"
	stderrors "errors"
	"time"

	"warung/internal/pkg/logger"
	"warung/internal/service/order/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormTxRunner 是 domain.TxRunner 的 GORM 实现。
// 每次尝试在一个 SQL 事务里执行整个 read-validate-write 块；
// 写入时版本守卫失败（ErrTxConflict）则回滚并基于新快照重试，
// 实现文档数据库 runTransaction 的乐观并发语义。
type GormTxRunner struct {
	db         *gorm.DB
	maxRetries int
}

// NewGormTxRunner 创建事务执行器。maxRetries 是冲突重试的上限。
func NewGormTxRunner(db *gorm.DB, maxRetries int) *GormTxRunner {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &GormTxRunner{db: db, maxRetries: maxRetries}
}

// RunOptimistic 实现 domain.TxRunner
func (r *GormTxRunner) RunOptimistic(ctx context.Context, fn func(tx domain.InventoryTx) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormInventoryTx{tx: tx})
		})
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, domain.ErrTxConflict) {
			return err
		}
		lastErr = err
		logger.Ctx(ctx).Warn().Int("attempt", attempt).
			Msg("optimistic transaction conflict, retrying with fresh reads")
	}
	return errors.Wrapf(lastErr, "transaction aborted after %d conflicting attempts", r.maxRetries)
}

// gormInventoryTx 在单个 SQL 事务内实现 domain.InventoryTx
type gormInventoryTx struct {
	tx *gorm.DB
}

func (t *gormInventoryTx) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := t.tx.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return ToDomainOrder(&model), nil
}

func (t *gormInventoryTx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var model ProductModel
	err := t.tx.WithContext(ctx).Preload("Variants").Where("id = ?", id).First(&model).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return ToDomainProduct(&model), nil
}

// PutProductStock 以读取时的版本号为守卫写回库存。
// 版本号不匹配说明有并发确认动过同一商品，整个事务块需要重试。
func (t *gormInventoryTx) PutProductStock(ctx context.Context, product *domain.Product) error {
	res := t.tx.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ? AND version = ?", product.ID, product.Version).
		Updates(map[string]interface{}{
			"stock":   product.Stock,
			"version": product.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTxConflict
	}

	// 规格库存跟随商品行写入；商品行的版本守卫已经排除了并发写者
	for _, v := range product.Variants {
		if err := t.tx.WithContext(ctx).Model(&VariantModel{}).
			Where("product_id = ? AND name = ?", product.ID, v.Name).
			Update("stock", v.Stock).Error; err != nil {
			return err
		}
	}
	return nil
}

// PutOrderConfirmed 以 PENDING 状态为守卫写回确认结果。
func (t *gormInventoryTx) PutOrderConfirmed(ctx context.Context, order *domain.Order) error {
	confirmedAt := order.ConfirmedAt
	if confirmedAt == nil {
		now := time.Now()
		confirmedAt = &now
	}
	res := t.tx.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND status = ?", order.ID, string(domain.StatusPending)).
		Updates(map[string]interface{}{
			"status":       string(domain.StatusConfirmed),
			"confirmed_at": confirmedAt,
			"updated_at":   order.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTxConflict
	}
	return nil
}
