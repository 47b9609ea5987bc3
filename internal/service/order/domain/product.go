// internal/service/order/domain/product.go
package domain

// Product 是商品聚合。有规格的商品使用规格库存，
// 无规格商品使用基础库存，两者互斥。
type Product struct {
	ID       string
	Name     string
	Price    int64 // IDR
	Stock    int
	Variants []Variant

	// Version 是乐观锁版本号，每次库存写入自增。
	// 写回时版本不匹配说明有并发事务改过这一行。
	Version int64
}

// Variant 是商品规格。Name 在商品内唯一。
type Variant struct {
	Name    string
	Price   int64
	Stock   int
	Options map[string]string // 原始选项键值表，用于和顾客选择匹配
}

// FindVariant 按名字精确匹配规格
func (p *Product) FindVariant(name string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].Name == name {
			return &p.Variants[i]
		}
	}
	return nil
}

// TakeStock 校验并扣减一个订单行需要的库存。
// variantName 为空表示扣减基础商品库存。
// 只修改内存中的实体；持久化由事务写阶段完成。
func (p *Product) TakeStock(variantName string, quantity int) error {
	if variantName != "" {
		v := p.FindVariant(variantName)
		if v == nil {
			return &VariantNotFoundError{ProductName: p.Name, VariantName: variantName}
		}
		if v.Stock < quantity {
			return &InsufficientStockError{
				ProductName: p.Name,
				VariantName: variantName,
				Available:   v.Stock,
				Requested:   quantity,
			}
		}
		v.Stock -= quantity
		return nil
	}

	if p.Stock < quantity {
		return &InsufficientStockError{
			ProductName: p.Name,
			Available:   p.Stock,
			Requested:   quantity,
		}
	}
	p.Stock -= quantity
	return nil
}
