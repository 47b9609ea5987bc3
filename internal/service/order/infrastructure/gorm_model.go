// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import (
	"time"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID            string `gorm:"type:char(36);primarykey"`
	Status        string `gorm:"type:varchar(16);not null;index"`
	PaymentStatus string `gorm:"type:varchar(16);not null;default:'PENDING'"`
	ShippingFee   int64  `gorm:"not null;default:0"`
	TotalPrice    int64  `gorm:"not null;default:0"`

	CustomerName    string `gorm:"type:varchar(128)"`
	CustomerPhone   string `gorm:"type:varchar(32)"`
	CustomerAddress string `gorm:"type:text"`
	CustomerNote    string `gorm:"type:text"`

	AffiliateID     string `gorm:"type:char(36);index;default:''"`
	VisitorID       string `gorm:"type:varchar(64);default:''"`
	PaymentProofURL string `gorm:"type:text"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time

	// 关联关系
	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_items 表
type OrderItemModel struct {
	ID      uint   `gorm:"primarykey"`
	OrderID string `gorm:"type:char(36);not null;index"`
	// 历史数据允许为空：无商品引用的订单行跳过库存校验
	ProductID           string `gorm:"type:char(36);index;default:''"`
	Name                string `gorm:"type:varchar(255)"`
	Quantity            int    `gorm:"not null"`
	UnitPrice           int64  `gorm:"not null"`
	SelectedVariantName string `gorm:"type:varchar(128);default:''"`
	SelectedVariants    string `gorm:"type:text"` // JSON 序列化的选项键值表
}

// TableName 指定 GORM 应该使用的表名
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ProductModel 对应数据库中的 products 表
type ProductModel struct {
	ID    string `gorm:"type:char(36);primarykey"`
	Name  string `gorm:"type:varchar(255);not null"`
	Price int64  `gorm:"not null;default:0"`
	Stock int    `gorm:"not null;default:0"`

	// 乐观锁版本号，所有库存写入都以它做守卫
	Version int64 `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Variants []VariantModel `gorm:"foreignKey:ProductID"`
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "products"
}

// VariantModel 对应数据库中的 product_variants 表。
// 规格名在商品内唯一。
type VariantModel struct {
	ID        uint   `gorm:"primarykey"`
	ProductID string `gorm:"type:char(36);not null;uniqueIndex:idx_product_variant_name"`
	Name      string `gorm:"type:varchar(128);not null;uniqueIndex:idx_product_variant_name"`
	Price     int64  `gorm:"not null;default:0"`
	Stock     int    `gorm:"not null;default:0"`
	Options   string `gorm:"type:text"` // JSON 序列化的原始选项键值表
}

// TableName 指定 GORM 应该使用的表名
func (VariantModel) TableName() string {
	return "product_variants"
}
