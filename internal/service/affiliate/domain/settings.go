// internal/service/affiliate/domain/settings.go
package domain

import "time"

// Settings 是推广体系的全局设置单例。
// 佣金费率在佣金创建时刻快照生效，不做按人费率。
type Settings struct {
	DefaultCommissionRate int      // 百分比
	MinPayoutAmount       int64    // IDR
	PayoutMethods         []string // 例如 bank_transfer, ewallet

	// CommissionRule 是可选的 CEL 表达式，决定一笔订单是否产生佣金。
	// 可用变量: order_total, item_count, is_new_customer。
	// 为空表示所有归因订单都产生佣金。
	CommissionRule string

	UpdatedAt time.Time
}

// DefaultSettings 返回首次启动时写入的初始设置
func DefaultSettings(rate int, minPayout int64) *Settings {
	return &Settings{
		DefaultCommissionRate: rate,
		MinPayoutAmount:       minPayout,
		PayoutMethods:         []string{"bank_transfer"},
		UpdatedAt:             time.Now(),
	}
}
