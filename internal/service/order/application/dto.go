// internal/service/order/application/dto.go
package application

import "warung/internal/service/order/domain"

// CheckoutRequest 是下单接口的入参
type CheckoutRequest struct {
	Items       []CheckoutItem `json:"items"`
	ShippingFee int64          `json:"shipping_fee"`
	Customer    struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
		Note    string `json:"note"`
	} `json:"customer"`

	// 推广归因（全部可选）
	UserID        string `json:"user_id"`
	ReferralCode  string `json:"referral_code"`
	VisitorToken  string `json:"visitor_token"`
	IsNewCustomer bool   `json:"is_new_customer"`
}

// CheckoutItem 是下单接口里的一个订单行
type CheckoutItem struct {
	ProductID           string            `json:"product_id"`
	Name                string            `json:"name"`
	Quantity            int               `json:"quantity"`
	UnitPrice           int64             `json:"unit_price"`
	SelectedVariantName string            `json:"selected_variant_name,omitempty"`
	SelectedVariants    map[string]string `json:"selected_variants,omitempty"`
}

// CheckoutResponse 是下单接口的出参
type CheckoutResponse struct {
	OrderID    string        `json:"order_id"`
	Status     domain.Status `json:"status"`
	TotalPrice int64         `json:"total_price"`
}

func (r *CheckoutRequest) toDomainItems() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.OrderItem{
			ProductID:           it.ProductID,
			Name:                it.Name,
			Quantity:            it.Quantity,
			UnitPrice:           it.UnitPrice,
			SelectedVariantName: it.SelectedVariantName,
			SelectedVariants:    it.SelectedVariants,
		})
	}
	return items
}
