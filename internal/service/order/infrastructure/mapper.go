// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"encoding/json"

	"warung/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	items := make([]domain.OrderItem, 0, len(model.Items))
	for _, im := range model.Items {
		items = append(items, domain.OrderItem{
			ProductID:           im.ProductID,
			Name:                im.Name,
			Quantity:            im.Quantity,
			UnitPrice:           im.UnitPrice,
			SelectedVariantName: im.SelectedVariantName,
			SelectedVariants:    unmarshalStringMap(im.SelectedVariants),
		})
	}
	return &domain.Order{
		ID:            model.ID,
		Status:        domain.Status(model.Status),
		PaymentStatus: domain.PaymentStatus(model.PaymentStatus),
		Items:         items,
		ShippingFee:   model.ShippingFee,
		TotalPrice:    model.TotalPrice,
		Customer: domain.CustomerInfo{
			Name:    model.CustomerName,
			Phone:   model.CustomerPhone,
			Address: model.CustomerAddress,
			Note:    model.CustomerNote,
		},
		AffiliateID:     model.AffiliateID,
		VisitorID:       model.VisitorID,
		PaymentProofURL: model.PaymentProofURL,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
		ConfirmedAt:     model.ConfirmedAt,
	}
}

// FromDomainOrder 将领域模型转换为数据库模型。
// 订单行单独返回，Save 时先删后插，避免 GORM 级联更新的歧义。
func FromDomainOrder(dmn *domain.Order) (*OrderModel, []OrderItemModel) {
	if dmn == nil {
		return nil, nil
	}
	items := make([]OrderItemModel, 0, len(dmn.Items))
	for _, it := range dmn.Items {
		items = append(items, OrderItemModel{
			OrderID:             dmn.ID,
			ProductID:           it.ProductID,
			Name:                it.Name,
			Quantity:            it.Quantity,
			UnitPrice:           it.UnitPrice,
			SelectedVariantName: it.SelectedVariantName,
			SelectedVariants:    marshalStringMap(it.SelectedVariants),
		})
	}
	return &OrderModel{
		ID:              dmn.ID,
		Status:          string(dmn.Status),
		PaymentStatus:   string(dmn.PaymentStatus),
		ShippingFee:     dmn.ShippingFee,
		TotalPrice:      dmn.TotalPrice,
		CustomerName:    dmn.Customer.Name,
		CustomerPhone:   dmn.Customer.Phone,
		CustomerAddress: dmn.Customer.Address,
		CustomerNote:    dmn.Customer.Note,
		AffiliateID:     dmn.AffiliateID,
		VisitorID:       dmn.VisitorID,
		PaymentProofURL: dmn.PaymentProofURL,
		CreatedAt:       dmn.CreatedAt,
		UpdatedAt:       dmn.UpdatedAt,
		ConfirmedAt:     dmn.ConfirmedAt,
	}, items
}

// ToDomainProduct 将数据库模型转换为领域模型
func ToDomainProduct(model *ProductModel) *domain.Product {
	if model == nil {
		return nil
	}
	variants := make([]domain.Variant, 0, len(model.Variants))
	for _, vm := range model.Variants {
		variants = append(variants, domain.Variant{
			Name:    vm.Name,
			Price:   vm.Price,
			Stock:   vm.Stock,
			Options: unmarshalStringMap(vm.Options),
		})
	}
	return &domain.Product{
		ID:       model.ID,
		Name:     model.Name,
		Price:    model.Price,
		Stock:    model.Stock,
		Variants: variants,
		Version:  model.Version,
	}
}

// FromDomainProduct 将领域模型转换为数据库模型
func FromDomainProduct(dmn *domain.Product) (*ProductModel, []VariantModel) {
	if dmn == nil {
		return nil, nil
	}
	variants := make([]VariantModel, 0, len(dmn.Variants))
	for _, v := range dmn.Variants {
		variants = append(variants, VariantModel{
			ProductID: dmn.ID,
			Name:      v.Name,
			Price:     v.Price,
			Stock:     v.Stock,
			Options:   marshalStringMap(v.Options),
		})
	}
	return &ProductModel{
		ID:      dmn.ID,
		Name:    dmn.Name,
		Price:   dmn.Price,
		Stock:   dmn.Stock,
		Version: dmn.Version,
	}, variants
}

func marshalStringMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalStringMap(s string) map[string]string {
	if s == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
