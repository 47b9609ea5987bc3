// internal/service/order/domain/product_test.go
package domain

import (
	"errors"
	"testing"
)

func TestTakeStockBase(t *testing.T) {
	p := &Product{ID: "p1", Name: "Rendang", Stock: 5}
	if err := p.TakeStock("", 3); err != nil {
		t.Fatalf("TakeStock: %v", err)
	}
	if p.Stock != 2 {
		t.Fatalf("Stock = %d, want 2", p.Stock)
	}

	err := p.TakeStock("", 3)
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("TakeStock over limit = %v, want InsufficientStockError", err)
	}
	if stockErr.Available != 2 || stockErr.Requested != 3 {
		t.Fatalf("error context = %+v", stockErr)
	}
	if p.Stock != 2 {
		t.Fatalf("failed take must not mutate stock, got %d", p.Stock)
	}
}

func TestTakeStockVariant(t *testing.T) {
	p := &Product{
		ID: "p1", Name: "Kopi", Stock: 99,
		Variants: []Variant{{Name: "250g", Stock: 2}, {Name: "500g", Stock: 1}},
	}

	if err := p.TakeStock("250g", 2); err != nil {
		t.Fatalf("TakeStock variant: %v", err)
	}
	if p.FindVariant("250g").Stock != 0 {
		t.Fatalf("variant stock = %d, want 0", p.FindVariant("250g").Stock)
	}
	// 规格扣减不影响基础库存
	if p.Stock != 99 {
		t.Fatalf("base stock changed to %d", p.Stock)
	}

	var variantErr *VariantNotFoundError
	if err := p.TakeStock("1kg", 1); !errors.As(err, &variantErr) {
		t.Fatalf("unknown variant = %v, want VariantNotFoundError", err)
	}
}
