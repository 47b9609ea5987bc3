// internal/service/order/application/service_test.go
package application

import (
	"context"
	"errors"
	"testing"

	"warung/internal/service/order/domain"
	"warung/internal/service/order/port"

	"go.opentelemetry.io/otel"
)

// ---- 内存版端口实现 ----

type memStore struct {
	orders   map[string]*domain.Order
	products map[string]*domain.Product
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[string]*domain.Order),
		products: make(map[string]*domain.Product),
	}
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

func copyProduct(p *domain.Product) *domain.Product {
	c := *p
	c.Variants = make([]domain.Variant, len(p.Variants))
	copy(c.Variants, p.Variants)
	return &c
}

func (s *memStore) Save(_ context.Context, order *domain.Order) error {
	s.orders[order.ID] = copyOrder(order)
	return nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

// memTx 模拟确认事务：所有写入先暂存，fn 成功返回后一次性应用。
// fn 返回错误时暂存的写入全部丢弃，存储保持原样。
type memTx struct {
	store         *memStore
	stagedOrder   *domain.Order
	stagedProduct []*domain.Product
}

func (tx *memTx) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	o, ok := tx.store.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (tx *memTx) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := tx.store.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return copyProduct(p), nil
}

func (tx *memTx) PutProductStock(_ context.Context, product *domain.Product) error {
	tx.stagedProduct = append(tx.stagedProduct, copyProduct(product))
	return nil
}

func (tx *memTx) PutOrderConfirmed(_ context.Context, order *domain.Order) error {
	tx.stagedOrder = copyOrder(order)
	return nil
}

type memTxRunner struct {
	store *memStore
}

func (r *memTxRunner) RunOptimistic(ctx context.Context, fn func(tx domain.InventoryTx) error) error {
	tx := &memTx{store: r.store}
	if err := fn(tx); err != nil {
		return err
	}
	for _, p := range tx.stagedProduct {
		r.store.products[p.ID] = p
	}
	if tx.stagedOrder != nil {
		r.store.orders[tx.stagedOrder.ID] = tx.stagedOrder
	}
	return nil
}

// racingTxRunner 模拟乐观事务的冲突重试：第一次尝试在提交前
// 被 rival 的确认抢先落库（版本守卫失败），暂存的写入全部丢弃，
// 随后基于新快照重新执行整个 read-validate-write 块。
type racingTxRunner struct {
	store *memStore
	rival func()
	raced bool
}

func (r *racingTxRunner) RunOptimistic(ctx context.Context, fn func(tx domain.InventoryTx) error) error {
	for attempt := 0; attempt < 3; attempt++ {
		tx := &memTx{store: r.store}
		if err := fn(tx); err != nil {
			return err
		}
		if !r.raced && r.rival != nil {
			r.raced = true
			r.rival()
			continue
		}
		for _, p := range tx.stagedProduct {
			r.store.products[p.ID] = p
		}
		if tx.stagedOrder != nil {
			r.store.orders[tx.stagedOrder.ID] = tx.stagedOrder
		}
		return nil
	}
	return domain.ErrTxConflict
}

type memProducer struct {
	events []*domain.OrderEvent
}

func (p *memProducer) Publish(_ context.Context, event *domain.OrderEvent) error {
	p.events = append(p.events, event)
	return nil
}

type stubAttribution struct {
	affiliateID string
	visitorID   string
	err         error
	got         *port.OrderAttribution
}

func (s *stubAttribution) AttributeOrder(_ context.Context, attribution port.OrderAttribution) (string, string, error) {
	s.got = &attribution
	return s.affiliateID, s.visitorID, s.err
}

func newService(store *memStore, producer *memProducer, attribution port.AffiliateAttribution) *OrderApplicationService {
	return NewOrderApplicationService(store, &memTxRunner{store: store}, otel.Tracer("test"), producer, attribution)
}

// ---- 测试 ----

func seedOrder(t *testing.T, store *memStore, id string, items ...domain.OrderItem) {
	t.Helper()
	order, err := domain.NewOrder(id, items, 0, domain.CustomerInfo{Name: "Budi"})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}
	store.orders[id] = order
}

func TestConfirmOrderDecrementsStock(t *testing.T) {
	store := newMemStore()
	store.products["p1"] = &domain.Product{ID: "p1", Name: "Rendang", Stock: 10}
	seedOrder(t, store, "o1", domain.OrderItem{ProductID: "p1", Name: "Rendang", Quantity: 3, UnitPrice: 15000})

	producer := &memProducer{}
	svc := newService(store, producer, nil)

	if err := svc.ConfirmOrder(context.Background(), "o1"); err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}
	if store.products["p1"].Stock != 7 {
		t.Fatalf("stock = %d, want 7", store.products["p1"].Stock)
	}
	if store.orders["o1"].Status != domain.StatusConfirmed {
		t.Fatalf("order status = %s", store.orders["o1"].Status)
	}
	if len(producer.events) != 1 || producer.events[0].Type != domain.EventOrderConfirmed {
		t.Fatalf("expected one confirmed event, got %+v", producer.events)
	}

	// 重复确认必须失败且不再扣库存
	if err := svc.ConfirmOrder(context.Background(), "o1"); !errors.Is(err, domain.ErrAlreadyConfirmed) {
		t.Fatalf("second confirm = %v, want ErrAlreadyConfirmed", err)
	}
	if store.products["p1"].Stock != 7 {
		t.Fatalf("stock after duplicate confirm = %d, want 7", store.products["p1"].Stock)
	}
}

func TestConfirmOrderAllOrNothing(t *testing.T) {
	store := newMemStore()
	store.products["p1"] = &domain.Product{ID: "p1", Name: "Rendang", Stock: 10}
	store.products["p2"] = &domain.Product{ID: "p2", Name: "Sate", Stock: 1}
	seedOrder(t, store, "o1",
		domain.OrderItem{ProductID: "p1", Name: "Rendang", Quantity: 2, UnitPrice: 15000},
		domain.OrderItem{ProductID: "p2", Name: "Sate", Quantity: 5, UnitPrice: 20000},
	)

	svc := newService(store, &memProducer{}, nil)

	err := svc.ConfirmOrder(context.Background(), "o1")
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("ConfirmOrder = %v, want InsufficientStockError", err)
	}

	// 第一行校验通过也不能留下任何写入
	if store.products["p1"].Stock != 10 || store.products["p2"].Stock != 1 {
		t.Fatalf("stocks mutated: p1=%d p2=%d", store.products["p1"].Stock, store.products["p2"].Stock)
	}
	if store.orders["o1"].Status != domain.StatusPending {
		t.Fatalf("order status = %s, want pending", store.orders["o1"].Status)
	}
}

func TestConfirmOrderDeduplicatesProductLines(t *testing.T) {
	store := newMemStore()
	store.products["p1"] = &domain.Product{
		ID: "p1", Name: "Kopi",
		Variants: []domain.Variant{{Name: "250g", Stock: 3}, {Name: "500g", Stock: 2}},
	}
	seedOrder(t, store, "o1",
		domain.OrderItem{ProductID: "p1", Name: "Kopi", Quantity: 2, UnitPrice: 30000, SelectedVariantName: "250g"},
		domain.OrderItem{ProductID: "p1", Name: "Kopi", Quantity: 2, UnitPrice: 50000, SelectedVariantName: "500g"},
	)

	svc := newService(store, &memProducer{}, nil)
	if err := svc.ConfirmOrder(context.Background(), "o1"); err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}

	p := store.products["p1"]
	if p.FindVariant("250g").Stock != 1 || p.FindVariant("500g").Stock != 0 {
		t.Fatalf("variant stocks = %d/%d", p.FindVariant("250g").Stock, p.FindVariant("500g").Stock)
	}
}

func TestConfirmOrderTwoLinesSameVariantRace(t *testing.T) {
	// 两行指向同一规格，总需求超过库存：去重后读到同一实体，
	// 第二行的扣减必须看到第一行已经扣掉的部分。
	store := newMemStore()
	store.products["p1"] = &domain.Product{
		ID: "p1", Name: "Kopi",
		Variants: []domain.Variant{{Name: "250g", Stock: 3}},
	}
	seedOrder(t, store, "o1",
		domain.OrderItem{ProductID: "p1", Name: "Kopi", Quantity: 2, UnitPrice: 30000, SelectedVariantName: "250g"},
		domain.OrderItem{ProductID: "p1", Name: "Kopi", Quantity: 2, UnitPrice: 30000, SelectedVariantName: "250g"},
	)

	svc := newService(store, &memProducer{}, nil)
	err := svc.ConfirmOrder(context.Background(), "o1")
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("ConfirmOrder = %v, want InsufficientStockError", err)
	}
	if store.products["p1"].FindVariant("250g").Stock != 3 {
		t.Fatalf("stock mutated to %d", store.products["p1"].FindVariant("250g").Stock)
	}
}

func TestConfirmOrderRaceForLastUnit(t *testing.T) {
	// 两笔订单争最后一件库存：恰好一笔成功，
	// 另一笔在冲突重试读到新快照后以库存不足失败。
	store := newMemStore()
	store.products["p1"] = &domain.Product{ID: "p1", Name: "Rendang", Stock: 1}
	seedOrder(t, store, "o1", domain.OrderItem{ProductID: "p1", Name: "Rendang", Quantity: 1, UnitPrice: 15000})
	seedOrder(t, store, "o2", domain.OrderItem{ProductID: "p1", Name: "Rendang", Quantity: 1, UnitPrice: 15000})

	runner := &racingTxRunner{store: store}
	svc := NewOrderApplicationService(store, runner, otel.Tracer("test"), &memProducer{}, nil)
	rival := newService(store, &memProducer{}, nil)
	runner.rival = func() {
		if err := rival.ConfirmOrder(context.Background(), "o2"); err != nil {
			t.Errorf("rival confirm: %v", err)
		}
	}

	err := svc.ConfirmOrder(context.Background(), "o1")
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("ConfirmOrder = %v, want InsufficientStockError", err)
	}
	if stockErr.Available != 0 || stockErr.Requested != 1 {
		t.Fatalf("stock error = %+v", stockErr)
	}
	if !runner.raced {
		t.Fatal("conflict retry never happened")
	}

	if store.orders["o2"].Status != domain.StatusConfirmed {
		t.Fatalf("winner status = %s", store.orders["o2"].Status)
	}
	if store.orders["o1"].Status != domain.StatusPending {
		t.Fatalf("loser status = %s", store.orders["o1"].Status)
	}
	if store.products["p1"].Stock != 0 {
		t.Fatalf("stock = %d, want 0", store.products["p1"].Stock)
	}
}

func TestConfirmOrderSkipsLegacyItems(t *testing.T) {
	store := newMemStore()
	store.products["p1"] = &domain.Product{ID: "p1", Name: "Rendang", Stock: 5}
	seedOrder(t, store, "o1",
		domain.OrderItem{ProductID: "p1", Name: "Rendang", Quantity: 1, UnitPrice: 15000},
		// 历史数据：没有商品引用的订单行
		domain.OrderItem{Name: "Bonus Krupuk", Quantity: 1, UnitPrice: 0},
	)

	svc := newService(store, &memProducer{}, nil)
	if err := svc.ConfirmOrder(context.Background(), "o1"); err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}
	if store.products["p1"].Stock != 4 {
		t.Fatalf("stock = %d, want 4", store.products["p1"].Stock)
	}
}

func TestCheckoutAttachesAttribution(t *testing.T) {
	store := newMemStore()
	producer := &memProducer{}
	attribution := &stubAttribution{affiliateID: "aff-1", visitorID: "vis-1"}
	svc := newService(store, producer, attribution)

	req := &CheckoutRequest{
		Items:        []CheckoutItem{{ProductID: "p1", Name: "Rendang", Quantity: 1, UnitPrice: 15000}},
		ReferralCode: "CODE123",
		VisitorToken: "vid.abc.def",
	}
	resp, err := svc.Checkout(context.Background(), req)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	saved := store.orders[resp.OrderID]
	if saved.AffiliateID != "aff-1" || saved.VisitorID != "vis-1" {
		t.Fatalf("attribution not persisted: %+v", saved)
	}
	if attribution.got == nil || attribution.got.ReferralCode != "CODE123" {
		t.Fatalf("attribution command = %+v", attribution.got)
	}
	if len(producer.events) != 1 || producer.events[0].Type != domain.EventOrderCreated {
		t.Fatalf("expected created event, got %+v", producer.events)
	}
}

func TestCheckoutSurvivesAttributionFailure(t *testing.T) {
	store := newMemStore()
	svc := newService(store, &memProducer{}, &stubAttribution{err: errors.New("affiliate subsystem down")})

	resp, err := svc.Checkout(context.Background(), &CheckoutRequest{
		Items: []CheckoutItem{{ProductID: "p1", Name: "Rendang", Quantity: 1, UnitPrice: 15000}},
	})
	if err != nil {
		t.Fatalf("Checkout must not fail on attribution error: %v", err)
	}
	if store.orders[resp.OrderID].AffiliateID != "" {
		t.Fatal("order should have no attribution")
	}
}

func TestCancelOrder(t *testing.T) {
	store := newMemStore()
	seedOrder(t, store, "o1", domain.OrderItem{ProductID: "p1", Name: "Rendang", Quantity: 1, UnitPrice: 15000})

	producer := &memProducer{}
	svc := newService(store, producer, nil)

	if err := svc.CancelOrder(context.Background(), "o1"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if store.orders["o1"].Status != domain.StatusCancelled {
		t.Fatalf("status = %s", store.orders["o1"].Status)
	}
	if err := svc.CancelOrder(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("cancel missing = %v, want ErrOrderNotFound", err)
	}
}
