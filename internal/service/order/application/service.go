// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"warung/internal/pkg/logger"
	"warung/internal/service/order/domain"
	"warung/internal/service/order/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderApplicationService 编排订单的业务流程：下单、确认、取消、支付审核。
type OrderApplicationService struct {
	orderRepo domain.OrderRepository
	txRunner  domain.TxRunner
	tracer    trace.Tracer
	producer  domain.EventProducer
	affiliate port.AffiliateAttribution
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, txRunner domain.TxRunner, tracer trace.Tracer, producer domain.EventProducer, affiliate port.AffiliateAttribution) *OrderApplicationService {
	return &OrderApplicationService{
		orderRepo: orderRepo,
		txRunner:  txRunner,
		tracer:    tracer,
		producer:  producer,
		affiliate: affiliate,
	}
}

// Checkout 创建一个待确认订单。库存在这里不做校验也不做预占，
// 一切库存动作都推迟到管理员确认时的原子事务里。
func (s *OrderApplicationService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.Checkout")
	defer span.End()

	orderID := uuid.New().String()
	order, err := domain.NewOrder(orderID, req.toDomainItems(), req.ShippingFee, domain.CustomerInfo{
		Name:    req.Customer.Name,
		Phone:   req.Customer.Phone,
		Address: req.Customer.Address,
		Note:    req.Customer.Note,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create order entity")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int64("order.total_price", order.TotalPrice),
	)

	if err := s.orderRepo.Save(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save initial order")
		return nil, err
	}
	span.AddEvent("Initial order saved with PENDING state.")

	// 推广归因：失败只记日志，不能影响下单结果
	if s.affiliate != nil {
		attribution := port.OrderAttribution{
			OrderID:       order.ID,
			OrderTotal:    order.TotalPrice,
			ItemCount:     len(order.Items),
			UserID:        req.UserID,
			ReferralCode:  req.ReferralCode,
			VisitorToken:  req.VisitorToken,
			IsNewCustomer: req.IsNewCustomer,
		}
		affiliateID, visitorID, err := s.affiliate.AttributeOrder(ctx, attribution)
		if err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID).
				Msg("affiliate attribution failed, order continues without commission")
		} else if affiliateID != "" {
			order.AffiliateID = affiliateID
			order.VisitorID = visitorID
			if err := s.orderRepo.Save(ctx, order); err != nil {
				span.RecordError(err)
				logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID).
					Msg("failed to persist affiliate attribution on order")
			}
		}
	}

	s.publish(ctx, order, domain.EventOrderCreated)

	return &CheckoutResponse{OrderID: order.ID, Status: order.Status, TotalPrice: order.TotalPrice}, nil
}

// ConfirmOrder 在一个乐观并发事务里完成订单确认：
// 读阶段读取订单和所有涉及的商品并校验库存，
// 写阶段写回扣减后的库存和 CONFIRMED 状态。
// 任何一行校验失败，事务整体放弃，库存和订单都保持原样。
func (s *OrderApplicationService) ConfirmOrder(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "app.ConfirmOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	var confirmed *domain.Order
	err := s.txRunner.RunOptimistic(ctx, func(tx domain.InventoryTx) error {
		// ---- 读阶段 ----
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == domain.StatusConfirmed {
			return domain.ErrAlreadyConfirmed
		}
		if order.Status != domain.StatusPending {
			return domain.ErrInvalidState
		}

		// 同一商品可能出现在多个订单行，按 ID 去重，保证读到同一个实体
		products := make(map[string]*domain.Product)
		productOrder := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			if item.ProductID == "" {
				// 历史数据兜底：没有商品引用的订单行跳过库存校验
				logger.Ctx(ctx).Warn().Str("order_id", orderID).Str("item", item.Name).
					Msg("order item has no product reference, skipping stock verification")
				span.AddEvent("Skipped legacy item without product reference")
				continue
			}
			product, ok := products[item.ProductID]
			if !ok {
				product, err = tx.GetProduct(ctx, item.ProductID)
				if err != nil {
					return err
				}
				products[item.ProductID] = product
				productOrder = append(productOrder, item.ProductID)
			}
			variantName, _ := item.VariantTarget()
			if err := product.TakeStock(variantName, item.Quantity); err != nil {
				return err
			}
		}

		// ---- 写阶段：所有校验通过之后才允许第一次写入 ----
		for _, id := range productOrder {
			if err := tx.PutProductStock(ctx, products[id]); err != nil {
				return err
			}
		}
		if err := order.Confirm(time.Now()); err != nil {
			return err
		}
		if err := tx.PutOrderConfirmed(ctx, order); err != nil {
			return err
		}
		confirmed = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Order confirmation aborted")
		return err
	}

	logger.Ctx(ctx).Info().Str("order_id", orderID).Msg("order confirmed, stock decremented")
	span.AddEvent("Order confirmed and stock decremented atomically.")
	s.publish(ctx, confirmed, domain.EventOrderConfirmed)
	return nil
}

// CancelOrder 取消一个待确认订单。待确认订单从未占用库存，
// 所以这里只是一次普通的状态写入，不需要事务。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := order.Cancel(); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		span.RecordError(err)
		return err
	}
	s.publish(ctx, order, domain.EventOrderCancelled)
	return nil
}

// MarkProcessing 已确认订单进入备货状态
func (s *OrderApplicationService) MarkProcessing(ctx context.Context, orderID string) error {
	return s.transition(ctx, "app.MarkProcessing", orderID, (*domain.Order).MarkProcessing)
}

// CompleteOrder 备货中的订单完成
func (s *OrderApplicationService) CompleteOrder(ctx context.Context, orderID string) error {
	return s.transition(ctx, "app.CompleteOrder", orderID, (*domain.Order).Complete)
}

// VerifyPayment 审核通过支付凭证
func (s *OrderApplicationService) VerifyPayment(ctx context.Context, orderID string) error {
	return s.transition(ctx, "app.VerifyPayment", orderID, (*domain.Order).VerifyPayment)
}

// RejectPayment 拒绝支付凭证
func (s *OrderApplicationService) RejectPayment(ctx context.Context, orderID string) error {
	return s.transition(ctx, "app.RejectPayment", orderID, (*domain.Order).RejectPayment)
}

// AttachPaymentProof 顾客上传支付凭证，等待管理员审核
func (s *OrderApplicationService) AttachPaymentProof(ctx context.Context, orderID, proofURL string) error {
	ctx, span := s.tracer.Start(ctx, "app.AttachPaymentProof")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	order.PaymentProofURL = proofURL
	order.UpdatedAt = time.Now()
	if err := s.orderRepo.Save(ctx, order); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// GetOrder 查询单个订单
func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orderRepo.FindByID(ctx, orderID)
}

// transition 执行一次普通的读-改-写状态流转
func (s *OrderApplicationService) transition(ctx context.Context, spanName, orderID string, mutate func(*domain.Order) error) error {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := mutate(order); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *OrderApplicationService) publish(ctx context.Context, order *domain.Order, eventType string) {
	if s.producer == nil {
		return
	}
	event := &domain.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		Status:      order.Status,
		TotalPrice:  order.TotalPrice,
		AffiliateID: order.AffiliateID,
		OccurredAt:  time.Now(),
	}
	if err := s.producer.Publish(ctx, event); err != nil {
		// 事件丢失只影响实时推送，不影响订单本身
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID).Msg("failed to publish order event")
	}
}
