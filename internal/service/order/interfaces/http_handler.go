// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"warung/internal/service/order/application"
	"warung/internal/service/order/domain"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	ordersCheckedOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warung_orders_checked_out_total",
		Help: "Number of orders created through checkout.",
	})
	ordersConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warung_orders_confirmed_total",
		Help: "Number of orders confirmed with stock decremented.",
	})
	orderConfirmAbortedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warung_order_confirm_aborted_total",
		Help: "Number of aborted order confirmations by reason.",
	}, []string{"reason"})
)

// OrderHandler 封装了订单子系统的 HTTP 处理器。
// 店面路由和管理端路由分开注册，分属两个部署单元。
type OrderHandler struct {
	service *application.OrderApplicationService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterStorefrontRoutes 在 ServeMux 上注册面向顾客的路由
func (h *OrderHandler) RegisterStorefrontRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/orders/checkout", h.handleCheckout)
	mux.HandleFunc("/orders/get", h.handleGetOrder)
	mux.HandleFunc("/orders/payment_proof", h.handleAttachPaymentProof)
}

// RegisterAdminRoutes 在 ServeMux 上注册管理端路由
func (h *OrderHandler) RegisterAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/orders/get", h.handleGetOrder)
	mux.HandleFunc("/admin/orders/confirm", h.handleConfirm)
	mux.HandleFunc("/admin/orders/cancel", h.handleCancel)
	mux.HandleFunc("/admin/orders/processing", h.transitionHandler(h.service.MarkProcessing))
	mux.HandleFunc("/admin/orders/complete", h.transitionHandler(h.service.CompleteOrder))
	mux.HandleFunc("/admin/orders/payment/verify", h.transitionHandler(h.service.VerifyPayment))
	mux.HandleFunc("/admin/orders/payment/reject", h.transitionHandler(h.service.RejectPayment))
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	var req application.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Checkout(ctx, &req)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	ordersCheckedOutTotal.Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleConfirm 是关键接口：确认订单并原子扣减库存。
// 任何一行库存不满足，整单确认失败，库存保持原样。
func (h *OrderHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	if err := h.service.ConfirmOrder(ctx, orderID); err != nil {
		orderConfirmAbortedTotal.WithLabelValues(abortReason(err)).Inc()
		writeOrderError(w, err)
		return
	}
	ordersConfirmedTotal.Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"order_id": orderID,
	})
}

func (h *OrderHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}
	if err := h.service.CancelOrder(ctx, orderID); err != nil {
		writeOrderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}
	order, err := h.service.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

func (h *OrderHandler) handleAttachPaymentProof(w http.ResponseWriter, r *http.Request) {
	ctx := extract(r)

	var req struct {
		OrderID  string `json:"order_id"`
		ProofURL string `json:"proof_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" || req.ProofURL == "" {
		http.Error(w, "order_id and proof_url are required", http.StatusBadRequest)
		return
	}
	if err := h.service.AttachPaymentProof(ctx, req.OrderID, req.ProofURL); err != nil {
		writeOrderError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// transitionHandler 生成一个执行简单状态流转的处理器
func (h *OrderHandler) transitionHandler(op func(ctx context.Context, orderID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := extract(r)

		orderID := r.URL.Query().Get("order_id")
		if orderID == "" {
			http.Error(w, "order_id is required", http.StatusBadRequest)
			return
		}
		if err := op(ctx, orderID); err != nil {
			writeOrderError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}
}

// writeOrderError 把领域错误翻译成 HTTP 状态码
func writeOrderError(w http.ResponseWriter, err error) {
	var stockErr *domain.InsufficientStockError
	var variantErr *domain.VariantNotFoundError

	var statusCode int
	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyConfirmed):
		statusCode = http.StatusConflict
	case errors.As(err, &stockErr), errors.As(err, &variantErr):
		// 请求有效，但当前库存状态拒绝执行
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidState):
		statusCode = http.StatusForbidden
	case errors.Is(err, domain.ErrTxConflict):
		// 重试次数耗尽仍然冲突，让客户端稍后再试
		statusCode = http.StatusServiceUnavailable
	default:
		statusCode = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), statusCode)
}

// abortReason 归类确认失败的原因，作为指标的 label
func abortReason(err error) string {
	var stockErr *domain.InsufficientStockError
	var variantErr *domain.VariantNotFoundError
	switch {
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &variantErr):
		return "variant_not_found"
	case errors.Is(err, domain.ErrAlreadyConfirmed):
		return "already_confirmed"
	case errors.Is(err, domain.ErrTxConflict):
		return "tx_conflict"
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound):
		return "not_found"
	default:
		return "other"
	}
}

func extract(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}
