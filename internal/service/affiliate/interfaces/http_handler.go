// internal/service/affiliate/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"warung/internal/service/affiliate/application"
	"warung/internal/service/affiliate/domain"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	affiliateClicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warung_affiliate_clicks_total",
		Help: "Number of affiliate link clicks by outcome.",
	}, []string{"outcome"})
	affiliatePayoutTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warung_affiliate_payout_transitions_total",
		Help: "Number of payout state transitions by target state.",
	}, []string{"transition"})
)

// AffiliateHandler 封装了推广子系统的 HTTP 处理器
type AffiliateHandler struct {
	service *application.AffiliateApplicationService
}

// NewAffiliateHandler 创建一个新的 HTTP 处理器实例
func NewAffiliateHandler(service *application.AffiliateApplicationService) *AffiliateHandler {
	return &AffiliateHandler{service: service}
}

// RegisterStorefrontRoutes 在 ServeMux 上注册面向推广用户和访客的路由
func (h *AffiliateHandler) RegisterStorefrontRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/affiliate/click", h.handleTrackClick)
	mux.HandleFunc("/affiliate/register_referral", h.handleRegisterReferral)
	mux.HandleFunc("/affiliate/register", h.handleRegisterAffiliate)
	mux.HandleFunc("/affiliate/dashboard", h.handleDashboard)
	mux.HandleFunc("/affiliate/followers", h.handleFollowers)
	mux.HandleFunc("/affiliate/payout/request", h.handleRequestPayout)
	mux.HandleFunc("/affiliate/bank", h.handleUpdateBank)
}

// RegisterAdminRoutes 在 ServeMux 上注册管理端路由
func (h *AffiliateHandler) RegisterAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/affiliates", h.handleListAffiliates)
	mux.HandleFunc("/admin/affiliates/commissions", h.handleListCommissions)
	mux.HandleFunc("/admin/affiliates/commissions/approve", h.commissionOpHandler(h.service.ApproveCommission))
	mux.HandleFunc("/admin/affiliates/commissions/reject", h.commissionOpHandler(h.service.RejectCommission))
	mux.HandleFunc("/admin/affiliates/payouts/pending", h.handleListPendingPayouts)
	mux.HandleFunc("/admin/affiliates/payouts/process", h.payoutOpHandler("processing", h.service.StartPayoutProcessing))
	mux.HandleFunc("/admin/affiliates/payouts/complete", h.payoutOpHandler("completed", h.service.CompletePayout))
	mux.HandleFunc("/admin/affiliates/payouts/reject", h.payoutOpHandler("rejected", h.service.RejectPayout))
	mux.HandleFunc("/admin/affiliates/settings", h.handleSettings)
}

func (h *AffiliateHandler) handleTrackClick(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}
	visitorToken := r.URL.Query().Get("visitor_token")

	result, err := h.service.TrackClick(ctx, code, visitorToken)
	if err != nil {
		writeAffiliateError(w, err)
		return
	}
	if result.Counted {
		affiliateClicksTotal.WithLabelValues("counted").Inc()
	} else {
		affiliateClicksTotal.WithLabelValues("duplicate").Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *AffiliateHandler) handleRegisterReferral(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	var req struct {
		UserID       string `json:"user_id"`
		VisitorToken string `json:"visitor_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.VisitorToken == "" {
		http.Error(w, "user_id and visitor_token are required", http.StatusBadRequest)
		return
	}
	if err := h.service.RegisterReferral(ctx, req.UserID, req.VisitorToken); err != nil {
		writeAffiliateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func (h *AffiliateHandler) handleRegisterAffiliate(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	var req application.RegisterAffiliateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	affiliate, err := h.service.RegisterAffiliate(ctx, &req)
	if err != nil {
		writeAffiliateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(affiliate)
}

func (h *AffiliateHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	affiliateID := r.URL.Query().Get("affiliate_id")
	if affiliateID == "" {
		http.Error(w, "affiliate_id is required", http.StatusBadRequest)
		return
	}
	dashboard, err := h.service.GetDashboard(ctx, affiliateID)
	if err != nil {
		writeAffiliateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dashboard)
}

func (h *AffiliateHandler) handleFollowers(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	affiliateID := r.URL.Query().Get("affiliate_id")
	if affiliateID == "" {
		http.Error(w, "affiliate_id is required", http.StatusBadRequest)
		return
	}
	followers, err := h.service.ListFollowers(ctx, affiliateID)
	if err != nil {
		writeAffiliateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(followers)
}

func (h *AffiliateHandler) handleRequestPayout(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	var cmd application.RequestPayoutCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	payout, err := h.service.RequestPayout(ctx, &cmd)
	if err != nil {
		writeAffiliateError(w, err)
		return
	}
	affiliatePayoutTransitionsTotal.WithLabelValues("requested").Inc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payout)
}

func (h *AffiliateHandler) handleUpdateBank(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	var req struct {
		AffiliateID       string `json:"affiliate_id"`
		BankName          string `json:"bank_name"`
		BankAccountName   string `json:"bank_account_name"`
		BankAccountNumber string `json:"bank_account_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.service.UpdateBankDetails(ctx, req.AffiliateID, req.BankName, req.BankAccountName, req.BankAccountNumber); err != nil {
		writeAffiliateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

func (h *AffiliateHandler) handleListAffiliates(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	affiliates, err := h.service.ListAffiliates(ctx)
	if err != nil {
		writeAffiliateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(affiliates)
}

func (h *AffiliateHandler) handleListCommissions(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	affiliateID := r.URL.Query().Get("affiliate_id")
	if affiliateID == "" {
		http.Error(w, "affiliate_id is required", http.StatusBadRequest)
		return
	}
	status := domain.CommissionStatus(r.URL.Query().Get("status"))

	commissions, err := h.service.ListCommissions(ctx, affiliateID, status)
	if err != nil {
		writeAffiliateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(commissions)
}

func (h *AffiliateHandler) handleListPendingPayouts(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	payouts, err := h.service.ListPendingPayouts(ctx)
	if err != nil {
		writeAffiliateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payouts)
}

func (h *AffiliateHandler) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx := extractCtx(r)

	if r.Method == http.MethodGet {
		settings, err := h.service.GetSettings(ctx)
		if err != nil {
			writeAffiliateError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(settings)
		return
	}

	var req application.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	settings, err := h.service.UpdateSettings(ctx, &req)
	if err != nil {
		writeAffiliateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settings)
}

// commissionOpHandler 生成一个按 commission_id 执行审批动作的处理器
func (h *AffiliateHandler) commissionOpHandler(op func(ctx context.Context, commissionID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := extractCtx(r)

		commissionID := r.URL.Query().Get("commission_id")
		if commissionID == "" {
			http.Error(w, "commission_id is required", http.StatusBadRequest)
			return
		}
		if err := op(ctx, commissionID); err != nil {
			writeAffiliateError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}
}

// payoutOpHandler 生成一个按 payout_id 执行状态流转的处理器
func (h *AffiliateHandler) payoutOpHandler(transition string, op func(ctx context.Context, payoutID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := extractCtx(r)

		payoutID := r.URL.Query().Get("payout_id")
		if payoutID == "" {
			http.Error(w, "payout_id is required", http.StatusBadRequest)
			return
		}
		if err := op(ctx, payoutID); err != nil {
			writeAffiliateError(w, err)
			return
		}
		affiliatePayoutTransitionsTotal.WithLabelValues(transition).Inc()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}
}

// writeAffiliateError 把领域错误翻译成 HTTP 状态码
func writeAffiliateError(w http.ResponseWriter, err error) {
	var statusCode int
	switch {
	case errors.Is(err, domain.ErrAffiliateNotFound),
		errors.Is(err, domain.ErrReferralNotFound),
		errors.Is(err, domain.ErrCommissionNotFound),
		errors.Is(err, domain.ErrPayoutNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidReferralCode),
		errors.Is(err, domain.ErrInvalidVisitorToken):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientCommission),
		errors.Is(err, domain.ErrBelowMinimumPayout):
		// 请求有效，但账户余额或额度拒绝执行
		statusCode = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState):
		statusCode = http.StatusConflict
	default:
		statusCode = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), statusCode)
}

func extractCtx(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}
