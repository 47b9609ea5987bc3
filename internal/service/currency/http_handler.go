// internal/service/currency/http_handler.go
package currency

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Handler 暴露汇率查询接口
type Handler struct {
	converter *Converter
}

func NewHandler(converter *Converter) *Handler {
	return &Handler{converter: converter}
}

// RegisterRoutes 在 ServeMux 上注册路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/currency/rate", h.handleGetRate)
}

func (h *Handler) handleGetRate(w http.ResponseWriter, r *http.Request) {
	propagator := otel.GetTextMapPropagator()
	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	rate := h.converter.GetRate(ctx)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rate)
}
