package orders

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"crud-master/billing/internal/app/orders"
)

type OrderHandler struct {
	service orders.OrderService
	logger  *zap.Logger
}

func NewOrderHandler(s orders.OrderService, l *zap.Logger) *OrderHandler {
	return &OrderHandler{service: s, logger: l}
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderIDStr := chi.URLParam(r, "orderID")

	// Non-numeric ids cannot match any order.
	orderID, err := strconv.ParseInt(orderIDStr, 10, 64)
	if err != nil {
		h.logger.Debug("Non-numeric order ID in GetOrder request", zap.String("order_id", orderIDStr))
		renderError(w, "Order not found", http.StatusNotFound)
		return
	}

	res, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			h.logger.Info("Order not found", zap.Int64("order_id", orderID))
			renderError(w, "Order not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Error getting order", zap.Int64("order_id", orderID), zap.Error(err))
		renderError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	renderJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) GetOrdersByUserID(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.logger.Warn("User ID is missing in GetOrdersByUserID request")
		renderError(w, "User ID is required", http.StatusBadRequest)
		return
	}

	res, err := h.service.GetOrdersByUserID(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error getting orders for user", zap.String("user_id", userID), zap.Error(err))
		renderError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	renderJSON(w, http.StatusOK, res)
}

func (h *OrderHandler) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetAllOrders(r.Context())
	if err != nil {
		h.logger.Error("Error getting all orders", zap.Error(err))
		renderError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	renderJSON(w, http.StatusOK, res)
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func renderError(w http.ResponseWriter, message string, status int) {
	renderJSON(w, status, map[string]string{"error": message})
}
