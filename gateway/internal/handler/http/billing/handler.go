package billing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"crud-master/gateway/internal/infrastructure/rabbitmq"
)

const maxBodyBytes = 1 << 20

// BillingRequest is the payload accepted on POST /api/billing. Values are
// forwarded to the queue as received; the consumer interprets them.
type BillingRequest struct {
	UserID        *json.RawMessage `json:"user_id" validate:"required"`
	NumberOfItems *json.RawMessage `json:"number_of_items" validate:"required"`
	TotalAmount   *json.RawMessage `json:"total_amount" validate:"required"`
}

type BillingHandler struct {
	publisher rabbitmq.Publisher
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewBillingHandler(p rabbitmq.Publisher, l *zap.Logger) *BillingHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &BillingHandler{publisher: p, validate: v, logger: l}
}

func (h *BillingHandler) PostBilling(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn("Failed to read billing request body", zap.Error(err))
		renderJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		renderJSON(w, http.StatusBadRequest, map[string]string{"error": "No data provided"})
		return
	}

	var req BillingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Warn("Invalid request body for PostBilling", zap.Error(err))
		renderJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			h.logger.Info("Billing request rejected", zap.String("missing_field", ve[0].Field()))
			renderJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: " + ve[0].Field()})
			return
		}
		h.logger.Error("Billing request validation failed", zap.Error(err))
		renderJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	payload, err := json.Marshal(req)
	if err != nil {
		h.logger.Error("Failed to marshal billing payload", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := h.publisher.Publish(r.Context(), payload); err != nil {
		h.logger.Error("Failed to publish billing request", zap.Error(err))
		renderJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	renderJSON(w, http.StatusOK, map[string]string{"message": "Message posted to billing queue"})
}

func RegisterRoutes(r chi.Router, p rabbitmq.Publisher, l *zap.Logger) {
	handler := NewBillingHandler(p, l.With(zap.String("component", "BillingHTTPHandler")))

	r.Post("/api/billing", handler.PostBilling)
}

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
