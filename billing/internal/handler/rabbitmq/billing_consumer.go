package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/govalues/decimal"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"crud-master/billing/internal/app/orders"
	"crud-master/billing/internal/infrastructure/rabbitmq"
)

// BillingMessage is the body published by the gateway. Each field accepts a
// JSON string or number.
type BillingMessage struct {
	UserID        json.RawMessage `json:"user_id"`
	NumberOfItems json.RawMessage `json:"number_of_items"`
	TotalAmount   json.RawMessage `json:"total_amount"`
}

type BillingConsumer struct {
	orderService orders.OrderService
	logger       *zap.Logger
}

func NewBillingConsumer(s orders.OrderService, l *zap.Logger) *BillingConsumer {
	return &BillingConsumer{orderService: s, logger: l}
}

// HandleMessage stores one order per delivery and returns only after the
// insert has committed.
func (c *BillingConsumer) HandleMessage(ctx context.Context, d amqp.Delivery) error {
	req, err := DecodeBillingMessage(d.Body)
	if err != nil {
		c.logger.Warn("Error decoding billing message", zap.Error(err), zap.ByteString("raw_message", d.Body))
		return fmt.Errorf("%w: %v", rabbitmq.ErrMalformedMessage, err)
	}

	c.logger.Info("Received billing message",
		zap.String("user_id", req.UserID),
		zap.Int("number_of_items", req.NumberOfItems),
		zap.String("total_amount", req.TotalAmount.String()))

	order, err := c.orderService.CreateOrder(ctx, req)
	if err != nil {
		if errors.Is(err, orders.ErrInvalidOrder) {
			return fmt.Errorf("%w: %v", rabbitmq.ErrMalformedMessage, err)
		}
		return fmt.Errorf("failed to process billing message: %w", err)
	}

	c.logger.Debug("Billing message stored", zap.Int64("order_id", order.ID))
	return nil
}

func DecodeBillingMessage(body []byte) (*orders.CreateOrderRequest, error) {
	var msg BillingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	userID, err := decodeUserID(msg.UserID)
	if err != nil {
		return nil, err
	}

	items, err := decodeNumber("number_of_items", msg.NumberOfItems)
	if err != nil {
		return nil, err
	}
	numberOfItems, err := strconv.Atoi(items.String())
	if err != nil {
		return nil, fmt.Errorf("number_of_items must be an integer, got %s", items)
	}

	amount, err := decodeNumber("total_amount", msg.TotalAmount)
	if err != nil {
		return nil, err
	}
	totalAmount, err := decimal.Parse(amount.String())
	if err != nil {
		return nil, fmt.Errorf("total_amount: %w", err)
	}

	return &orders.CreateOrderRequest{
		UserID:        userID,
		NumberOfItems: numberOfItems,
		TotalAmount:   totalAmount,
	}, nil
}

func isMissing(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeUserID(raw json.RawMessage) (string, error) {
	if isMissing(raw) {
		return "", errors.New("missing required field: user_id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("user_id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("user_id must be a string or number, got %s", raw)
	}
	return n.String(), nil
}

// decodeNumber accepts a JSON number or a string holding one.
func decodeNumber(field string, raw json.RawMessage) (json.Number, error) {
	if isMissing(raw) {
		return "", fmt.Errorf("missing required field: %s", field)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%s must be numeric, got %s", field, raw)
	}
	return n, nil
}
