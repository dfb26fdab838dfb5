package orders

import (
	"encoding/json"
	"time"

	"github.com/govalues/decimal"
)

type CreateOrderRequest struct {
	UserID        string
	NumberOfItems int
	TotalAmount   decimal.Decimal
}

// OrderResponse renders total_amount as a JSON number with its stored scale.
type OrderResponse struct {
	ID            int64       `json:"id"`
	UserID        string      `json:"user_id"`
	NumberOfItems int         `json:"number_of_items"`
	TotalAmount   json.Number `json:"total_amount"`
	CreatedAt     time.Time   `json:"created_at"`
}
