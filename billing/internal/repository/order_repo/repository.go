package order_repo

import (
	"context"

	"crud-master/billing/internal/domain"
)

type OrderRepository interface {
	// CreateOrder inserts the order and sets order.ID. It returns only after
	// the row is committed.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id int64) (*domain.Order, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	GetAllOrders(ctx context.Context) ([]*domain.Order, error)
}
