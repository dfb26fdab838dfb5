package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/govalues/decimal"
	"go.uber.org/zap"

	"crud-master/billing/internal/domain"
	"crud-master/billing/internal/repository/order_repo"
)

const orderColumns = `id, user_id, number_of_items, total_amount, created_at`

type pgOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, logger: l}
}

func (r *pgOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (user_id, number_of_items, total_amount, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	err := r.db.QueryRowContext(ctx, query, order.UserID, order.NumberOfItems, order.TotalAmount.String(), order.CreatedAt).Scan(&order.ID)
	if err != nil {
		r.logger.Error("Failed to create order", zap.String("user_id", order.UserID), zap.Error(err))
		return fmt.Errorf("failed to create order: %w", err)
	}
	r.logger.Debug("Order created successfully", zap.Int64("order_id", order.ID))
	return nil
}

func (r *pgOrderRepository) GetOrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		r.logger.Error("Failed to get order by ID", zap.Int64("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order by ID %d: %w", id, err)
	}
	return order, nil
}

func (r *pgOrderRepository) GetOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query orders for user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get orders by user ID %s: %w", userID, err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		r.logger.Error("Failed to read orders for user", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (r *pgOrderRepository) GetAllOrders(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query all orders", zap.Error(err))
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		r.logger.Error("Failed to read all orders", zap.Error(err))
		return nil, err
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order  domain.Order
		amount string
	)
	if err := row.Scan(&order.ID, &order.UserID, &order.NumberOfItems, &amount, &order.CreatedAt); err != nil {
		return nil, err
	}
	total, err := decimal.Parse(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid total_amount %q for order %d: %w", amount, order.ID, err)
	}
	order.TotalAmount = total
	return &order, nil
}

func scanOrders(rows *sql.Rows) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}
