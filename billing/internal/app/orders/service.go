package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"crud-master/billing/internal/domain"
	"crud-master/billing/internal/repository/order_repo"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidOrder  = errors.New("invalid order data")
)

type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, orderID int64) (*OrderResponse, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]*OrderResponse, error)
	GetAllOrders(ctx context.Context) ([]*OrderResponse, error)
}

type orderService struct {
	orderRepo order_repo.OrderRepository
	logger    *zap.Logger
}

func NewOrderService(orderRepo order_repo.OrderRepository, logger *zap.Logger) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		logger:    logger,
	}
}

// CreateOrder persists one order per call. Calling it twice with the same
// request creates two orders.
func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	order, err := domain.NewOrder(req.UserID, req.NumberOfItems, req.TotalAmount)
	if err != nil {
		s.logger.Warn("Rejected invalid order data", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		s.logger.Error("Failed to save order", zap.String("user_id", order.UserID), zap.Error(err))
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("number_of_items", order.NumberOfItems),
		zap.String("total_amount", order.TotalAmount.String()))

	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int64) (*OrderResponse, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("Order not found", zap.Int64("order_id", orderID))
			return nil, ErrOrderNotFound
		}
		s.logger.Error("Failed to get order from repository", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrdersByUserID(ctx context.Context, userID string) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to get orders for user from repository", zap.String("user_id", userID), zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrdersToResponse(orders), nil
}

func (s *orderService) GetAllOrders(ctx context.Context) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.GetAllOrders(ctx)
	if err != nil {
		s.logger.Error("Failed to get all orders from repository", zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrdersToResponse(orders), nil
}

func mapOrderToResponse(order *domain.Order) *OrderResponse {
	return &OrderResponse{
		ID:            order.ID,
		UserID:        order.UserID,
		NumberOfItems: order.NumberOfItems,
		TotalAmount:   json.Number(order.TotalAmount.String()),
		CreatedAt:     order.CreatedAt,
	}
}

func mapOrdersToResponse(orders []*domain.Order) []*OrderResponse {
	responses := make([]*OrderResponse, len(orders))
	for i, order := range orders {
		responses[i] = mapOrderToResponse(order)
	}
	return responses
}
