package orders

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/govalues/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"crud-master/billing/internal/domain"
)

type memoryOrderRepo struct {
	mu        sync.Mutex
	nextID    int64
	orders    []*domain.Order
	createErr error
	readErr   error
}

func (r *memoryOrderRepo) CreateOrder(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	order.ID = r.nextID
	stored := *order
	r.orders = append(r.orders, &stored)
	return nil
}

func (r *memoryOrderRepo) GetOrderByID(_ context.Context, id int64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	for _, o := range r.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memoryOrderRepo) GetOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	var out []*domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memoryOrderRepo) GetAllOrders(_ context.Context) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	return append([]*domain.Order(nil), r.orders...), nil
}

func TestOrderService_CreateOrder(t *testing.T) {
	repo := &memoryOrderRepo{}
	svc := NewOrderService(repo, zaptest.NewLogger(t))

	res, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		UserID:        "u1",
		NumberOfItems: 2,
		TotalAmount:   decimal.MustParse("19.99"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, 2, res.NumberOfItems)
	assert.Equal(t, "19.99", res.TotalAmount.String())
	require.Len(t, repo.orders, 1)
}

func TestOrderService_CreateOrderTwiceDuplicates(t *testing.T) {
	repo := &memoryOrderRepo{}
	svc := NewOrderService(repo, zaptest.NewLogger(t))
	req := &CreateOrderRequest{UserID: "u1", NumberOfItems: 2, TotalAmount: decimal.MustParse("19.99")}

	first, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, repo.orders, 2)
}

func TestOrderService_CreateOrderInvalid(t *testing.T) {
	repo := &memoryOrderRepo{}
	svc := NewOrderService(repo, zaptest.NewLogger(t))

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		UserID:        "u1",
		NumberOfItems: -1,
		TotalAmount:   decimal.MustParse("1"),
	})
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Empty(t, repo.orders)
}

func TestOrderService_CreateOrderStorageFailure(t *testing.T) {
	storageErr := errors.New("connection reset by peer")
	repo := &memoryOrderRepo{createErr: storageErr}
	svc := NewOrderService(repo, zaptest.NewLogger(t))

	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{UserID: "u1", TotalAmount: decimal.Zero})
	assert.ErrorIs(t, err, storageErr)
	assert.NotErrorIs(t, err, ErrInvalidOrder)
}

func TestOrderService_GetOrder(t *testing.T) {
	repo := &memoryOrderRepo{}
	svc := NewOrderService(repo, zaptest.NewLogger(t))
	created, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{UserID: "u1", NumberOfItems: 1, TotalAmount: decimal.MustParse("3.50")})
	require.NoError(t, err)

	got, err := svc.GetOrder(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = svc.GetOrder(context.Background(), 99)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_ReadFailures(t *testing.T) {
	repo := &memoryOrderRepo{readErr: errors.New("db down")}
	svc := NewOrderService(repo, zaptest.NewLogger(t))

	_, err := svc.GetOrder(context.Background(), 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.GetAllOrders(context.Background())
	assert.Error(t, err)

	_, err = svc.GetOrdersByUserID(context.Background(), "u1")
	assert.Error(t, err)
}

func TestOrderService_GetOrdersByUserID(t *testing.T) {
	repo := &memoryOrderRepo{}
	svc := NewOrderService(repo, zaptest.NewLogger(t))
	for _, user := range []string{"u1", "u2", "u1"} {
		_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{UserID: user, TotalAmount: decimal.Zero})
		require.NoError(t, err)
	}

	orders, err := svc.GetOrdersByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	all, err := svc.GetAllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
