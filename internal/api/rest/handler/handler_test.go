package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tabletide/pos/internal/access"
	"github.com/tabletide/pos/internal/api/rest/middleware"
	"github.com/tabletide/pos/internal/domain"
	"github.com/tabletide/pos/internal/notify"
)

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepo) GetOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]domain.Order, error) {
	args := m.Called(ctx, tableID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *mockOrderRepo) NextInvoiceNumber(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) PublishTableChanged(ctx context.Context, event notify.TableChanged) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func testGuard(t *testing.T) access.Guard {
	guard, err := access.NewGuard()
	require.NoError(t, err)
	return guard
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withStaff injects the identity the JWT middleware would have set.
func withStaff(r *http.Request, userID, role string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDContextKey, userID)
	ctx = context.WithValue(ctx, middleware.RoleContextKey, role)
	return r.WithContext(ctx)
}

func inProgressOrder(invoice int64) *domain.Order {
	tableID := uuid.New()
	return &domain.Order{
		ID:            uuid.New(),
		TableID:       &tableID,
		Status:        domain.OrderStatusInProgress,
		Covers:        2,
		InvoiceNumber: invoice,
		OrderType:     "dine_in",
		UserID:        "server-7",
	}
}

func orderItem(orderID uuid.UUID, name string, price float64, seat *int) domain.OrderItem {
	return domain.OrderItem{
		CartItem: domain.CartItem{
			ID:        uuid.New(),
			Dish:      domain.Dish{ID: uuid.New(), Name: name, Price: price},
			Quantity:  1,
			UnitPrice: price,
			Seat:      seat,
		},
		OrderID: orderID,
	}
}
