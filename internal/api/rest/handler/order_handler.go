package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/access"
	"github.com/tabletide/pos/internal/api/rest/middleware"
	"github.com/tabletide/pos/internal/domain"
	"github.com/tabletide/pos/internal/notify"
)

// OrderRepository is the slice of the record store the order handler needs.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]domain.Order, error)
	NextInvoiceNumber(ctx context.Context) (int64, error)
}

// TableNotifier pushes live table updates to other terminals.
type TableNotifier interface {
	PublishTableChanged(ctx context.Context, event notify.TableChanged) error
}

// OrderHandler handles HTTP requests for committing and reading orders.
type OrderHandler struct {
	repo     OrderRepository
	guard    access.Guard
	notifier TableNotifier
	logger   *slog.Logger
}

// NewOrderHandler creates a new OrderHandler instance.
func NewOrderHandler(repo OrderRepository, guard access.Guard, notifier TableNotifier, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		repo:     repo,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateOrderRequest is the payload for committing a cart into an order.
type CreateOrderRequest struct {
	TableID   *uuid.UUID        `json:"table_id,omitempty"`
	Covers    int               `json:"covers"`
	OrderType string            `json:"order_type"`
	Items     []domain.CartItem `json:"items"`
}

// CreateOrder handles POST /orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r, access.ResourceOrders, access.ActionCreate)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if len(req.Items) == 0 {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request", "Order needs at least one item")
		return
	}
	if req.Covers < 1 {
		req.Covers = 1
	}

	invoice, err := h.repo.NextInvoiceNumber(r.Context())
	if err != nil {
		h.logger.Error("failed to draw invoice number", "error", err)
		writeStoreError(w, err)
		return
	}

	order := &domain.Order{
		ID:            uuid.New(),
		TableID:       req.TableID,
		Status:        domain.OrderStatusInProgress,
		Covers:        req.Covers,
		InvoiceNumber: invoice,
		Tags:          []string{},
		OrderType:     req.OrderType,
		UserID:        userID,
		CreatedAt:     time.Now().UTC(),
	}
	order.Items = make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		order.Items = append(order.Items, domain.OrderItem{CartItem: item, OrderID: order.ID})
	}

	if err := h.repo.CreateOrder(r.Context(), order); err != nil {
		h.logger.Error("failed to create order", "error", err, "invoice_number", invoice, "user_id", userID)
		writeStoreError(w, err)
		return
	}

	h.notifyTable(r.Context(), order)
	WriteJSONResponse(w, http.StatusCreated, order)
}

// GetOrderByID handles GET /orders/{id}.
func (h *OrderHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, access.ResourceOrders, access.ActionView); !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid order ID", "ID must be a valid UUID")
		return
	}

	order, err := h.repo.GetOrderByID(r.Context(), id)
	if err != nil {
		h.logger.Warn("failed to retrieve order", "order_id", id, "error", err)
		writeStoreError(w, err)
		return
	}

	WriteJSONResponse(w, http.StatusOK, order)
}

// GetOrdersByTable handles GET /tables/{id}/orders.
func (h *OrderHandler) GetOrdersByTable(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, access.ResourceOrders, access.ActionView); !ok {
		return
	}

	tableID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid table ID", "ID must be a valid UUID")
		return
	}

	orders, err := h.repo.GetOrdersByTable(r.Context(), tableID)
	if err != nil {
		h.logger.Error("failed to list table orders", "table_id", tableID, "error", err)
		writeStoreError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	WriteJSONResponse(w, http.StatusOK, orders)
}

func (h *OrderHandler) authorize(w http.ResponseWriter, r *http.Request, resource, action string) (string, bool) {
	return authorize(w, r, h.guard, h.logger, resource, action)
}

func (h *OrderHandler) notifyTable(ctx context.Context, order *domain.Order) {
	if order.TableID == nil {
		return
	}
	if err := h.notifier.PublishTableChanged(ctx, notify.TableChanged{
		TableID: *order.TableID,
		OrderID: order.ID,
	}); err != nil {
		// Other terminals miss one push and catch up on their next fetch.
		h.logger.Warn("table_changed_publish_failed", "order_id", order.ID, "error", err)
	}
}

func notifyEvent(order *domain.Order) notify.TableChanged {
	return notify.TableChanged{TableID: *order.TableID, OrderID: order.ID}
}

// authorize resolves the staff identity from the request context and consults
// the guard. It writes the failure response itself so callers can bail with a
// single check.
func authorize(
	w http.ResponseWriter,
	r *http.Request,
	guard access.Guard,
	logger *slog.Logger,
	resource, action string,
) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		WriteErrorResponse(w, http.StatusUnauthorized, "Authentication required", "User authentication is required")
		return "", false
	}

	role, _ := middleware.GetRoleFromContext(r.Context())
	allowed, err := guard.Allow(r.Context(), role, resource, action)
	if err != nil {
		logger.Error("access check failed", "role", role, "resource", resource, "action", action, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Internal error", "Access check failed")
		return "", false
	}
	if !allowed {
		WriteErrorResponse(w, http.StatusForbidden, "Forbidden", "Role is not allowed to perform this operation")
		return "", false
	}

	return userID, true
}
