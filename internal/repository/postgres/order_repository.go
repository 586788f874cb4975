package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tabletide/pos/internal/domain"
	"github.com/tabletide/pos/internal/repository"
	"github.com/tabletide/pos/internal/settlement"
)

const (
	OrderResource     = "order"
	OrderItemResource = "order item"
)

// OrderRepository provides database operations for orders and their items.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository instance.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		pool: pool,
	}
}

// CreateOrder inserts an order together with its items in a single
// transaction. The cart tree of each item is stored as a JSON payload; seat
// and owning order live in their own columns so reassignment never rewrites
// the payload.
func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `INSERT INTO orders
		(id, table_id, status, covers, invoice_number,
		 tax_amount, discount_amount, service_charge_amount, tip_amount,
		 tags, order_type, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = tx.Exec(ctx, query,
		order.ID, order.TableID, order.Status, order.Covers, order.InvoiceNumber,
		order.TaxAmount, order.DiscountAmount, order.ServiceChargeAmount, order.TipAmount,
		order.Tags, order.OrderType, order.UserID, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		payload, err := json.Marshal(item.CartItem)
		if err != nil {
			return fmt.Errorf("encode item %s: %w", item.ID, err)
		}

		_, err = tx.Exec(ctx,
			"INSERT INTO order_items (id, order_id, seat, payload) VALUES ($1, $2, $3, $4)",
			item.ID, order.ID, item.Seat, payload,
		)
		if err != nil {
			return fmt.Errorf("failed to create order item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

// GetOrderByID retrieves an order with its items, payments and extras
// resolved.
func (r *OrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := r.scanOrder(ctx, r.pool.QueryRow(ctx, selectOrder+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &repository.NotFoundError{
				Resource: OrderResource,
				Key:      "id",
				Value:    id.String(),
			}
		}
		return nil, fmt.Errorf("failed to retrieve order with id %s: %w", id, err)
	}

	if order.Items, err = r.itemsByOrder(ctx, id); err != nil {
		return nil, err
	}
	if order.Payments, err = r.paymentsByOrder(ctx, id); err != nil {
		return nil, err
	}
	if order.Extras, err = r.extrasByOrder(ctx, id); err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrdersByTable lists the in-progress orders seated at a table, items
// resolved, oldest first.
func (r *OrderRepository) GetOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx,
		selectOrder+" WHERE table_id = $1 AND status = $2 ORDER BY created_at",
		tableID, domain.OrderStatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders for table %s: %w", tableID, err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := r.scanOrder(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("scan order for table %s: %w", tableID, err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read orders for table %s: %w", tableID, err)
	}

	for i := range orders {
		if orders[i].Items, err = r.itemsByOrder(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// UpdateOrderStatus sets the lifecycle status and replaces the tag list.
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, tags []string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE orders SET status = $2, tags = $3 WHERE id = $1",
		id, status, tags,
	)
	if err != nil {
		return fmt.Errorf("failed to update status for order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &repository.NotFoundError{Resource: OrderResource, Key: "id", Value: id.String()}
	}

	return nil
}

// AssignItem moves an item to another order, updating its seat at the same
// time. Exclusive ownership is the single order_id column, so reassignment
// is atomic per item.
func (r *OrderRepository) AssignItem(ctx context.Context, itemID, orderID uuid.UUID, seat *int) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE order_items SET order_id = $2, seat = $3 WHERE id = $1",
		itemID, orderID, seat,
	)
	if err != nil {
		return fmt.Errorf("failed to assign item %s to order %s: %w", itemID, orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return &repository.NotFoundError{Resource: OrderItemResource, Key: "id", Value: itemID.String()}
	}

	return nil
}

// SettleOrder applies the terminal settlement update. Payments are linked by
// their own order_id column, so only the status and adjustment figures are
// written here. Only an in-progress order settles; anything else is a
// ConflictError naming the order's current state.
func (r *OrderRepository) SettleOrder(ctx context.Context, id uuid.UUID, settled settlement.SettledOrder) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET
			status = $2,
			tax_amount = $3,
			discount_amount = $4,
			service_charge_amount = $5,
			tip_amount = $6
		WHERE id = $1 AND status = $7`,
		id, settled.Status,
		settled.TaxAmount, settled.DiscountAmount, settled.ServiceChargeAmount, settled.TipAmount,
		domain.OrderStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("failed to settle order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := r.pool.QueryRow(ctx, "SELECT status FROM orders WHERE id = $1", id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return &repository.NotFoundError{Resource: OrderResource, Key: "id", Value: id.String()}
		}
		if err != nil {
			return fmt.Errorf("failed to settle order %s: %w", id, err)
		}
		return &repository.ConflictError{Resource: OrderResource, Key: "id", Value: id.String(), State: status}
	}

	return nil
}

// MaxInvoiceNumber returns the highest invoice number issued so far, zero
// when no orders exist.
func (r *OrderRepository) MaxInvoiceNumber(ctx context.Context) (int64, error) {
	var max int64
	err := r.pool.QueryRow(ctx, "SELECT COALESCE(MAX(invoice_number), 0) FROM orders").Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max invoice number: %w", err)
	}

	return max, nil
}

// NextInvoiceNumber draws a fresh invoice number from the shared sequence.
func (r *OrderRepository) NextInvoiceNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, "SELECT nextval('invoice_numbers')").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to draw invoice number: %w", err)
	}

	return n, nil
}

// DeleteOrder removes an order and any items still assigned to it. It exists
// to compensate partially committed split and merge transactions; regular
// retirement keeps orders with a terminal status instead.
func (r *OrderRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete order: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE order_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete items for order %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM orders WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete order %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete order: %w", err)
	}

	return nil
}

const selectOrder = `SELECT id, table_id, status, covers, invoice_number,
	tax_amount, discount_amount, service_charge_amount, tip_amount,
	tags, order_type, user_id, created_at
	FROM orders`

func (r *OrderRepository) scanOrder(_ context.Context, row pgx.Row) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID, &order.TableID, &order.Status, &order.Covers, &order.InvoiceNumber,
		&order.TaxAmount, &order.DiscountAmount, &order.ServiceChargeAmount, &order.TipAmount,
		&order.Tags, &order.OrderType, &order.UserID, &order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *OrderRepository) itemsByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, seat, payload FROM order_items WHERE order_id = $1 ORDER BY position",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var (
			id      uuid.UUID
			seat    *int
			payload []byte
		)
		if err := rows.Scan(&id, &seat, &payload); err != nil {
			return nil, fmt.Errorf("scan item for order %s: %w", orderID, err)
		}

		var item domain.OrderItem
		if err := json.Unmarshal(payload, &item.CartItem); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", id, err)
		}
		// Columns are authoritative over the payload snapshot.
		item.ID = id
		item.Seat = seat
		item.OrderID = orderID
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read items for order %s: %w", orderID, err)
	}

	return items, nil
}

func (r *OrderRepository) paymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, payment_type, amount, payable FROM payments WHERE order_id = $1 ORDER BY created_at",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments for order %s: %w", orderID, err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var (
			p       domain.Payment
			typeRaw []byte
		)
		if err := rows.Scan(&p.ID, &typeRaw, &p.Amount, &p.Payable); err != nil {
			return nil, fmt.Errorf("scan payment for order %s: %w", orderID, err)
		}
		if err := json.Unmarshal(typeRaw, &p.Type); err != nil {
			return nil, fmt.Errorf("decode payment type for payment %s: %w", p.ID, err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read payments for order %s: %w", orderID, err)
	}

	return payments, nil
}

func (r *OrderRepository) extrasByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Extra, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT name, value FROM order_extras WHERE order_id = $1",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query extras for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var extras []domain.Extra
	for rows.Next() {
		var e domain.Extra
		if err := rows.Scan(&e.Name, &e.Value); err != nil {
			return nil, fmt.Errorf("scan extra for order %s: %w", orderID, err)
		}
		extras = append(extras, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read extras for order %s: %w", orderID, err)
	}

	return extras, nil
}
