package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tabletide/pos/internal/domain"
	"github.com/tabletide/pos/internal/repository"
)

const (
	PaymentResource = "payment"
)

// PaymentRepository provides database operations for payment and extra
// charge records.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository instance.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{
		pool: pool,
	}
}

// CreatePayment records a captured payment against an order. The payment
// type is stored as a JSON snapshot so later edits to the type catalogue
// never rewrite settled history.
func (r *PaymentRepository) CreatePayment(ctx context.Context, orderID uuid.UUID, payment *domain.Payment) error {
	typeRaw, err := json.Marshal(payment.Type)
	if err != nil {
		return fmt.Errorf("encode payment type for payment %s: %w", payment.ID, err)
	}

	_, err = r.pool.Exec(ctx,
		"INSERT INTO payments (id, order_id, payment_type, amount, payable) VALUES ($1, $2, $3, $4, $5)",
		payment.ID, orderID, typeRaw, payment.Amount, payment.Payable,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment %s: %w", payment.ID, err)
	}

	return nil
}

// CreateExtra records an ad hoc named amount against an order.
func (r *PaymentRepository) CreateExtra(ctx context.Context, orderID uuid.UUID, extra *domain.Extra) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO order_extras (id, order_id, name, value) VALUES ($1, $2, $3, $4)",
		uuid.New(), orderID, extra.Name, extra.Value,
	)
	if err != nil {
		return fmt.Errorf("failed to create extra %q for order %s: %w", extra.Name, orderID, err)
	}

	return nil
}

// DeletePayment removes a payment record.
func (r *PaymentRepository) DeletePayment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM payments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &repository.NotFoundError{Resource: PaymentResource, Key: "id", Value: id.String()}
	}

	return nil
}
