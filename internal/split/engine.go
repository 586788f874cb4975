package split

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/domain"
)

// ErrNotSavable is returned when a commit is attempted on a session that
// does not satisfy the partition contract.
var ErrNotSavable = errors.New("split session is not savable")

// OrderStore is the slice of the record store the split engine needs.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	AssignItem(ctx context.Context, itemID, orderID uuid.UUID, seat *int) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, tags []string) error
	// DeleteOrder is used only to compensate a partially committed split.
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// AuditStore records which orders a split produced.
type AuditStore interface {
	RecordSplit(ctx context.Context, sourceID uuid.UUID, resultIDs []uuid.UUID, actor string, at time.Time) error
}

// Engine commits split sessions against the record store.
type Engine struct {
	store  OrderStore
	audit  AuditStore
	logger *slog.Logger
}

// NewEngine creates a split engine.
func NewEngine(store OrderStore, audit AuditStore, logger *slog.Logger) *Engine {
	return &Engine{store: store, audit: audit, logger: logger}
}

// itemRestore remembers an item's pre-split assignment so a failed commit
// can put it back.
type itemRestore struct {
	itemID uuid.UUID
	seat   *int
}

// Commit turns every non-empty bucket into a new in-progress order carrying
// the source's invoice number, reassigns each bucket's items to it with the
// bucket number as seat, and finally retires the source as split.
//
// The store gives no atomicity across these steps. Each committed step is
// recorded, and on failure the already committed steps are rolled back:
// reassigned items return to the source and created orders are deleted.
// Compensation failures are logged and surfaced in the returned error.
func (e *Engine) Commit(ctx context.Context, session *Session, actor string) ([]*domain.Order, error) {
	if !session.CanSave() {
		return nil, ErrNotSavable
	}

	source := session.Source()
	covers := ceilDiv(source.Covers, session.nonEmptyCount())
	if covers < 1 {
		covers = 1
	}

	var (
		created  []*domain.Order
		restores []itemRestore
	)

	for _, bucket := range session.Buckets() {
		if len(bucket.Items) == 0 {
			continue
		}

		order := &domain.Order{
			ID:      uuid.New(),
			TableID: source.TableID,
			Status:  domain.OrderStatusInProgress,
			Covers:  covers,
			// Splits share the parent invoice number.
			InvoiceNumber: source.InvoiceNumber,
			Tags:          []string{domain.TagSplitOrder},
			OrderType:     source.OrderType,
			UserID:        source.UserID,
			CreatedAt:     time.Now().UTC(),
		}

		if err := e.store.CreateOrder(ctx, order); err != nil {
			return nil, e.compensate(ctx, source, created, restores,
				fmt.Errorf("create order for bucket %q: %w", bucket.Name, err))
		}
		created = append(created, order)

		seat := bucket.Number
		for _, item := range bucket.Items {
			if err := e.store.AssignItem(ctx, item.ID, order.ID, &seat); err != nil {
				return nil, e.compensate(ctx, source, created, restores,
					fmt.Errorf("assign item %s to order %s: %w", item.ID, order.ID, err))
			}
			restores = append(restores, itemRestore{itemID: item.ID, seat: item.Seat})

			item.OrderID = order.ID
			item.Seat = &seat
			order.Items = append(order.Items, item)
		}
	}

	if err := e.store.UpdateOrderStatus(ctx, source.ID, domain.OrderStatusSplit,
		append(append([]string(nil), source.Tags...), domain.TagSplitSource)); err != nil {
		return nil, e.compensate(ctx, source, created, restores,
			fmt.Errorf("retire source order %s: %w", source.ID, err))
	}
	source.Status = domain.OrderStatusSplit
	source.Tags = append(source.Tags, domain.TagSplitSource)

	resultIDs := make([]uuid.UUID, 0, len(created))
	for _, o := range created {
		resultIDs = append(resultIDs, o.ID)
	}
	if err := e.audit.RecordSplit(ctx, source.ID, resultIDs, actor, time.Now().UTC()); err != nil {
		// The split itself is committed; a missing audit row is not worth
		// unwinding it.
		e.logger.Warn("split_audit_failed", "source_order_id", source.ID, "error", err)
	}

	e.logger.Info("order_split",
		"source_order_id", source.ID,
		"result_count", len(created),
		"invoice_number", source.InvoiceNumber,
		"actor", actor,
	)
	return created, nil
}

// compensate rolls back committed sub-steps in reverse: item assignments
// first, then created orders.
func (e *Engine) compensate(
	ctx context.Context,
	source *domain.Order,
	created []*domain.Order,
	restores []itemRestore,
	cause error,
) error {
	failed := false

	for i := len(restores) - 1; i >= 0; i-- {
		r := restores[i]
		if err := e.store.AssignItem(ctx, r.itemID, source.ID, r.seat); err != nil {
			failed = true
			e.logger.Error("split_rollback_item_failed", "item_id", r.itemID, "error", err)
		}
	}

	for i := len(created) - 1; i >= 0; i-- {
		if err := e.store.DeleteOrder(ctx, created[i].ID); err != nil {
			failed = true
			e.logger.Error("split_rollback_order_failed", "order_id", created[i].ID, "error", err)
		}
	}

	if failed {
		return fmt.Errorf("split commit failed and rollback was incomplete: %w", cause)
	}
	return fmt.Errorf("split commit failed, rolled back: %w", cause)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
