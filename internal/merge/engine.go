// Package merge combines several in-progress orders into one new order and
// retires the sources. There is no unmerge; the audit trail is the only way
// back to the source orders.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/domain"
)

var (
	// ErrTooFewOrders is returned when fewer than two orders are selected.
	ErrTooFewOrders = errors.New("merge requires at least two orders")

	// ErrOrderNotInProgress is returned when a selected order is retired or
	// already paid.
	ErrOrderNotInProgress = errors.New("order is not in progress")
)

// OrderStore is the slice of the record store the merge engine needs.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	AssignItem(ctx context.Context, itemID, orderID uuid.UUID, seat *int) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus, tags []string) error
	// MaxInvoiceNumber returns the highest invoice number across all orders.
	MaxInvoiceNumber(ctx context.Context) (int64, error)
	// DeleteOrder is used only to compensate a partially committed merge.
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// AuditStore links a merged order to its retired sources.
type AuditStore interface {
	RecordMerge(ctx context.Context, mergedID uuid.UUID, sourceIDs []uuid.UUID, actor string, at time.Time) error
}

// Engine merges committed orders against the record store.
type Engine struct {
	store  OrderStore
	audit  AuditStore
	logger *slog.Logger
}

// NewEngine creates a merge engine.
func NewEngine(store OrderStore, audit AuditStore, logger *slog.Logger) *Engine {
	return &Engine{store: store, audit: audit, logger: logger}
}

type retiredSource struct {
	order  *domain.Order
	status domain.OrderStatus
	tags   []string
}

type itemRestore struct {
	itemID  uuid.UUID
	orderID uuid.UUID
	seat    *int
}

// Merge retires the source orders, allocates a fresh invoice number one past
// the store-wide maximum, creates one new in-progress order holding the
// union of the source items, and writes an audit record naming the sources,
// the actor and the time. A source listed more than once counts once; fewer
// than two distinct sources is ErrTooFewOrders.
//
// The store steps are compensated on failure the same way the split engine
// does it: retired sources are re-opened, moved items restored, the new
// order deleted.
func (e *Engine) Merge(ctx context.Context, sources []*domain.Order, actor string) (*domain.Order, error) {
	sources = distinctByID(sources)
	if len(sources) < 2 {
		return nil, ErrTooFewOrders
	}
	for _, src := range sources {
		if src.Status != domain.OrderStatusInProgress {
			return nil, fmt.Errorf("order %s has status %q: %w", src.ID, src.Status, ErrOrderNotInProgress)
		}
	}

	var (
		retired  []retiredSource
		restores []itemRestore
		covers   int
	)

	for _, src := range sources {
		prev := retiredSource{order: src, status: src.Status, tags: append([]string(nil), src.Tags...)}
		tags := append(append([]string(nil), src.Tags...), domain.TagMergeSource)

		if err := e.store.UpdateOrderStatus(ctx, src.ID, domain.OrderStatusMerged, tags); err != nil {
			return nil, e.compensate(ctx, retired, restores, nil,
				fmt.Errorf("retire source order %s: %w", src.ID, err))
		}
		retired = append(retired, prev)

		src.Status = domain.OrderStatusMerged
		src.Tags = tags
		covers += src.Covers
	}
	if covers < 1 {
		covers = 1
	}

	maxInvoice, err := e.store.MaxInvoiceNumber(ctx)
	if err != nil {
		return nil, e.compensate(ctx, retired, restores, nil,
			fmt.Errorf("resolve max invoice number: %w", err))
	}

	first := sources[0]
	merged := &domain.Order{
		ID:            uuid.New(),
		TableID:       first.TableID,
		Status:        domain.OrderStatusInProgress,
		Covers:        covers,
		InvoiceNumber: maxInvoice + 1,
		Tags:          []string{domain.TagMergeOrder},
		OrderType:     first.OrderType,
		UserID:        first.UserID,
		CreatedAt:     first.CreatedAt,
	}

	if err := e.store.CreateOrder(ctx, merged); err != nil {
		return nil, e.compensate(ctx, retired, restores, nil,
			fmt.Errorf("create merged order: %w", err))
	}

	for _, src := range sources {
		for _, item := range src.Items {
			if err := e.store.AssignItem(ctx, item.ID, merged.ID, item.Seat); err != nil {
				return nil, e.compensate(ctx, retired, restores, merged,
					fmt.Errorf("assign item %s to merged order: %w", item.ID, err))
			}
			restores = append(restores, itemRestore{itemID: item.ID, orderID: src.ID, seat: item.Seat})

			item.OrderID = merged.ID
			merged.Items = append(merged.Items, item)
		}
	}

	sourceIDs := make([]uuid.UUID, 0, len(sources))
	for _, src := range sources {
		sourceIDs = append(sourceIDs, src.ID)
	}
	if err := e.audit.RecordMerge(ctx, merged.ID, sourceIDs, actor, time.Now().UTC()); err != nil {
		return nil, e.compensate(ctx, retired, restores, merged,
			fmt.Errorf("record merge audit: %w", err))
	}

	e.logger.Info("orders_merged",
		"merged_order_id", merged.ID,
		"source_count", len(sources),
		"invoice_number", merged.InvoiceNumber,
		"covers", covers,
		"actor", actor,
	)
	return merged, nil
}

// distinctByID drops repeated selections of the same order. Covers are
// summed and items moved once per distinct source.
func distinctByID(sources []*domain.Order) []*domain.Order {
	seen := make(map[uuid.UUID]struct{}, len(sources))
	distinct := make([]*domain.Order, 0, len(sources))
	for _, src := range sources {
		if _, ok := seen[src.ID]; ok {
			continue
		}
		seen[src.ID] = struct{}{}
		distinct = append(distinct, src)
	}
	return distinct
}

func (e *Engine) compensate(
	ctx context.Context,
	retired []retiredSource,
	restores []itemRestore,
	merged *domain.Order,
	cause error,
) error {
	failed := false

	for i := len(restores) - 1; i >= 0; i-- {
		r := restores[i]
		if err := e.store.AssignItem(ctx, r.itemID, r.orderID, r.seat); err != nil {
			failed = true
			e.logger.Error("merge_rollback_item_failed", "item_id", r.itemID, "error", err)
		}
	}

	if merged != nil {
		if err := e.store.DeleteOrder(ctx, merged.ID); err != nil {
			failed = true
			e.logger.Error("merge_rollback_order_failed", "order_id", merged.ID, "error", err)
		}
	}

	for i := len(retired) - 1; i >= 0; i-- {
		r := retired[i]
		if err := e.store.UpdateOrderStatus(ctx, r.order.ID, r.status, r.tags); err != nil {
			failed = true
			e.logger.Error("merge_rollback_source_failed", "order_id", r.order.ID, "error", err)
			continue
		}
		r.order.Status = r.status
		r.order.Tags = r.tags
	}

	if failed {
		return fmt.Errorf("merge failed and rollback was incomplete: %w", cause)
	}
	return fmt.Errorf("merge failed, rolled back: %w", cause)
}
