package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/access"
	"github.com/tabletide/pos/internal/domain"
	"github.com/tabletide/pos/internal/split"
)

// Split strategies accepted by the split endpoint.
const (
	SplitBySeat   = "seat"
	SplitByItem   = "item"
	SplitByAmount = "amount"
)

// SplitCommitter commits a prepared split session.
type SplitCommitter interface {
	Commit(ctx context.Context, session *split.Session, actor string) ([]*domain.Order, error)
}

// OrderGetter loads a single order with its items resolved.
type OrderGetter interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

// SplitHandler handles HTTP requests for splitting an order.
type SplitHandler struct {
	repo     OrderGetter
	engine   SplitCommitter
	guard    access.Guard
	notifier TableNotifier
	logger   *slog.Logger
}

// NewSplitHandler creates a new SplitHandler instance.
func NewSplitHandler(
	repo OrderGetter,
	engine SplitCommitter,
	guard access.Guard,
	notifier TableNotifier,
	logger *slog.Logger,
) *SplitHandler {
	return &SplitHandler{
		repo:     repo,
		engine:   engine,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
}

// SplitAssignment moves one item into the bucket with the given number
// before the session commits.
type SplitAssignment struct {
	ItemID uuid.UUID `json:"item_id"`
	Bucket int       `json:"bucket"`
}

// SplitOrderRequest is the payload for POST /orders/{id}/split.
type SplitOrderRequest struct {
	Strategy    string            `json:"strategy"`
	Buckets     int               `json:"buckets,omitempty"`
	Thresholds  []float64         `json:"thresholds,omitempty"`
	Assignments []SplitAssignment `json:"assignments,omitempty"`
}

// SplitOrderResponse reports the retired source and the orders the split
// produced.
type SplitOrderResponse struct {
	Source *domain.Order   `json:"source"`
	Orders []*domain.Order `json:"orders"`
}

// SplitOrder handles POST /orders/{id}/split.
func (h *SplitHandler) SplitOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := authorize(w, r, h.guard, h.logger, access.ResourceOrders, access.ActionSplit)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid order ID", "ID must be a valid UUID")
		return
	}

	var req SplitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	source, err := h.repo.GetOrderByID(r.Context(), id)
	if err != nil {
		h.logger.Warn("failed to retrieve order for split", "order_id", id, "error", err)
		writeStoreError(w, err)
		return
	}

	session, err := h.openSession(source, &req)
	if err != nil {
		if errors.Is(err, split.ErrSourceNotInProgress) {
			WriteErrorResponse(w, http.StatusConflict, "Order not splittable", "Only in-progress orders can be split")
			return
		}
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid split request", err.Error())
		return
	}

	if err := h.applyAssignments(session, req.Assignments); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid split assignment", err.Error())
		return
	}

	orders, err := h.engine.Commit(r.Context(), session, actor)
	if err != nil {
		if errors.Is(err, split.ErrNotSavable) {
			WriteErrorResponse(w, http.StatusConflict, "Split not savable",
				"A split needs at least two non-empty parts covering every item exactly once")
			return
		}
		h.logger.Error("split commit failed", "order_id", id, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Split failed",
			"An internal error occurred while splitting the order")
		return
	}

	h.notifyTable(r.Context(), source)
	WriteJSONResponse(w, http.StatusCreated, SplitOrderResponse{Source: source, Orders: orders})
}

func (h *SplitHandler) openSession(source *domain.Order, req *SplitOrderRequest) (*split.Session, error) {
	switch req.Strategy {
	case SplitBySeat:
		return split.NewBySeat(source)
	case SplitByItem:
		return split.NewByItem(source, req.Buckets)
	case SplitByAmount:
		return split.NewByAmount(source, req.Thresholds)
	default:
		return nil, fmt.Errorf("unknown split strategy %q", req.Strategy)
	}
}

func (h *SplitHandler) applyAssignments(session *split.Session, assignments []SplitAssignment) error {
	for _, a := range assignments {
		from, err := bucketOfItem(session, a.ItemID)
		if err != nil {
			return err
		}
		to, err := bucketByNumber(session, a.Bucket)
		if err != nil {
			return err
		}
		if err := session.Move(a.ItemID, from, to); err != nil {
			return err
		}
	}
	return nil
}

func bucketOfItem(session *split.Session, itemID uuid.UUID) (uuid.UUID, error) {
	for _, bucket := range session.Buckets() {
		for _, item := range bucket.Items {
			if item.ID == itemID {
				return bucket.ID, nil
			}
		}
	}
	return uuid.Nil, fmt.Errorf("item %s is not part of the order", itemID)
}

func bucketByNumber(session *split.Session, number int) (uuid.UUID, error) {
	for _, bucket := range session.Buckets() {
		if bucket.Number == number {
			return bucket.ID, nil
		}
	}
	return uuid.Nil, fmt.Errorf("bucket %d does not exist", number)
}

func (h *SplitHandler) notifyTable(ctx context.Context, order *domain.Order) {
	if order.TableID == nil {
		return
	}
	if err := h.notifier.PublishTableChanged(ctx, notifyEvent(order)); err != nil {
		h.logger.Warn("table_changed_publish_failed", "order_id", order.ID, "error", err)
	}
}
