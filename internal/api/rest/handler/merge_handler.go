package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/access"
	"github.com/tabletide/pos/internal/domain"
	"github.com/tabletide/pos/internal/merge"
)

// Merger combines in-progress orders into one.
type Merger interface {
	Merge(ctx context.Context, sources []*domain.Order, actor string) (*domain.Order, error)
}

// MergeHandler handles HTTP requests for merging orders.
type MergeHandler struct {
	repo     OrderGetter
	engine   Merger
	guard    access.Guard
	notifier TableNotifier
	logger   *slog.Logger
}

// NewMergeHandler creates a new MergeHandler instance.
func NewMergeHandler(
	repo OrderGetter,
	engine Merger,
	guard access.Guard,
	notifier TableNotifier,
	logger *slog.Logger,
) *MergeHandler {
	return &MergeHandler{
		repo:     repo,
		engine:   engine,
		guard:    guard,
		notifier: notifier,
		logger:   logger,
	}
}

// MergeOrdersRequest is the payload for POST /orders/merge.
type MergeOrdersRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids"`
}

// MergeOrders handles POST /orders/merge.
func (h *MergeHandler) MergeOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := authorize(w, r, h.guard, h.logger, access.ResourceOrders, access.ActionMerge)
	if !ok {
		return
	}

	var req MergeOrdersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	ids := distinctIDs(req.OrderIDs)
	if len(ids) < 2 {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request", "A merge needs at least two distinct orders")
		return
	}

	sources := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := h.repo.GetOrderByID(r.Context(), id)
		if err != nil {
			h.logger.Warn("failed to retrieve order for merge", "order_id", id, "error", err)
			writeStoreError(w, err)
			return
		}
		sources = append(sources, order)
	}

	merged, err := h.engine.Merge(r.Context(), sources, actor)
	if err != nil {
		switch {
		case errors.Is(err, merge.ErrTooFewOrders):
			WriteErrorResponse(w, http.StatusBadRequest, "Invalid request", "A merge needs at least two orders")
		case errors.Is(err, merge.ErrOrderNotInProgress):
			WriteErrorResponse(w, http.StatusConflict, "Orders not mergeable", "Only in-progress orders can be merged")
		default:
			h.logger.Error("merge failed", "order_ids", req.OrderIDs, "error", err)
			WriteErrorResponse(w, http.StatusInternalServerError, "Merge failed",
				"An internal error occurred while merging the orders")
		}
		return
	}

	if merged.TableID != nil {
		if err := h.notifier.PublishTableChanged(r.Context(), notifyEvent(merged)); err != nil {
			h.logger.Warn("table_changed_publish_failed", "order_id", merged.ID, "error", err)
		}
	}

	WriteJSONResponse(w, http.StatusCreated, merged)
}

func distinctIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
