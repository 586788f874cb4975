package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/access"
	"github.com/tabletide/pos/internal/cart"
	"github.com/tabletide/pos/internal/domain"
	"github.com/tabletide/pos/internal/notify"
	"github.com/tabletide/pos/internal/settlement"
)

// Completer finalizes a settled ledger against the record store.
type Completer interface {
	Complete(ctx context.Context, order *domain.Order, ledger *settlement.Ledger, adj settlement.Adjustments) error
}

// SettlementHandler holds the in-flight settlement ledger per order. Ledgers
// live in terminal memory until completion; an abandoned ledger simply never
// writes anything.
type SettlementHandler struct {
	repo    OrderGetter
	settler Completer
	guard   access.Guard
	alerter notify.Alerter
	logger  *slog.Logger

	mu      sync.Mutex
	ledgers map[uuid.UUID]*settlement.Ledger
}

// NewSettlementHandler creates a new SettlementHandler instance.
func NewSettlementHandler(
	repo OrderGetter,
	settler Completer,
	guard access.Guard,
	alerter notify.Alerter,
	logger *slog.Logger,
) *SettlementHandler {
	return &SettlementHandler{
		repo:    repo,
		settler: settler,
		guard:   guard,
		alerter: alerter,
		logger:  logger,
		ledgers: make(map[uuid.UUID]*settlement.Ledger),
	}
}

// AddPaymentRequest is the payload for POST /orders/{id}/payments.
type AddPaymentRequest struct {
	Amount      float64            `json:"amount"`
	PaymentType domain.PaymentType `json:"payment_type"`
}

// LedgerResponse reports the ledger state after a payment mutation.
type LedgerResponse struct {
	Payment     *domain.Payment `json:"payment,omitempty"`
	Total       float64         `json:"total"`
	Tendered    float64         `json:"tendered"`
	ChangeDue   float64         `json:"change_due"`
	CanComplete bool            `json:"can_complete"`
}

// AddPayment handles POST /orders/{id}/payments.
func (h *SettlementHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, h.guard, h.logger, access.ResourcePayments, access.ActionSettle); !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid order ID", "ID must be a valid UUID")
		return
	}

	var req AddPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	ledger, err := h.ledgerFor(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	payment, err := ledger.AddPayment(req.Amount, req.PaymentType)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrEmptyAmount):
			WriteErrorResponse(w, http.StatusBadRequest, "Invalid payment", "Payment amount must be positive")
		case errors.Is(err, settlement.ErrNothingToCharge):
			WriteErrorResponse(w, http.StatusConflict, "Nothing to charge", "The balance is already settled")
		default:
			WriteErrorResponse(w, http.StatusInternalServerError, "Payment failed",
				"An internal error occurred while recording the payment")
		}
		return
	}

	WriteJSONResponse(w, http.StatusCreated, h.ledgerResponse(ledger, payment))
}

// RemovePayment handles DELETE /orders/{id}/payments/{paymentID}.
func (h *SettlementHandler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, h.guard, h.logger, access.ResourcePayments, access.ActionRefund); !ok {
		return
	}

	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid order ID", "ID must be a valid UUID")
		return
	}
	paymentID, err := uuid.Parse(r.PathValue("paymentID"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid payment ID", "ID must be a valid UUID")
		return
	}

	h.mu.Lock()
	ledger, ok := h.ledgers[orderID]
	h.mu.Unlock()
	if !ok {
		WriteErrorResponse(w, http.StatusNotFound, "No settlement in progress", "The order has no open settlement")
		return
	}

	if err := ledger.RemovePayment(paymentID); err != nil {
		WriteErrorResponse(w, http.StatusNotFound, "Payment not found", "The payment is not part of this settlement")
		return
	}

	WriteJSONResponse(w, http.StatusOK, h.ledgerResponse(ledger, nil))
}

// CompleteOrderRequest is the payload for POST /orders/{id}/complete.
type CompleteOrderRequest struct {
	TaxAmount           float64        `json:"tax_amount"`
	DiscountAmount      float64        `json:"discount_amount"`
	ServiceChargeAmount float64        `json:"service_charge_amount"`
	TipAmount           float64        `json:"tip_amount"`
	Extras              []domain.Extra `json:"extras,omitempty"`
}

// CompleteOrder handles POST /orders/{id}/complete.
func (h *SettlementHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, h.guard, h.logger, access.ResourcePayments, access.ActionSettle); !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid order ID", "ID must be a valid UUID")
		return
	}

	var req CompleteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	h.mu.Lock()
	ledger, ok := h.ledgers[id]
	h.mu.Unlock()
	if !ok {
		WriteErrorResponse(w, http.StatusConflict, "No settlement in progress", "Record a payment before completing")
		return
	}

	order, err := h.repo.GetOrderByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if order.Status != domain.OrderStatusInProgress {
		WriteErrorResponse(w, http.StatusConflict, "Order not completable", "Only in-progress orders can be completed")
		return
	}

	adj := settlement.Adjustments{
		TaxAmount:           req.TaxAmount,
		DiscountAmount:      req.DiscountAmount,
		ServiceChargeAmount: req.ServiceChargeAmount,
		TipAmount:           req.TipAmount,
		Extras:              req.Extras,
	}
	if err := h.settler.Complete(r.Context(), order, ledger, adj); err != nil {
		if errors.Is(err, settlement.ErrBalanceOutstanding) {
			WriteErrorResponse(w, http.StatusConflict, "Balance outstanding", "The order is not fully tendered")
			return
		}
		h.logger.Error("settlement completion failed", "order_id", id, "error", err)
		writeStoreError(w, err)
		return
	}

	h.mu.Lock()
	delete(h.ledgers, id)
	h.mu.Unlock()

	WriteJSONResponse(w, http.StatusOK, order)
}

// ledgerFor returns the open ledger for an order, opening one against the
// order's current rollup total on first use.
func (h *SettlementHandler) ledgerFor(ctx context.Context, orderID uuid.UUID) (*settlement.Ledger, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ledger, ok := h.ledgers[orderID]; ok {
		return ledger, nil
	}

	order, err := h.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	total := cart.OrderTotal(order.Items, func(*domain.OrderItem) bool { return true })
	ledger := settlement.NewLedger(total, h.alerter)
	h.ledgers[orderID] = ledger
	return ledger, nil
}

func (h *SettlementHandler) ledgerResponse(ledger *settlement.Ledger, payment *domain.Payment) LedgerResponse {
	return LedgerResponse{
		Payment:     payment,
		Total:       ledger.Total(),
		Tendered:    ledger.Tendered(),
		ChangeDue:   ledger.ChangeDue(),
		CanComplete: ledger.CanComplete(),
	}
}
