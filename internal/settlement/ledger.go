// Package settlement accumulates tendered payments against a computed order
// total and performs the single terminal transition from in-progress to paid.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/domain"
	"github.com/tabletide/pos/internal/notify"
)

var (
	// ErrEmptyAmount is the validation rejection for a missing or
	// non-positive tender amount; nothing is recorded.
	ErrEmptyAmount = errors.New("payment amount is empty")

	// ErrNothingToCharge is returned for a card tender when the balance is
	// already settled.
	ErrNothingToCharge = errors.New("nothing left to charge on card")

	// ErrPaymentNotFound is returned by RemovePayment for an unknown id.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrBalanceOutstanding is returned by Complete while change due is
	// still negative.
	ErrBalanceOutstanding = errors.New("order balance is still outstanding")
)

// PaymentStore persists payment records.
type PaymentStore interface {
	CreatePayment(ctx context.Context, orderID uuid.UUID, payment *domain.Payment) error
	CreateExtra(ctx context.Context, orderID uuid.UUID, extra *domain.Extra) error
}

// OrderStore finalizes the order once the ledger completes.
type OrderStore interface {
	SettleOrder(ctx context.Context, id uuid.UUID, settled SettledOrder) error
}

// SettledOrder is the partial update written to the order on completion.
type SettledOrder struct {
	Status              domain.OrderStatus
	PaymentIDs          []uuid.UUID
	TaxAmount           float64
	DiscountAmount      float64
	ServiceChargeAmount float64
	TipAmount           float64
}

// Adjustments are the order-level figures edited alongside settlement and
// finalized with it.
type Adjustments struct {
	TaxAmount           float64
	DiscountAmount      float64
	ServiceChargeAmount float64
	TipAmount           float64
	Extras              []domain.Extra
}

// Ledger accumulates payments against a fixed total. It is a per-settlement
// working object; nothing is persisted until Complete.
type Ledger struct {
	total    float64
	payments []domain.Payment
	alerter  notify.Alerter
}

// NewLedger opens a settlement ledger for the given computed total.
func NewLedger(total float64, alerter notify.Alerter) *Ledger {
	return &Ledger{total: total, alerter: alerter}
}

// Total returns the total the ledger settles against.
func (l *Ledger) Total() float64 {
	return l.total
}

// Tendered returns the sum of all accumulated payment amounts.
func (l *Ledger) Tendered() float64 {
	var sum float64
	for _, p := range l.payments {
		sum += p.Amount
	}
	return sum
}

// ChangeDue returns tendered minus total: negative while the guest still
// owes, positive when change is to be returned.
func (l *Ledger) ChangeDue() float64 {
	return l.Tendered() - l.total
}

// Payments returns the accumulated payments.
func (l *Ledger) Payments() []domain.Payment {
	return l.payments
}

// AddPayment records a tender. Card tenders cannot overpay: when the balance
// is already settled the tender is rejected, and an amount above the
// remaining balance is clamped down to it exactly, each with a user-facing
// warning. Cash-like tenders may overpay and simply produce change.
func (l *Ledger) AddPayment(amount float64, paymentType domain.PaymentType) (*domain.Payment, error) {
	if amount <= 0 {
		return nil, ErrEmptyAmount
	}

	if paymentType.Kind == domain.PaymentKindCard {
		remaining := -l.ChangeDue()
		if remaining <= 0 {
			l.alerter.Warning("Nothing left to charge on card")
			return nil, ErrNothingToCharge
		}
		if amount > remaining {
			l.alerter.Warning(fmt.Sprintf("Card amount reduced to %.2f", remaining))
			amount = remaining
		}
	}

	payment := domain.Payment{
		ID:      uuid.New(),
		Type:    paymentType,
		Amount:  amount,
		Payable: l.total,
	}
	l.payments = append(l.payments, payment)
	return &payment, nil
}

// RemovePayment drops a payment unconditionally. Whether captured funds need
// refunding is a collaborator concern, not checked here.
func (l *Ledger) RemovePayment(id uuid.UUID) error {
	for i, p := range l.payments {
		if p.ID == id {
			l.payments = append(l.payments[:i], l.payments[i+1:]...)
			return nil
		}
	}
	return ErrPaymentNotFound
}

// CanComplete reports whether the order is fully tendered.
func (l *Ledger) CanComplete() bool {
	return l.ChangeDue() >= 0
}

// Settler finalizes a ledger against the record store and dispatches the
// final bill.
type Settler struct {
	payments PaymentStore
	orders   OrderStore
	printer  notify.PrintDispatcher
	alerter  notify.Alerter
	logger   *slog.Logger
}

// NewSettler creates a settler.
func NewSettler(
	payments PaymentStore,
	orders OrderStore,
	printer notify.PrintDispatcher,
	alerter notify.Alerter,
	logger *slog.Logger,
) *Settler {
	return &Settler{
		payments: payments,
		orders:   orders,
		printer:  printer,
		alerter:  alerter,
		logger:   logger,
	}
}

// Complete persists every accumulated payment and ledger-level extra as
// durable records, then moves the order to paid with its finalized
// adjustment figures. Only reachable once change due is non-negative.
// A store failure aborts the completion without retry; records already
// written stay written and the order remains in progress for a manual retry.
func (s *Settler) Complete(ctx context.Context, order *domain.Order, ledger *Ledger, adj Adjustments) error {
	if !ledger.CanComplete() {
		return ErrBalanceOutstanding
	}

	paymentIDs := make([]uuid.UUID, 0, len(ledger.payments))
	for i := range ledger.payments {
		p := &ledger.payments[i]
		if err := s.payments.CreatePayment(ctx, order.ID, p); err != nil {
			s.alerter.Error("Failed to record payment")
			return fmt.Errorf("persist payment %s: %w", p.ID, err)
		}
		paymentIDs = append(paymentIDs, p.ID)
	}

	for i := range adj.Extras {
		if err := s.payments.CreateExtra(ctx, order.ID, &adj.Extras[i]); err != nil {
			s.alerter.Error("Failed to record extra charge")
			return fmt.Errorf("persist extra %q: %w", adj.Extras[i].Name, err)
		}
	}

	settled := SettledOrder{
		Status:              domain.OrderStatusPaid,
		PaymentIDs:          paymentIDs,
		TaxAmount:           adj.TaxAmount,
		DiscountAmount:      adj.DiscountAmount,
		ServiceChargeAmount: adj.ServiceChargeAmount,
		TipAmount:           adj.TipAmount,
	}
	if err := s.orders.SettleOrder(ctx, order.ID, settled); err != nil {
		s.alerter.Error("Failed to finalize order")
		return fmt.Errorf("settle order %s: %w", order.ID, err)
	}

	order.Status = domain.OrderStatusPaid
	order.Payments = ledger.payments
	order.Extras = adj.Extras
	order.TaxAmount = adj.TaxAmount
	order.DiscountAmount = adj.DiscountAmount
	order.ServiceChargeAmount = adj.ServiceChargeAmount
	order.TipAmount = adj.TipAmount

	if err := s.printer.RequestPrint(ctx, notify.PrintRequest{
		Kind:  notify.PrintFinalBill,
		Order: order,
	}); err != nil {
		// Printing is a pure request to a collaborator; its failure never
		// blocks settlement.
		s.logger.Warn("final_bill_print_failed", "order_id", order.ID, "error", err)
	}

	s.alerter.Success("Order settled")
	s.logger.Info("order_settled",
		"order_id", order.ID,
		"payment_count", len(paymentIDs),
		"tendered", ledger.Tendered(),
		"change_due", ledger.ChangeDue(),
	)
	return nil
}
