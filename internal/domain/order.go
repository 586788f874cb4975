package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of a committed order. Retired orders
// (Split, Merged, Cancelled) are kept for audit and never physically deleted.
type OrderStatus string

const (
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusSplit      OrderStatus = "split"
	OrderStatusMerged     OrderStatus = "merged"
)

// Tags appended by the split and merge engines.
const (
	TagSplitOrder  = "Split Order"
	TagSplitSource = "Split"
	TagMergeOrder  = "Merge order"
	TagMergeSource = "Merged"
)

// Extra is an ad hoc named amount attached to an order, such as a one-off fee
// added during settlement.
type Extra struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Order is a committed aggregate of order items.
//
// Items and Payments are relation fields: nil means the relation has not been
// resolved from the store, an empty non-nil slice means resolved and empty.
type Order struct {
	ID            uuid.UUID   `json:"id"`
	TableID       *uuid.UUID  `json:"table_id,omitempty"`
	Items         []OrderItem `json:"items,omitempty"`
	Status        OrderStatus `json:"status"`
	Covers        int         `json:"covers"`
	InvoiceNumber int64       `json:"invoice_number"`

	TaxAmount           float64 `json:"tax_amount"`
	DiscountAmount      float64 `json:"discount_amount"`
	ServiceChargeAmount float64 `json:"service_charge_amount"`
	TipAmount           float64 `json:"tip_amount"`

	Extras   []Extra   `json:"extras,omitempty"`
	Payments []Payment `json:"payments,omitempty"`
	Tags     []string  `json:"tags,omitempty"`

	OrderType string    `json:"order_type"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderItem is a CartItem frozen into a committed order. It is exclusively
// owned by exactly one order; only the split and merge engines may reassign
// OrderID.
type OrderItem struct {
	CartItem
	OrderID uuid.UUID `json:"order_id"`
}

// Split is a working bucket used during a split session. It exists only in
// session memory until the session commits, when each non-empty bucket
// becomes a real order.
type Split struct {
	ID     uuid.UUID   `json:"id"`
	Name   string      `json:"name"`
	Number int         `json:"number"`
	Items  []OrderItem `json:"items"`
}
