package domain

import "github.com/google/uuid"

// PaymentKind discriminates tender behaviour: card tenders are clamped to the
// outstanding balance, cash-like tenders may overpay and produce change.
type PaymentKind string

const (
	PaymentKindCash PaymentKind = "Cash"
	PaymentKindCard PaymentKind = "Card"
)

// PaymentType is a configured tender type such as "Cash", "Visa" or
// "Gift Card".
type PaymentType struct {
	ID   uuid.UUID   `json:"id"`
	Name string      `json:"name"`
	Kind PaymentKind `json:"kind"`
}

// Payment is one tendered amount against an order total. Immutable once
// created; removable only before the order is finalized.
type Payment struct {
	ID     uuid.UUID   `json:"id"`
	Type   PaymentType `json:"type"`
	Amount float64     `json:"amount"`
	// Payable is the order total this payment was tendered against.
	Payable float64 `json:"payable"`
}
