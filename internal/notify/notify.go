// Package notify holds the outward-facing collaborator boundaries: toast
// alerts, print requests and the table-changed live update channel.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tabletide/pos/internal/domain"
)

// Alerter is the toast/alert boundary. Implementations must never block the
// calling operation; a lost toast is acceptable, a stalled settlement is not.
type Alerter interface {
	Success(message string)
	Warning(message string)
	Error(message string)
}

// PrintKind discriminates the two bill print requests.
type PrintKind string

const (
	PrintPresaleBill PrintKind = "presale_bill"
	PrintFinalBill   PrintKind = "final_bill"
)

// PrintRequest is a pure request to the printing collaborator.
type PrintRequest struct {
	Kind      PrintKind     `json:"kind"`
	Order     *domain.Order `json:"order"`
	Duplicate bool          `json:"duplicate,omitempty"`
}

// PrintDispatcher hands print requests to the printing pipeline.
type PrintDispatcher interface {
	RequestPrint(ctx context.Context, req PrintRequest) error
}

// TableChanged is the live-update push signal. Receivers re-fetch the
// table's current orders; the re-fetch is idempotent, so duplicate delivery
// is harmless.
type TableChanged struct {
	TableID uuid.UUID `json:"table_id"`
	OrderID uuid.UUID `json:"order_id"`
}

// SlogAlerter writes toasts to the structured log. It stands in for the UI
// toast surface on a headless deployment.
type SlogAlerter struct {
	logger *slog.Logger
}

// NewSlogAlerter creates an alerter backed by the given logger.
func NewSlogAlerter(logger *slog.Logger) *SlogAlerter {
	return &SlogAlerter{logger: logger}
}

func (a *SlogAlerter) Success(message string) {
	a.logger.Info("toast", "type", "success", "message", message)
}

func (a *SlogAlerter) Warning(message string) {
	a.logger.Warn("toast", "type", "warning", "message", message)
}

func (a *SlogAlerter) Error(message string) {
	a.logger.Error("toast", "type", "error", "message", message)
}
