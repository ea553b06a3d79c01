package ledger

import (
	"context"

	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
)

// MetricsRecorder records ledger business metrics
type MetricsRecorder interface {
	RecordEntryCreated(ctx context.Context, action string)
	RecordEntryReviewed(ctx context.Context, action, status string)
	RecordExpiredStockRemoved(ctx context.Context, removed, underRemoved float64)
}

// MetricsEventHandler turns ledger domain events into metric updates
type MetricsEventHandler struct {
	recorder MetricsRecorder
}

// NewMetricsEventHandler creates a new MetricsEventHandler
func NewMetricsEventHandler(recorder MetricsRecorder) *MetricsEventHandler {
	return &MetricsEventHandler{recorder: recorder}
}

// EventTypes returns the event types this handler is interested in
func (h *MetricsEventHandler) EventTypes() []string {
	return []string{
		ledger.EventTypeLedgerEntryCreated,
		ledger.EventTypeLedgerEntryApproved,
		ledger.EventTypeLedgerEntryDenied,
		ledger.EventTypeExpiredStockRemoved,
	}
}

// Handle records the metric for one event
func (h *MetricsEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *ledger.LedgerEntryCreatedEvent:
		h.recorder.RecordEntryCreated(ctx, e.Action.String())
	case *ledger.LedgerEntryApprovedEvent:
		h.recorder.RecordEntryReviewed(ctx, e.Action.String(), ledger.StatusCompleted.String())
	case *ledger.LedgerEntryDeniedEvent:
		h.recorder.RecordEntryReviewed(ctx, e.Action.String(), ledger.StatusDenied.String())
	case *ledger.ExpiredStockRemovedEvent:
		h.recorder.RecordExpiredStockRemoved(ctx, e.QuantityRemoved.InexactFloat64(), e.UnderRemoved.InexactFloat64())
	}
	return nil
}

var _ shared.EventHandler = (*MetricsEventHandler)(nil)
