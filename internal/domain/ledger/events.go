package ledger

import (
	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeLedgerEntryCreated  = "LedgerEntryCreated"
	EventTypeLedgerEntryApproved = "LedgerEntryApproved"
	EventTypeLedgerEntryDenied   = "LedgerEntryDenied"
	EventTypeExpiredStockRemoved = "ExpiredStockRemoved"
)

// AggregateTypeProductStock is used for events raised per product by the sweep
const AggregateTypeProductStock = "ProductStock"

// LedgerEntryCreatedEvent is raised when a pending entry is recorded
type LedgerEntryCreatedEvent struct {
	shared.BaseDomainEvent
	Action      Action    `json:"action"`
	RequestedBy uuid.UUID `json:"requested_by"`
	LineCount   int       `json:"line_count"`
}

// NewLedgerEntryCreatedEvent creates a new LedgerEntryCreatedEvent
func NewLedgerEntryCreatedEvent(e *LedgerEntry) *LedgerEntryCreatedEvent {
	return &LedgerEntryCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryCreated, AggregateTypeLedgerEntry, e.ID),
		Action:          e.Action,
		RequestedBy:     e.RequestedBy,
		LineCount:       len(e.Lines),
	}
}

// LedgerEntryApprovedEvent is raised after an approval commits
type LedgerEntryApprovedEvent struct {
	shared.BaseDomainEvent
	Action        Action          `json:"action"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
}

// NewLedgerEntryApprovedEvent creates a new LedgerEntryApprovedEvent
func NewLedgerEntryApprovedEvent(e *LedgerEntry) *LedgerEntryApprovedEvent {
	total := decimal.Zero
	for _, line := range e.Lines {
		total = total.Add(line.Quantity)
	}
	return &LedgerEntryApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryApproved, AggregateTypeLedgerEntry, e.ID),
		Action:          e.Action,
		TotalQuantity:   total,
	}
}

// LedgerEntryDeniedEvent is raised when an entry is denied
type LedgerEntryDeniedEvent struct {
	shared.BaseDomainEvent
	Action Action `json:"action"`
	Reason string `json:"reason"`
}

// NewLedgerEntryDeniedEvent creates a new LedgerEntryDeniedEvent
func NewLedgerEntryDeniedEvent(e *LedgerEntry) *LedgerEntryDeniedEvent {
	return &LedgerEntryDeniedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerEntryDenied, AggregateTypeLedgerEntry, e.ID),
		Action:          e.Action,
		Reason:          e.Reason,
	}
}

// ExpiredStockRemovedEvent is raised per product by the expiry sweep
type ExpiredStockRemovedEvent struct {
	shared.BaseDomainEvent
	ProductID       uuid.UUID       `json:"product_id"`
	ExpiredQuantity decimal.Decimal `json:"expired_quantity"`
	QuantityRemoved decimal.Decimal `json:"quantity_removed"`
	UnderRemoved    decimal.Decimal `json:"under_removed"`
}

// NewExpiredStockRemovedEvent creates a new ExpiredStockRemovedEvent
func NewExpiredStockRemovedEvent(productID uuid.UUID, expired, removed decimal.Decimal) *ExpiredStockRemovedEvent {
	return &ExpiredStockRemovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpiredStockRemoved, AggregateTypeProductStock, productID),
		ProductID:       productID,
		ExpiredQuantity: expired,
		QuantityRemoved: removed,
		UnderRemoved:    decimal.Max(expired.Sub(removed), decimal.Zero),
	}
}
