package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeLedgerEntry is the aggregate type name used in domain events
const AggregateTypeLedgerEntry = "LedgerEntry"

// Action is the direction of a ledger entry
type Action string

const (
	ActionImport Action = "import"
	ActionExport Action = "export"
)

// IsValid checks if the action is known
func (a Action) IsValid() bool {
	return a == ActionImport || a == ActionExport
}

// String returns the string representation
func (a Action) String() string {
	return string(a)
}

// Status is the lifecycle state of a ledger entry
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusDenied    Status = "denied"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusDenied:
		return true
	}
	return false
}

// IsTerminal returns true for completed and denied
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusDenied
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// LineInput is the caller-supplied description of one ledger line
type LineInput struct {
	ProductID  uuid.UUID
	Quantity   decimal.Decimal
	ExpiryDate *time.Time
	UnitPrice  decimal.Decimal
	BatchCode  string
}

// LedgerEntry is one import or export request and its approval lifecycle.
// Stock only moves when a pending entry is approved; Status is
// write-once-terminal.
type LedgerEntry struct {
	shared.BaseAggregateRoot
	Action      Action
	Status      Status
	RequestedBy uuid.UUID
	Reason      string
	ReviewedAt  *time.Time
	Lines       []LineItem
}

// NewLedgerEntry validates the request and creates a pending entry
func NewLedgerEntry(action Action, lines []LineInput, requestedBy uuid.UUID) (*LedgerEntry, error) {
	if !action.IsValid() {
		return nil, shared.NewDomainError(CodeInvalidInput, "Action must be either import or export")
	}
	if len(lines) == 0 {
		return nil, shared.NewDomainError(CodeInvalidInput, "Ledger entry must contain at least one line item")
	}

	entry := &LedgerEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Action:            action,
		Status:            StatusPending,
		RequestedBy:       requestedBy,
		Lines:             make([]LineItem, 0, len(lines)),
	}

	for i, in := range lines {
		line, err := newLineItem(entry.ID, i+1, action, in)
		if err != nil {
			return nil, err
		}
		entry.Lines = append(entry.Lines, *line)
	}

	entry.AddDomainEvent(NewLedgerEntryCreatedEvent(entry))
	return entry, nil
}

// ProductIDs returns the distinct products referenced by the entry's lines
func (e *LedgerEntry) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(e.Lines))
	ids := make([]uuid.UUID, 0, len(e.Lines))
	for _, line := range e.Lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

// IsPending returns true while the entry awaits review
func (e *LedgerEntry) IsPending() bool {
	return e.Status == StatusPending
}

// Complete marks an approved entry as completed
func (e *LedgerEntry) Complete() error {
	if !e.IsPending() {
		return NewAlreadyProcessedError(e.Status)
	}

	now := time.Now().UTC()
	e.Status = StatusCompleted
	e.ReviewedAt = &now
	e.UpdatedAt = now
	e.IncrementVersion()

	e.AddDomainEvent(NewLedgerEntryApprovedEvent(e))
	return nil
}

// Deny rejects the entry with a reason. A blank reason is rejected.
func (e *LedgerEntry) Deny(reason string) error {
	if !e.IsPending() {
		return NewAlreadyProcessedError(e.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrMissingReason
	}

	now := time.Now().UTC()
	e.Status = StatusDenied
	e.Reason = reason
	e.ReviewedAt = &now
	e.UpdatedAt = now
	e.IncrementVersion()

	e.AddDomainEvent(NewLedgerEntryDeniedEvent(e))
	return nil
}
