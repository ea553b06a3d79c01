package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementKind classifies a change to a batch's remaining stock
type MovementKind string

const (
	MovementImport     MovementKind = "import"
	MovementExport     MovementKind = "export"
	MovementExpiry     MovementKind = "expiry"
	MovementAdjustment MovementKind = "adjustment"
)

// String returns the string representation
func (k MovementKind) String() string {
	return string(k)
}

// BatchMovement is one audit record of a batch stock change. Quantity is
// signed: positive for stock in, negative for stock out.
type BatchMovement struct {
	ID            uuid.UUID
	BatchID       uuid.UUID
	ProductID     uuid.UUID
	LedgerEntryID *uuid.UUID
	Kind          MovementKind
	Quantity      decimal.Decimal
	BalanceAfter  decimal.Decimal
	Note          string
	CreatedAt     time.Time
}

// NewBatchMovement creates a movement record for a batch
func NewBatchMovement(batch *Batch, kind MovementKind, quantity, balanceAfter decimal.Decimal, note string) *BatchMovement {
	return &BatchMovement{
		ID:           uuid.New(),
		BatchID:      batch.ID,
		ProductID:    batch.ProductID,
		Kind:         kind,
		Quantity:     quantity,
		BalanceAfter: balanceAfter,
		Note:         note,
		CreatedAt:    time.Now().UTC(),
	}
}

// WithEntry links the movement to the ledger entry that caused it
func (m *BatchMovement) WithEntry(entryID uuid.UUID) *BatchMovement {
	if entryID != uuid.Nil {
		m.LedgerEntryID = &entryID
	}
	return m
}
