package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Batch is a dated, priced lot of a single product created when an import
// entry is approved. ImportedQuantity and UnitPrice never change; RemainingStock
// stays within [0, ImportedQuantity]. Depleted batches are kept for audit.
type Batch struct {
	shared.BaseEntity
	LedgerEntryID    uuid.UUID
	LineItemID       uuid.UUID
	ProductID        uuid.UUID
	BatchCode        string
	ImportedQuantity decimal.Decimal
	RemainingStock   decimal.Decimal
	ExpiryDate       time.Time
	UnitPrice        decimal.Decimal
}

// NewBatch creates a full batch from an approved import line
func NewBatch(entryID uuid.UUID, line LineItem, batchCode string) (*Batch, error) {
	if !line.Quantity.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidQuantity, "Batch quantity must be greater than zero")
	}
	if line.ExpiryDate == nil {
		return nil, shared.NewDomainError(CodeInvalidInput, "Batch expiry date is required")
	}
	if batchCode == "" {
		return nil, shared.NewDomainError(CodeInvalidInput, "Batch code is required")
	}

	return &Batch{
		BaseEntity:       shared.NewBaseEntity(),
		LedgerEntryID:    entryID,
		LineItemID:       line.ID,
		ProductID:        line.ProductID,
		BatchCode:        batchCode,
		ImportedQuantity: line.Quantity,
		RemainingStock:   line.Quantity,
		ExpiryDate:       line.ExpiryDate.UTC(),
		UnitPrice:        line.UnitPrice,
	}, nil
}

// HasStock returns true if the batch still holds stock
func (b *Batch) HasStock() bool {
	return b.RemainingStock.IsPositive()
}

// IsExpired returns true if the expiry date is strictly before asOf
func (b *Batch) IsExpired(asOf time.Time) bool {
	return b.ExpiryDate.Before(asOf)
}

// Take reduces the batch by at most quantity and returns what was taken
func (b *Batch) Take(quantity decimal.Decimal) decimal.Decimal {
	if !quantity.IsPositive() || !b.HasStock() {
		return decimal.Zero
	}
	take := decimal.Min(b.RemainingStock, quantity)
	b.RemainingStock = b.RemainingStock.Sub(take)
	b.UpdatedAt = time.Now().UTC()
	return take
}

// Adjust applies a signed manual correction. The result must stay within
// [0, ImportedQuantity].
func (b *Batch) Adjust(change decimal.Decimal) error {
	if change.IsZero() {
		return shared.NewDomainError(CodeInvalidQuantity, "Adjustment quantity cannot be zero")
	}
	next := b.RemainingStock.Add(change)
	if next.IsNegative() {
		return shared.NewDomainError(CodeInvalidQuantity, "Adjustment would make remaining stock negative")
	}
	if next.GreaterThan(b.ImportedQuantity) {
		return shared.NewDomainError(CodeInvalidQuantity, "Adjustment would exceed the imported quantity")
	}
	b.RemainingStock = next
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// TotalValue returns remaining stock valued at the import price
func (b *Batch) TotalValue() decimal.Decimal {
	return b.RemainingStock.Mul(b.UnitPrice)
}

// DaysPastExpiry returns the whole days between expiry and asOf, or 0 if not expired
func (b *Batch) DaysPastExpiry(asOf time.Time) int {
	if !b.IsExpired(asOf) {
		return 0
	}
	return int(asOf.Sub(b.ExpiryDate).Hours() / 24)
}
