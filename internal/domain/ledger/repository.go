package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryFilter narrows ledger entry listings
type EntryFilter struct {
	ProductID   *uuid.UUID
	Statuses    []Status
	Action      Action
	RequestedBy *uuid.UUID
	BatchCode   string // case-insensitive substring over line batch codes
	Page        int
	PageSize    int
}

// Offset returns the row offset for the page
func (f EntryFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

// Limit returns the page size with a default of 20 and a cap of 100
func (f EntryFilter) Limit() int {
	switch {
	case f.PageSize <= 0:
		return 20
	case f.PageSize > 100:
		return 100
	}
	return f.PageSize
}

// EntryRepository persists ledger entries and their lines
type EntryRepository interface {
	// Create stores a new entry with its lines
	Create(ctx context.Context, entry *LedgerEntry) error

	// FindByID loads the entry with its lines, NOT_FOUND if absent
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)

	// UpdateStatus persists a review transition. The update only applies
	// while the stored row is pending at expectedVersion; otherwise it
	// returns shared.ErrConcurrencyConflict.
	UpdateStatus(ctx context.Context, entry *LedgerEntry, expectedVersion int) error

	// List returns entries matching the filter, newest first, with the total count
	List(ctx context.Context, filter EntryFilter) ([]LedgerEntry, int64, error)

	// FindLines returns the entry's lines ordered by line number
	FindLines(ctx context.Context, entryID uuid.UUID) ([]LineItem, error)

	// SetLineBatchCode records the code of the batch created for an import line
	SetLineBatchCode(ctx context.Context, lineID uuid.UUID, batchCode string) error
}

// BatchRepository persists batches
type BatchRepository interface {
	// Create stores a new batch. A duplicate (product, code) returns ALREADY_EXISTS.
	Create(ctx context.Context, batch *Batch) error

	// FindByID loads a batch, BATCH_NOT_FOUND if absent
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindAvailableByProduct returns batches with remaining stock in FIFO order
	FindAvailableByProduct(ctx context.Context, productID uuid.UUID) ([]Batch, error)

	// FindAvailableByCode returns the batch with the code if it still holds stock, nil otherwise
	FindAvailableByCode(ctx context.Context, productID uuid.UUID, batchCode string) (*Batch, error)

	// FindByProduct returns all batches of a product in FIFO order
	FindByProduct(ctx context.Context, productID uuid.UUID, includeDepleted bool) ([]Batch, error)

	// ExistsCode reports whether the product already uses the code
	ExistsCode(ctx context.Context, productID uuid.UUID, batchCode string) (bool, error)

	// CountCodesWithPrefix counts the product's codes starting with prefix
	CountCodesWithPrefix(ctx context.Context, productID uuid.UUID, prefix string) (int64, error)

	// SumRemaining sums remaining stock over every batch of the product
	SumRemaining(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)

	// DecrementStock subtracts qty if at least qty remains. Otherwise
	// it returns shared.ErrConcurrencyConflict and changes nothing.
	DecrementStock(ctx context.Context, batchID uuid.UUID, qty decimal.Decimal) error

	// AdjustStock applies a signed change if the result stays within
	// [0, imported_quantity]; otherwise returns shared.ErrConcurrencyConflict.
	AdjustStock(ctx context.Context, batchID uuid.UUID, change decimal.Decimal) error

	// FindExpired returns batches of completed import entries with
	// remaining stock and expiry before asOf, ordered by expiry
	FindExpired(ctx context.Context, asOf time.Time) ([]Batch, error)

	// FindExpiredByProduct is FindExpired restricted to one product
	FindExpiredByProduct(ctx context.Context, productID uuid.UUID, asOf time.Time) ([]Batch, error)
}

// MovementRepository persists the batch audit trail
type MovementRepository interface {
	Create(ctx context.Context, movement *BatchMovement) error
	FindByBatch(ctx context.Context, batchID uuid.UUID) ([]BatchMovement, error)
}
