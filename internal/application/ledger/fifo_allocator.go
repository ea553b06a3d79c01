package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// movementSource describes why stock leaves a batch
type movementSource struct {
	kind    ledger.MovementKind
	entryID uuid.UUID
	note    string
}

// FIFOAllocator removes stock from a product's batches, earliest expiry first,
// or from one named batch.
type FIFOAllocator struct {
	scope  TransactionScope
	locker *ProductLocker
	sync   *StockSynchronizer
	logger *zap.Logger
}

// NewFIFOAllocator creates a new FIFOAllocator
func NewFIFOAllocator(scope TransactionScope, locker *ProductLocker, sync *StockSynchronizer, logger *zap.Logger) *FIFOAllocator {
	return &FIFOAllocator{
		scope:  scope,
		locker: locker,
		sync:   sync,
		logger: logger,
	}
}

// ReduceFIFO removes up to quantity from the product's batches in ascending
// expiry order and re-syncs the product. Insufficient stock is reported as
// Shortfall, not as an error.
func (a *FIFOAllocator) ReduceFIFO(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) (*ReduceResult, error) {
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError(ledger.CodeInvalidQuantity, "Quantity must be greater than zero")
	}

	unlock := a.locker.Lock(productID)
	defer unlock()

	var result *ReduceResult
	err := a.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Products().GetProduct(ctx, productID); err != nil {
			return err
		}
		var err error
		result, err = a.reduceFIFOIn(ctx, repos, productID, quantity, movementSource{kind: ledger.MovementExport, note: "fifo reduction"})
		if err != nil {
			return err
		}
		_, err = a.sync.syncIn(ctx, repos, productID)
		return err
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("Stock reduced by FIFO",
		zap.String("product_id", productID.String()),
		zap.String("requested", quantity.String()),
		zap.String("reduced", result.TotalReduced.String()),
		zap.String("shortfall", result.Shortfall.String()),
	)
	return result, nil
}

// reduceFIFOIn applies a FIFO plan inside an open transaction. The caller
// holds the product lock and is responsible for syncing afterwards.
func (a *FIFOAllocator) reduceFIFOIn(
	ctx context.Context,
	repos TransactionalRepositories,
	productID uuid.UUID,
	quantity decimal.Decimal,
	source movementSource,
) (*ReduceResult, error) {
	batches, err := repos.BatchRepo().FindAvailableByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	byID := make(map[uuid.UUID]ledger.Batch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}

	plan := ledger.PlanFIFO(batches, quantity)
	for _, r := range plan.Reductions {
		if err := repos.BatchRepo().DecrementStock(ctx, r.BatchID, r.Reduced); err != nil {
			return nil, fmt.Errorf("decrement batch %s: %w", r.BatchCode, err)
		}
		batch := byID[r.BatchID]
		if err := a.recordMovement(ctx, repos, &batch, source, r.Reduced.Neg(), r.RemainingInBatch); err != nil {
			return nil, err
		}
	}

	return &ReduceResult{
		ProductID:         productID,
		RequestedQuantity: quantity,
		ReducedBatches:    plan.Reductions,
		TotalReduced:      plan.TotalReduced,
		Shortfall:         plan.Shortfall,
	}, nil
}

// ReduceFromBatch removes up to quantity from the named batch only. Whatever
// the batch cannot cover is reported as Shortfall; other batches are never
// touched.
func (a *FIFOAllocator) ReduceFromBatch(ctx context.Context, productID uuid.UUID, batchCode string, quantity decimal.Decimal) (*BatchReduceResult, error) {
	if !quantity.IsPositive() {
		return nil, shared.NewDomainError(ledger.CodeInvalidQuantity, "Quantity must be greater than zero")
	}

	unlock := a.locker.Lock(productID)
	defer unlock()

	var result *BatchReduceResult
	err := a.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Products().GetProduct(ctx, productID); err != nil {
			return err
		}
		var err error
		result, err = a.reduceFromBatchIn(ctx, repos, productID, batchCode, quantity, movementSource{kind: ledger.MovementExport, note: "batch reduction"})
		if err != nil {
			return err
		}
		_, err = a.sync.syncIn(ctx, repos, productID)
		return err
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("Stock reduced from batch",
		zap.String("product_id", productID.String()),
		zap.String("batch_code", batchCode),
		zap.String("reduced", result.ReducedQuantity.String()),
		zap.String("shortfall", result.Shortfall.String()),
	)
	return result, nil
}

func (a *FIFOAllocator) reduceFromBatchIn(
	ctx context.Context,
	repos TransactionalRepositories,
	productID uuid.UUID,
	batchCode string,
	quantity decimal.Decimal,
	source movementSource,
) (*BatchReduceResult, error) {
	batch, err := repos.BatchRepo().FindAvailableByCode(ctx, productID, batchCode)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	if batch == nil {
		return nil, ledger.NewBatchNotFoundError(productID, batchCode)
	}

	taken := batch.Take(quantity)
	if err := repos.BatchRepo().DecrementStock(ctx, batch.ID, taken); err != nil {
		return nil, fmt.Errorf("decrement batch %s: %w", batch.BatchCode, err)
	}
	if err := a.recordMovement(ctx, repos, batch, source, taken.Neg(), batch.RemainingStock); err != nil {
		return nil, err
	}

	return &BatchReduceResult{
		ProductID:         productID,
		BatchID:           batch.ID,
		BatchCode:         batch.BatchCode,
		RequestedQuantity: quantity,
		ReducedQuantity:   taken,
		RemainingInBatch:  batch.RemainingStock,
		Shortfall:         quantity.Sub(taken),
	}, nil
}

func (a *FIFOAllocator) recordMovement(
	ctx context.Context,
	repos TransactionalRepositories,
	batch *ledger.Batch,
	source movementSource,
	quantity, balanceAfter decimal.Decimal,
) error {
	movement := ledger.NewBatchMovement(batch, source.kind, quantity, balanceAfter, source.note).WithEntry(source.entryID)
	if err := repos.MovementRepo().Create(ctx, movement); err != nil {
		return fmt.Errorf("record movement: %w", err)
	}
	return nil
}
