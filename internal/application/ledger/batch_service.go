package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BatchService exposes batch reports and manual batch corrections
type BatchService struct {
	batchRepo    ledger.BatchRepository
	movementRepo ledger.MovementRepository
	products     ledger.ProductCatalog
	scope        TransactionScope
	locker       *ProductLocker
	sync         *StockSynchronizer
	logger       *zap.Logger
}

// NewBatchService creates a new BatchService
func NewBatchService(
	batchRepo ledger.BatchRepository,
	movementRepo ledger.MovementRepository,
	products ledger.ProductCatalog,
	scope TransactionScope,
	locker *ProductLocker,
	sync *StockSynchronizer,
	logger *zap.Logger,
) *BatchService {
	return &BatchService{
		batchRepo:    batchRepo,
		movementRepo: movementRepo,
		products:     products,
		scope:        scope,
		locker:       locker,
		sync:         sync,
		logger:       logger,
	}
}

// GetBatchesForProduct returns the product's batches sorted by expiry
func (s *BatchService) GetBatchesForProduct(ctx context.Context, productID uuid.UUID, includeDepleted bool) (*ProductBatchesResponse, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	batches, err := s.batchRepo.FindByProduct(ctx, productID, includeDepleted)
	if err != nil {
		return nil, err
	}
	ledger.SortFIFO(batches)

	responses := make([]BatchResponse, len(batches))
	for i := range batches {
		responses[i] = ToBatchResponse(&batches[i])
	}

	return &ProductBatchesResponse{
		ProductID:   product.ID,
		ProductName: product.Name,
		TotalStock:  ledger.SumRemaining(batches),
		Batches:     responses,
	}, nil
}

// AdjustBatchStock applies a signed manual correction to one batch and
// re-syncs its product
func (s *BatchService) AdjustBatchStock(ctx context.Context, batchID uuid.UUID, change decimal.Decimal, note string) (*BatchResponse, error) {
	if change.IsZero() {
		return nil, shared.NewDomainError(ledger.CodeInvalidQuantity, "Adjustment quantity cannot be zero")
	}

	existing, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	unlock := s.locker.Lock(existing.ProductID)
	defer unlock()

	var adjusted *ledger.Batch
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Products().GetProduct(ctx, existing.ProductID); err != nil {
			return err
		}
		batch, err := repos.BatchRepo().FindByID(ctx, batchID)
		if err != nil {
			return err
		}
		if err := batch.Adjust(change); err != nil {
			return err
		}
		if err := repos.BatchRepo().AdjustStock(ctx, batchID, change); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				return shared.NewDomainError(ledger.CodeInvalidQuantity, "Adjustment would leave batch stock out of range")
			}
			return fmt.Errorf("adjust batch stock: %w", err)
		}

		movement := ledger.NewBatchMovement(batch, ledger.MovementAdjustment, change, batch.RemainingStock, strings.TrimSpace(note))
		if err := repos.MovementRepo().Create(ctx, movement); err != nil {
			return fmt.Errorf("record movement: %w", err)
		}

		if _, err := s.sync.syncIn(ctx, repos, batch.ProductID); err != nil {
			return err
		}
		adjusted = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Batch stock adjusted",
		zap.String("batch_id", batchID.String()),
		zap.String("batch_code", adjusted.BatchCode),
		zap.String("change", change.String()),
		zap.String("remaining_stock", adjusted.RemainingStock.String()),
	)

	response := ToBatchResponse(adjusted)
	return &response, nil
}

// ListBatchMovements returns the audit trail of a batch, oldest first
func (s *BatchService) ListBatchMovements(ctx context.Context, batchID uuid.UUID) ([]MovementResponse, error) {
	if _, err := s.batchRepo.FindByID(ctx, batchID); err != nil {
		return nil, err
	}
	movements, err := s.movementRepo.FindByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	out := make([]MovementResponse, len(movements))
	for i := range movements {
		out[i] = ToMovementResponse(&movements[i])
	}
	return out, nil
}

// SyncProductStock recomputes the product's aggregate stock on demand
func (s *BatchService) SyncProductStock(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	return s.sync.Sync(ctx, productID)
}
