package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/pcshop/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExpirySweepJobName is the scheduler name of the daily sweep
const ExpirySweepJobName = "ledger-expiry-sweep"

// ExpirySweeper retires the remaining stock of expired batches. Each product
// is processed in its own transaction; a failing product is logged and
// skipped.
type ExpirySweeper struct {
	batchRepo      ledger.BatchRepository
	products       ledger.ProductCatalog
	scope          TransactionScope
	locker         *ProductLocker
	allocator      *FIFOAllocator
	sync           *StockSynchronizer
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	clock          func() time.Time
}

// NewExpirySweeper creates a new ExpirySweeper
func NewExpirySweeper(
	batchRepo ledger.BatchRepository,
	products ledger.ProductCatalog,
	scope TransactionScope,
	locker *ProductLocker,
	allocator *FIFOAllocator,
	sync *StockSynchronizer,
	logger *zap.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		batchRepo: batchRepo,
		products:  products,
		scope:     scope,
		locker:    locker,
		allocator: allocator,
		sync:      sync,
		logger:    logger,
		clock:     time.Now,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ExpirySweeper) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// WithClock overrides the time source used when no check date is given
func (s *ExpirySweeper) WithClock(clock func() time.Time) *ExpirySweeper {
	s.clock = clock
	return s
}

// Name returns the scheduler job name
func (s *ExpirySweeper) Name() string {
	return ExpirySweepJobName
}

// Run sweeps as of now; it is the scheduled entry point
func (s *ExpirySweeper) Run(ctx context.Context) error {
	result, err := s.Sweep(ctx, s.clock())
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		s.logger.Warn("Expiry sweep skipped products", zap.Int("failed_products", len(result.Errors)))
	}
	return nil
}

// Sweep removes expired stock as of asOf. Removal per product is capped at
// the product's current aggregate stock; any shortfall is reported as
// UnderRemoved.
func (s *ExpirySweeper) Sweep(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	asOf = asOf.UTC()
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "sweep_expired",
		telemetry.SpanAttrCheckDate, asOf.Format(time.RFC3339),
	)
	defer span.End()

	result := &SweepResult{
		CheckDate:            asOf,
		ProcessedItems:       make([]ProcessedItem, 0),
		TotalQuantityRemoved: decimal.Zero,
		Summary:              make([]SweepSummary, 0),
		Errors:               make([]SweepError, 0),
	}

	expired, err := s.batchRepo.FindExpired(ctx, asOf)
	if err != nil {
		s.logger.Error("Failed to find expired batches", zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("find expired batches: %w", err)
	}
	if len(expired) == 0 {
		s.logger.Debug("No expired batches found", zap.Time("check_date", asOf))
		result.ProcessedAt = time.Now().UTC()
		return result, nil
	}

	productIDs := groupProductIDs(expired)
	s.logger.Info("Processing expired batches",
		zap.Int("batches", len(expired)),
		zap.Int("products", len(productIDs)),
		zap.Time("check_date", asOf),
	)

	for _, productID := range productIDs {
		item, err := s.sweepProduct(ctx, productID, asOf)
		if err != nil {
			s.logger.Error("Failed to process expired stock for product",
				zap.String("product_id", productID.String()),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, SweepError{ProductID: productID, Message: err.Error()})
			continue
		}
		if item == nil {
			continue
		}

		result.ProcessedItems = append(result.ProcessedItems, *item)
		result.TotalExpiredItems += len(item.ExpiredBatches)
		result.TotalQuantityRemoved = result.TotalQuantityRemoved.Add(item.QuantityRemoved)
		result.Summary = append(result.Summary, SweepSummary{
			ProductID:            item.ProductID,
			ProductName:          item.ProductName,
			TotalQuantityRemoved: item.QuantityRemoved,
		})
	}

	result.ProcessedAt = time.Now().UTC()
	telemetry.SetAttributes(span,
		"expired_items", result.TotalExpiredItems,
		"failed_products", len(result.Errors),
	)
	s.logger.Info("Expiry sweep completed",
		zap.Int("expired_items", result.TotalExpiredItems),
		zap.String("quantity_removed", result.TotalQuantityRemoved.String()),
		zap.Int("products", len(result.ProcessedItems)),
		zap.Int("failed_products", len(result.Errors)),
	)
	return result, nil
}

// sweepProduct re-reads the product's expired batches under its lock and
// removes them FIFO. It returns nil when nothing is left to remove.
func (s *ExpirySweeper) sweepProduct(ctx context.Context, productID uuid.UUID, asOf time.Time) (*ProcessedItem, error) {
	unlock := s.locker.Lock(productID)
	defer unlock()

	var item *ProcessedItem
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		product, err := repos.Products().GetProduct(ctx, productID)
		if err != nil {
			return err
		}

		batches, err := repos.BatchRepo().FindExpiredByProduct(ctx, productID, asOf)
		if err != nil {
			return fmt.Errorf("load expired batches: %w", err)
		}
		expiredQty := ledger.SumRemaining(batches)
		if !expiredQty.IsPositive() {
			return nil
		}

		toRemove := decimal.Max(decimal.Min(expiredQty, product.CurrentStock), decimal.Zero)
		removed := decimal.Zero
		if toRemove.IsPositive() {
			reduction, err := s.allocator.reduceFIFOIn(ctx, repos, productID, toRemove, movementSource{
				kind: ledger.MovementExpiry,
				note: "expired as of " + asOf.Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			removed = reduction.TotalReduced
		}

		stockAfter, err := s.sync.syncIn(ctx, repos, productID)
		if err != nil {
			return err
		}

		item = &ProcessedItem{
			ProductID:       productID,
			ProductName:     product.Name,
			ExpiredQuantity: expiredQty,
			QuantityRemoved: removed,
			UnderRemoved:    expiredQty.Sub(removed),
			StockBefore:     product.CurrentStock,
			StockAfter:      stockAfter,
			ExpiredBatches:  toExpiredBatchInfos(batches),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	if item.UnderRemoved.IsPositive() {
		s.logger.Warn("Expired stock exceeds product stock, removal capped",
			zap.String("product_id", productID.String()),
			zap.String("expired_quantity", item.ExpiredQuantity.String()),
			zap.String("quantity_removed", item.QuantityRemoved.String()),
			zap.String("under_removed", item.UnderRemoved.String()),
		)
	}

	if s.eventPublisher != nil {
		event := ledger.NewExpiredStockRemovedEvent(productID, item.ExpiredQuantity, item.QuantityRemoved)
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish expired stock event", zap.String("product_id", productID.String()), zap.Error(err))
		}
	}
	return item, nil
}

// ListExpired reports batches that the sweep would process as of asOf
func (s *ExpirySweeper) ListExpired(ctx context.Context, asOf time.Time) ([]ExpiredBatchResponse, error) {
	asOf = asOf.UTC()
	batches, err := s.batchRepo.FindExpired(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("find expired batches: %w", err)
	}
	ledger.SortFIFO(batches)

	names := make(map[uuid.UUID]string)
	out := make([]ExpiredBatchResponse, 0, len(batches))
	for i := range batches {
		b := &batches[i]
		name, ok := names[b.ProductID]
		if !ok {
			if product, err := s.products.GetProduct(ctx, b.ProductID); err == nil {
				name = product.Name
			} else {
				s.logger.Warn("Product lookup failed for expired batch",
					zap.String("product_id", b.ProductID.String()),
					zap.Error(err),
				)
			}
			names[b.ProductID] = name
		}
		out = append(out, ExpiredBatchResponse{
			BatchID:        b.ID,
			BatchCode:      b.BatchCode,
			ProductID:      b.ProductID,
			ProductName:    name,
			LedgerEntryID:  b.LedgerEntryID,
			ExpiryDate:     b.ExpiryDate,
			RemainingStock: b.RemainingStock,
			UnitPrice:      b.UnitPrice,
			DaysPastExpiry: b.DaysPastExpiry(asOf),
		})
	}
	return out, nil
}

// TriggerManual runs a sweep on demand and never returns an error; failures
// are reported in the envelope.
func (s *ExpirySweeper) TriggerManual(ctx context.Context, asOf *time.Time) *ManualSweepResponse {
	checkDate := s.clock()
	if asOf != nil {
		checkDate = *asOf
	}

	s.logger.Info("Manual expiry sweep triggered", zap.Time("check_date", checkDate))

	result, err := s.Sweep(ctx, checkDate)
	if err != nil {
		s.logger.Error("Manual expiry sweep failed", zap.Error(err))
		return &ManualSweepResponse{
			Success: false,
			Message: fmt.Sprintf("Manual processing failed: %s", err.Error()),
		}
	}

	return &ManualSweepResponse{
		Success: true,
		Message: fmt.Sprintf("Manual processing completed: %d expired items found, %s units removed from %d products",
			result.TotalExpiredItems, result.TotalQuantityRemoved.String(), len(result.Summary)),
		Result: result,
	}
}

func groupProductIDs(batches []ledger.Batch) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for _, b := range batches {
		if _, ok := seen[b.ProductID]; ok {
			continue
		}
		seen[b.ProductID] = struct{}{}
		ids = append(ids, b.ProductID)
	}
	return ids
}

func toExpiredBatchInfos(batches []ledger.Batch) []ExpiredBatchInfo {
	out := make([]ExpiredBatchInfo, len(batches))
	for i, b := range batches {
		out[i] = ExpiredBatchInfo{
			BatchID:        b.ID,
			BatchCode:      b.BatchCode,
			LedgerEntryID:  b.LedgerEntryID,
			ExpiryDate:     b.ExpiryDate,
			RemainingStock: b.RemainingStock,
		}
	}
	return out
}
