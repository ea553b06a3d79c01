package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockSynchronizer recomputes a product's aggregate stock from its batches.
// It is the only writer of the aggregate.
type StockSynchronizer struct {
	scope  TransactionScope
	locker *ProductLocker
	logger *zap.Logger
}

// NewStockSynchronizer creates a new StockSynchronizer
func NewStockSynchronizer(scope TransactionScope, locker *ProductLocker, logger *zap.Logger) *StockSynchronizer {
	return &StockSynchronizer{
		scope:  scope,
		locker: locker,
		logger: logger,
	}
}

// Sync writes sum(remaining stock) as the product's aggregate stock and
// returns the new total. Safe to call redundantly.
func (s *StockSynchronizer) Sync(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	unlock := s.locker.Lock(productID)
	defer unlock()

	var total decimal.Decimal
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		total, err = s.syncIn(ctx, repos, productID)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *StockSynchronizer) syncIn(ctx context.Context, repos TransactionalRepositories, productID uuid.UUID) (decimal.Decimal, error) {
	product, err := repos.Products().GetProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}

	total, err := repos.BatchRepo().SumRemaining(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}

	if err := repos.Products().SetAggregateStock(ctx, productID, total); err != nil {
		return decimal.Zero, err
	}

	if !product.CurrentStock.Equal(total) {
		s.logger.Debug("Product stock synchronized",
			zap.String("product_id", productID.String()),
			zap.String("previous_stock", product.CurrentStock.String()),
			zap.String("stock", total.String()),
		)
	}
	return total, nil
}
