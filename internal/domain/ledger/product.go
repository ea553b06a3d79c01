package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog view the ledger needs
type Product struct {
	ID           uuid.UUID
	Name         string
	CurrentStock decimal.Decimal
}

// ProductCatalog is the external product collaborator. The aggregate stock
// it stores is written only through SetAggregateStock.
type ProductCatalog interface {
	// GetProduct returns the product or a PRODUCT_NOT_FOUND error
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	// SetAggregateStock overwrites the product's aggregate stock
	SetAggregateStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error
}
