package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/pcshop/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductCatalog implements ledger.ProductCatalog over the products table.
// The ledger only reads the name and writes the aggregate stock column.
type GormProductCatalog struct {
	db       *gorm.DB
	lockRows bool
}

// NewGormProductCatalog creates a new GormProductCatalog
func NewGormProductCatalog(db *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: db}
}

// newTxProductCatalog returns a catalog bound to an open transaction whose
// product reads lock the row. Every ledger mutation starts here, which makes
// the product row the per-product serialization point across processes.
func newTxProductCatalog(tx *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: tx, lockRows: true}
}

// GetProduct returns the product or a PRODUCT_NOT_FOUND error
func (c *GormProductCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*ledger.Product, error) {
	var model models.ProductModel
	query := c.db.WithContext(ctx)
	if c.lockRows {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.NewProductNotFoundError(id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SetAggregateStock overwrites the product's aggregate stock
func (c *GormProductCatalog) SetAggregateStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error {
	result := c.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stock":      qty,
			"updated_at": utcNow(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.NewProductNotFoundError(id)
	}
	return nil
}

// CreateProduct registers a product with zero stock. Products are owned by
// the catalog; this exists for seeding and tests.
func (c *GormProductCatalog) CreateProduct(ctx context.Context, name string) (*ledger.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError(ledger.CodeInvalidInput, "Product name is required")
	}
	base := shared.NewBaseEntity()
	model := &models.ProductModel{Name: name, CurrentStock: decimal.Zero}
	model.FromDomainBaseEntity(base)
	if err := c.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormProductCatalog implements ProductCatalog
var _ ledger.ProductCatalog = (*GormProductCatalog)(nil)
