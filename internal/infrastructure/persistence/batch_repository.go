package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/pcshop/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fifoOrder is the FIFO ordering of batches: earliest expiry, then creation, then id
const fifoOrder = "stock_batches.expiry_date ASC, stock_batches.created_at ASC, stock_batches.id ASC"

// GormBatchRepository implements ledger.BatchRepository using GORM
type GormBatchRepository struct {
	db       *gorm.DB
	lockRows bool
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// newTxBatchRepository returns a repository bound to an open transaction.
// Batch reads take row locks so concurrent writers on the same product queue up.
func newTxBatchRepository(tx *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: tx, lockRows: true}
}

// Create stores a new batch
func (r *GormBatchRepository) Create(ctx context.Context, batch *ledger.Batch) error {
	model := models.BatchModelFromDomain(batch)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return ledger.NewDuplicateBatchCodeError(batch.ProductID, batch.BatchCode)
		}
		return err
	}
	return nil
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Batch, error) {
	var model models.BatchModel
	if err := r.locked(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.NewBatchIDNotFoundError(id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAvailableByProduct returns batches with remaining stock in FIFO order
func (r *GormBatchRepository) FindAvailableByProduct(ctx context.Context, productID uuid.UUID) ([]ledger.Batch, error) {
	return r.find(r.locked(r.db.WithContext(ctx)).
		Where("product_id = ? AND remaining_stock > 0", productID).
		Order(fifoOrder))
}

// FindAvailableByCode returns the batch with the code if it still holds stock
func (r *GormBatchRepository) FindAvailableByCode(ctx context.Context, productID uuid.UUID, batchCode string) (*ledger.Batch, error) {
	var model models.BatchModel
	err := r.locked(r.db.WithContext(ctx)).
		Where("product_id = ? AND batch_code = ? AND remaining_stock > 0", productID, batchCode).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProduct returns batches of a product in FIFO order
func (r *GormBatchRepository) FindByProduct(ctx context.Context, productID uuid.UUID, includeDepleted bool) ([]ledger.Batch, error) {
	query := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if !includeDepleted {
		query = query.Where("remaining_stock > 0")
	}
	return r.find(query.Order(fifoOrder))
}

// ExistsCode reports whether the product already uses the code
func (r *GormBatchRepository) ExistsCode(ctx context.Context, productID uuid.UUID, batchCode string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("product_id = ? AND batch_code = ?", productID, batchCode).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountCodesWithPrefix counts the product's batch codes starting with prefix
func (r *GormBatchRepository) CountCodesWithPrefix(ctx context.Context, productID uuid.UUID, prefix string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("product_id = ? AND batch_code LIKE ? ESCAPE '\\'", productID, escapeLike(prefix)+"%").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumRemaining sums remaining stock over every batch of the product
func (r *GormBatchRepository) SumRemaining(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Select("COALESCE(SUM(remaining_stock), 0)").
		Where("product_id = ?", productID).
		Row().Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// DecrementStock subtracts qty only while at least qty remains
func (r *GormBatchRepository) DecrementStock(ctx context.Context, batchID uuid.UUID, qty decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("id = ? AND remaining_stock >= ?", batchID, qty).
		Updates(map[string]any{
			"remaining_stock": gorm.Expr("remaining_stock - ?", qty),
			"updated_at":      utcNow(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// AdjustStock applies a signed change while the result stays within [0, imported_quantity]
func (r *GormBatchRepository) AdjustStock(ctx context.Context, batchID uuid.UUID, change decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Where("id = ? AND remaining_stock + ? >= 0 AND remaining_stock + ? <= imported_quantity", batchID, change, change).
		Updates(map[string]any{
			"remaining_stock": gorm.Expr("remaining_stock + ?", change),
			"updated_at":      utcNow(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindExpired returns batches of completed import entries with remaining
// stock whose expiry is before asOf
func (r *GormBatchRepository) FindExpired(ctx context.Context, asOf time.Time) ([]ledger.Batch, error) {
	return r.find(r.expiredQuery(ctx, asOf))
}

// FindExpiredByProduct is FindExpired restricted to one product
func (r *GormBatchRepository) FindExpiredByProduct(ctx context.Context, productID uuid.UUID, asOf time.Time) ([]ledger.Batch, error) {
	query := r.expiredQuery(ctx, asOf).Where("stock_batches.product_id = ?", productID)
	if r.lockRows {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "stock_batches"}})
	}
	return r.find(query)
}

func (r *GormBatchRepository) expiredQuery(ctx context.Context, asOf time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.BatchModel{}).
		Select("stock_batches.*").
		Joins("JOIN ledger_entries ON ledger_entries.id = stock_batches.ledger_entry_id").
		Where("ledger_entries.status = ? AND ledger_entries.action = ?", string(ledger.StatusCompleted), string(ledger.ActionImport)).
		Where("stock_batches.remaining_stock > 0").
		Where("stock_batches.expiry_date < ?", asOf.UTC()).
		Order(fifoOrder)
}

func (r *GormBatchRepository) locked(query *gorm.DB) *gorm.DB {
	if r.lockRows {
		return query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}

func (r *GormBatchRepository) find(query *gorm.DB) ([]ledger.Batch, error) {
	var rows []models.BatchModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	batches := make([]ledger.Batch, len(rows))
	for i := range rows {
		batches[i] = *rows[i].ToDomain()
	}
	return batches, nil
}

// isDuplicateKey recognises unique violations from both supported drivers
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// Ensure GormBatchRepository implements BatchRepository
var _ ledger.BatchRepository = (*GormBatchRepository)(nil)
