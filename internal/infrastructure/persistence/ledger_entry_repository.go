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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerEntryRepository implements ledger.EntryRepository using GORM
type GormLedgerEntryRepository struct {
	db       *gorm.DB
	lockRows bool
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// newTxLedgerEntryRepository returns a repository bound to an open transaction
// that reads entries with SELECT ... FOR UPDATE.
func newTxLedgerEntryRepository(tx *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: tx, lockRows: true}
}

// Create stores a new entry with its lines
func (r *GormLedgerEntryRepository) Create(ctx context.Context, entry *ledger.LedgerEntry) error {
	model := models.LedgerEntryModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID loads the entry with its lines
func (r *GormLedgerEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.LedgerEntry, error) {
	var model models.LedgerEntryModel
	query := r.db.WithContext(ctx).Preload("Lines", orderLines)
	if r.lockRows {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.NewEntryNotFoundError(id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpdateStatus persists a review transition if the stored row is still
// pending at expectedVersion
func (r *GormLedgerEntryRepository) UpdateStatus(ctx context.Context, entry *ledger.LedgerEntry, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Where("id = ? AND version = ? AND status = ?", entry.ID, expectedVersion, string(ledger.StatusPending)).
		Updates(map[string]any{
			"status":      string(entry.Status),
			"reason":      entry.Reason,
			"reviewed_at": entry.ReviewedAt,
			"version":     entry.Version,
			"updated_at":  entry.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// List returns entries matching the filter, newest first
func (r *GormLedgerEntryRepository) List(ctx context.Context, filter ledger.EntryFilter) ([]ledger.LedgerEntry, int64, error) {
	base := func() *gorm.DB {
		return r.applyFilter(r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.LedgerEntryModel
	if err := base().
		Preload("Lines", orderLines).
		Order("created_at DESC, id DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]ledger.LedgerEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries, total, nil
}

// FindLines returns the entry's lines ordered by line number
func (r *GormLedgerEntryRepository) FindLines(ctx context.Context, entryID uuid.UUID) ([]ledger.LineItem, error) {
	var rows []models.LineItemModel
	if err := r.db.WithContext(ctx).
		Where("ledger_entry_id = ?", entryID).
		Order("line_no ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	lines := make([]ledger.LineItem, len(rows))
	for i := range rows {
		lines[i] = *rows[i].ToDomain()
	}
	return lines, nil
}

// SetLineBatchCode records the batch code generated for an import line
func (r *GormLedgerEntryRepository) SetLineBatchCode(ctx context.Context, lineID uuid.UUID, batchCode string) error {
	result := r.db.WithContext(ctx).
		Model(&models.LineItemModel{}).
		Where("id = ?", lineID).
		Update("batch_code", batchCode)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// applyFilter applies filter options to the query
func (r *GormLedgerEntryRepository) applyFilter(query *gorm.DB, filter ledger.EntryFilter) *gorm.DB {
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status IN ?", statuses)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", string(filter.Action))
	}
	if filter.RequestedBy != nil {
		query = query.Where("requested_by = ?", *filter.RequestedBy)
	}

	if filter.ProductID != nil || filter.BatchCode != "" {
		lines := r.db.Model(&models.LineItemModel{}).Select("ledger_entry_id")
		if filter.ProductID != nil {
			lines = lines.Where("product_id = ?", *filter.ProductID)
		}
		if code := strings.TrimSpace(filter.BatchCode); code != "" {
			lines = lines.Where("LOWER(batch_code) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(code))+"%")
		}
		query = query.Where("id IN (?)", lines)
	}

	return query
}

func orderLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// utcNow is the timestamp written to updated_at columns
func utcNow() time.Time {
	return time.Now().UTC()
}

// Ensure GormLedgerEntryRepository implements EntryRepository
var _ ledger.EntryRepository = (*GormLedgerEntryRepository)(nil)
