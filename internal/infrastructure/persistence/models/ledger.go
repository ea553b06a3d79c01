package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// ProductModel is the catalog row whose current_stock the ledger maintains.
type ProductModel struct {
	BaseModel
	Name         string          `gorm:"type:varchar(200);not null"`
	CurrentStock decimal.Decimal `gorm:"column:stock;type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to the ledger's product view.
func (m *ProductModel) ToDomain() *ledger.Product {
	return &ledger.Product{
		ID:           m.ID,
		Name:         m.Name,
		CurrentStock: m.CurrentStock,
	}
}

// LedgerEntryModel is the persistence model for the LedgerEntry aggregate root.
type LedgerEntryModel struct {
	AggregateModel
	Action      string     `gorm:"type:varchar(10);not null"`
	Status      string     `gorm:"type:varchar(20);not null;index"`
	RequestedBy uuid.UUID  `gorm:"type:uuid;not null;index"`
	Reason      string     `gorm:"type:text"`
	ReviewedAt  *time.Time
	// Associations
	Lines []LineItemModel `gorm:"foreignKey:EntryID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry.
func (m *LedgerEntryModel) ToDomain() *ledger.LedgerEntry {
	entry := &ledger.LedgerEntry{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Action:            ledger.Action(m.Action),
		Status:            ledger.Status(m.Status),
		RequestedBy:       m.RequestedBy,
		Reason:            m.Reason,
		Lines:             make([]ledger.LineItem, len(m.Lines)),
	}
	if m.ReviewedAt != nil {
		reviewed := m.ReviewedAt.UTC()
		entry.ReviewedAt = &reviewed
	}
	for i := range m.Lines {
		entry.Lines[i] = *m.Lines[i].ToDomain()
	}
	return entry
}

// FromDomain populates the persistence model from a domain LedgerEntry.
func (m *LedgerEntryModel) FromDomain(e *ledger.LedgerEntry) {
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	m.Action = string(e.Action)
	m.Status = string(e.Status)
	m.RequestedBy = e.RequestedBy
	m.Reason = e.Reason
	m.ReviewedAt = e.ReviewedAt
	m.Lines = make([]LineItemModel, len(e.Lines))
	for i := range e.Lines {
		m.Lines[i] = *LineItemModelFromDomain(&e.Lines[i])
	}
}

// LedgerEntryModelFromDomain creates a new persistence model from a domain LedgerEntry.
func LedgerEntryModelFromDomain(e *ledger.LedgerEntry) *LedgerEntryModel {
	m := &LedgerEntryModel{}
	m.FromDomain(e)
	return m
}

// LineItemModel is the persistence model for a ledger entry line.
type LineItemModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	EntryID    uuid.UUID       `gorm:"column:ledger_entry_id;type:uuid;not null;index"`
	LineNo     int             `gorm:"not null"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ExpiryDate *time.Time
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BatchCode  string          `gorm:"type:varchar(50);index"`
}

// TableName returns the table name for GORM
func (LineItemModel) TableName() string {
	return "ledger_line_items"
}

// ToDomain converts the persistence model to a domain LineItem.
func (m *LineItemModel) ToDomain() *ledger.LineItem {
	line := &ledger.LineItem{
		ID:        m.ID,
		EntryID:   m.EntryID,
		LineNo:    m.LineNo,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
		BatchCode: m.BatchCode,
	}
	if m.ExpiryDate != nil {
		expiry := m.ExpiryDate.UTC()
		line.ExpiryDate = &expiry
	}
	return line
}

// LineItemModelFromDomain creates a new persistence model from a domain LineItem.
func LineItemModelFromDomain(l *ledger.LineItem) *LineItemModel {
	return &LineItemModel{
		ID:         l.ID,
		EntryID:    l.EntryID,
		LineNo:     l.LineNo,
		ProductID:  l.ProductID,
		Quantity:   l.Quantity,
		ExpiryDate: l.ExpiryDate,
		UnitPrice:  l.UnitPrice,
		BatchCode:  l.BatchCode,
	}
}

// BatchModel is the persistence model for the Batch entity.
type BatchModel struct {
	BaseModel
	LedgerEntryID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineItemID       uuid.UUID       `gorm:"type:uuid;not null"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_batches_product_code,priority:1;index:idx_stock_batches_product_expiry,priority:1"`
	BatchCode        string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_stock_batches_product_code,priority:2"`
	ImportedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RemainingStock   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ExpiryDate       time.Time       `gorm:"not null;index:idx_stock_batches_product_expiry,priority:2"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "stock_batches"
}

// ToDomain converts the persistence model to a domain Batch.
func (m *BatchModel) ToDomain() *ledger.Batch {
	return &ledger.Batch{
		BaseEntity:       m.BaseModel.ToDomain(),
		LedgerEntryID:    m.LedgerEntryID,
		LineItemID:       m.LineItemID,
		ProductID:        m.ProductID,
		BatchCode:        m.BatchCode,
		ImportedQuantity: m.ImportedQuantity,
		RemainingStock:   m.RemainingStock,
		ExpiryDate:       m.ExpiryDate.UTC(),
		UnitPrice:        m.UnitPrice,
	}
}

// BatchModelFromDomain creates a new persistence model from a domain Batch.
func BatchModelFromDomain(b *ledger.Batch) *BatchModel {
	m := &BatchModel{
		LedgerEntryID:    b.LedgerEntryID,
		LineItemID:       b.LineItemID,
		ProductID:        b.ProductID,
		BatchCode:        b.BatchCode,
		ImportedQuantity: b.ImportedQuantity,
		RemainingStock:   b.RemainingStock,
		ExpiryDate:       b.ExpiryDate.UTC(),
		UnitPrice:        b.UnitPrice,
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// MovementModel is the persistence model for a batch movement.
type MovementModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	BatchID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_batch_movements_batch_created,priority:1"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	LedgerEntryID *uuid.UUID      `gorm:"type:uuid;index"`
	Kind          string          `gorm:"type:varchar(20);not null"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Note          string          `gorm:"type:varchar(500)"`
	CreatedAt     time.Time       `gorm:"not null;index:idx_batch_movements_batch_created,priority:2"`
}

// TableName returns the table name for GORM
func (MovementModel) TableName() string {
	return "batch_movements"
}

// ToDomain converts the persistence model to a domain BatchMovement.
func (m *MovementModel) ToDomain() *ledger.BatchMovement {
	return &ledger.BatchMovement{
		ID:            m.ID,
		BatchID:       m.BatchID,
		ProductID:     m.ProductID,
		LedgerEntryID: m.LedgerEntryID,
		Kind:          ledger.MovementKind(m.Kind),
		Quantity:      m.Quantity,
		BalanceAfter:  m.BalanceAfter,
		Note:          m.Note,
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

// MovementModelFromDomain creates a new persistence model from a domain BatchMovement.
func MovementModelFromDomain(mv *ledger.BatchMovement) *MovementModel {
	return &MovementModel{
		ID:            mv.ID,
		BatchID:       mv.BatchID,
		ProductID:     mv.ProductID,
		LedgerEntryID: mv.LedgerEntryID,
		Kind:          string(mv.Kind),
		Quantity:      mv.Quantity,
		BalanceAfter:  mv.BalanceAfter,
		Note:          mv.Note,
		CreatedAt:     mv.CreatedAt.UTC(),
	}
}
