package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// CreateEntryInput is the request to record a pending ledger entry
type CreateEntryInput struct {
	Action      ledger.Action
	Lines       []ledger.LineInput
	RequestedBy uuid.UUID
}

// ReviewInput is the reviewer's decision
type ReviewInput struct {
	Approved bool
	Reason   string
}

// ListEntriesQuery filters ledger entry listings
type ListEntriesQuery struct {
	ProductID   *uuid.UUID
	Status      ledger.Status
	Action      ledger.Action
	RequestedBy *uuid.UUID
	BatchCode   string
	Page        int
	PageSize    int
}

// LineItemResponse represents a ledger line in API responses
type LineItemResponse struct {
	ID         uuid.UUID       `json:"id"`
	LineNo     int             `json:"line_no"`
	ProductID  uuid.UUID       `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	BatchCode  string          `json:"batch_code,omitempty"`
}

// LedgerEntryResponse represents a ledger entry in API responses
type LedgerEntryResponse struct {
	ID          uuid.UUID          `json:"id"`
	Action      string             `json:"action"`
	Status      string             `json:"status"`
	RequestedBy uuid.UUID          `json:"requested_by"`
	Reason      string             `json:"reason,omitempty"`
	ReviewedAt  *time.Time         `json:"reviewed_at,omitempty"`
	Lines       []LineItemResponse `json:"lines"`
	Version     int                `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// EntryListResponse is a page of ledger entries
type EntryListResponse struct {
	Entries  []LedgerEntryResponse `json:"entries"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID               uuid.UUID       `json:"id"`
	LedgerEntryID    uuid.UUID       `json:"ledger_entry_id"`
	ProductID        uuid.UUID       `json:"product_id"`
	BatchCode        string          `json:"batch_code"`
	ImportedQuantity decimal.Decimal `json:"imported_quantity"`
	RemainingStock   decimal.Decimal `json:"remaining_stock"`
	ExpiryDate       time.Time       `json:"expiry_date"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ProductBatchesResponse is the batch report for one product
type ProductBatchesResponse struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	TotalStock  decimal.Decimal `json:"total_stock"`
	Batches     []BatchResponse `json:"batches"`
}

// MovementResponse represents a batch movement in API responses
type MovementResponse struct {
	ID            uuid.UUID       `json:"id"`
	BatchID       uuid.UUID       `json:"batch_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	LedgerEntryID *uuid.UUID      `json:"ledger_entry_id,omitempty"`
	Kind          string          `json:"kind"`
	Quantity      decimal.Decimal `json:"quantity"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ReduceResult is the outcome of a FIFO reduction
type ReduceResult struct {
	ProductID         uuid.UUID               `json:"product_id"`
	RequestedQuantity decimal.Decimal         `json:"requested_quantity"`
	ReducedBatches    []ledger.BatchReduction `json:"reduced_batches"`
	TotalReduced      decimal.Decimal         `json:"total_reduced"`
	Shortfall         decimal.Decimal         `json:"shortfall"`
}

// BatchReduceResult is the outcome of an exact-batch reduction
type BatchReduceResult struct {
	ProductID         uuid.UUID       `json:"product_id"`
	BatchID           uuid.UUID       `json:"batch_id"`
	BatchCode         string          `json:"batch_code"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	ReducedQuantity   decimal.Decimal `json:"reduced_quantity"`
	RemainingInBatch  decimal.Decimal `json:"remaining_in_batch"`
	Shortfall         decimal.Decimal `json:"shortfall"`
}

// ExpiredBatchInfo describes one expired batch handled by a sweep
type ExpiredBatchInfo struct {
	BatchID        uuid.UUID       `json:"batch_id"`
	BatchCode      string          `json:"batch_code"`
	LedgerEntryID  uuid.UUID       `json:"ledger_entry_id"`
	ExpiryDate     time.Time       `json:"expiry_date"`
	RemainingStock decimal.Decimal `json:"remaining_stock"`
}

// ProcessedItem is the sweep outcome for one product
type ProcessedItem struct {
	ProductID       uuid.UUID          `json:"product_id"`
	ProductName     string             `json:"product_name"`
	ExpiredQuantity decimal.Decimal    `json:"expired_quantity"`
	QuantityRemoved decimal.Decimal    `json:"quantity_removed"`
	UnderRemoved    decimal.Decimal    `json:"under_removed"`
	StockBefore     decimal.Decimal    `json:"stock_before"`
	StockAfter      decimal.Decimal    `json:"stock_after"`
	ExpiredBatches  []ExpiredBatchInfo `json:"expired_batches"`
}

// SweepSummary is the per-product removal total
type SweepSummary struct {
	ProductID            uuid.UUID       `json:"product_id"`
	ProductName          string          `json:"product_name"`
	TotalQuantityRemoved decimal.Decimal `json:"total_quantity_removed"`
}

// SweepError records a product skipped by the sweep
type SweepError struct {
	ProductID uuid.UUID `json:"product_id"`
	Message   string    `json:"message"`
}

// SweepResult is the outcome of one expiry sweep
type SweepResult struct {
	CheckDate            time.Time       `json:"check_date"`
	ProcessedAt          time.Time       `json:"processed_at"`
	ProcessedItems       []ProcessedItem `json:"processed_items"`
	TotalExpiredItems    int             `json:"total_expired_items"`
	TotalQuantityRemoved decimal.Decimal `json:"total_quantity_removed"`
	Summary              []SweepSummary  `json:"summary"`
	Errors               []SweepError    `json:"errors"`
}

// ExpiredBatchResponse is one row of the expired stock report
type ExpiredBatchResponse struct {
	BatchID        uuid.UUID       `json:"batch_id"`
	BatchCode      string          `json:"batch_code"`
	ProductID      uuid.UUID       `json:"product_id"`
	ProductName    string          `json:"product_name"`
	LedgerEntryID  uuid.UUID       `json:"ledger_entry_id"`
	ExpiryDate     time.Time       `json:"expiry_date"`
	RemainingStock decimal.Decimal `json:"remaining_stock"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DaysPastExpiry int             `json:"days_past_expiry"`
}

// ManualSweepResponse wraps a manually triggered sweep
type ManualSweepResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Result  *SweepResult `json:"result,omitempty"`
}

// ToLedgerEntryResponse converts a domain entry to a response
func ToLedgerEntryResponse(e *ledger.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:          e.ID,
		Action:      e.Action.String(),
		Status:      e.Status.String(),
		RequestedBy: e.RequestedBy,
		Reason:      e.Reason,
		ReviewedAt:  e.ReviewedAt,
		Lines:       ToLineItemResponses(e.Lines),
		Version:     e.Version,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// ToLineItemResponses converts domain lines to responses
func ToLineItemResponses(lines []ledger.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, len(lines))
	for i, l := range lines {
		out[i] = LineItemResponse{
			ID:         l.ID,
			LineNo:     l.LineNo,
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			ExpiryDate: l.ExpiryDate,
			UnitPrice:  l.UnitPrice,
			BatchCode:  l.BatchCode,
		}
	}
	return out
}

// ToBatchResponse converts a domain batch to a response
func ToBatchResponse(b *ledger.Batch) BatchResponse {
	return BatchResponse{
		ID:               b.ID,
		LedgerEntryID:    b.LedgerEntryID,
		ProductID:        b.ProductID,
		BatchCode:        b.BatchCode,
		ImportedQuantity: b.ImportedQuantity,
		RemainingStock:   b.RemainingStock,
		ExpiryDate:       b.ExpiryDate,
		UnitPrice:        b.UnitPrice,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

// ToMovementResponse converts a domain movement to a response
func ToMovementResponse(m *ledger.BatchMovement) MovementResponse {
	return MovementResponse{
		ID:            m.ID,
		BatchID:       m.BatchID,
		ProductID:     m.ProductID,
		LedgerEntryID: m.LedgerEntryID,
		Kind:          m.Kind.String(),
		Quantity:      m.Quantity,
		BalanceAfter:  m.BalanceAfter,
		Note:          m.Note,
		CreatedAt:     m.CreatedAt,
	}
}
