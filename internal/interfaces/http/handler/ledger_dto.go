package handler

import (
	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// CreateLedgerEntryRequest is the body of POST /inventory-logs
type CreateLedgerEntryRequest struct {
	Action string              `json:"action" binding:"required"`
	Items  []LedgerLineRequest `json:"items" binding:"omitempty,dive"`
}

// LedgerLineRequest is one requested product line. Expiry date and unit
// price are only read for imports.
type LedgerLineRequest struct {
	ProductID  string          `json:"product_id" binding:"required,uuid"`
	Quantity   decimal.Decimal `json:"quantity"`
	ExpiryDate *string         `json:"expiry_date"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	BatchCode  string          `json:"batch_code" binding:"max=50"`
}

// ReviewLedgerEntryRequest is the body of POST /inventory-logs/:id/review
type ReviewLedgerEntryRequest struct {
	Approved *bool  `json:"approved" binding:"required"`
	Reason   string `json:"reason" binding:"max=500"`
}

// ListLedgerEntriesRequest holds the GET /inventory-logs filters
type ListLedgerEntriesRequest struct {
	dto.PageRequest
	ProductID   string `form:"product_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=pending completed denied"`
	Action      string `form:"action" binding:"omitempty,oneof=import export"`
	RequestedBy string `form:"requested_by" binding:"omitempty,uuid"`
	BatchCode   string `form:"batch_code" binding:"max=50"`
}

// ReduceStockRequest is the body of POST /batches/reduce
type ReduceStockRequest struct {
	ProductID string          `json:"product_id" binding:"required,uuid"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// ReduceFromBatchRequest is the body of POST /batches/reduce-from-batch
type ReduceFromBatchRequest struct {
	ProductID string          `json:"product_id" binding:"required,uuid"`
	BatchCode string          `json:"batch_code" binding:"required,max=50"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// AdjustBatchStockRequest is the body of PATCH /batches/:id/stock
type AdjustBatchStockRequest struct {
	QuantityChange decimal.Decimal `json:"quantity_change"`
	Note           string          `json:"note" binding:"max=500"`
}

// SyncStockResponse reports the recomputed aggregate stock of a product
type SyncStockResponse struct {
	ProductID    uuid.UUID       `json:"product_id"`
	CurrentStock decimal.Decimal `json:"current_stock"`
}

func (r *LedgerLineRequest) toLineInput() (ledger.LineInput, error) {
	in := ledger.LineInput{
		ProductID: uuid.MustParse(r.ProductID),
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		BatchCode: r.BatchCode,
	}
	if r.ExpiryDate != nil && *r.ExpiryDate != "" {
		t, err := parseDateTime(*r.ExpiryDate)
		if err != nil {
			return ledger.LineInput{}, err
		}
		in.ExpiryDate = &t
	}
	return in, nil
}
