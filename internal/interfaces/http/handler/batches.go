package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appledger "github.com/pcshop/backend/internal/application/ledger"
)

// BatchHandler serves the /batches endpoints and product stock repair
type BatchHandler struct {
	BaseHandler
	allocator *appledger.FIFOAllocator
	batches   *appledger.BatchService
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(allocator *appledger.FIFOAllocator, batches *appledger.BatchService) *BatchHandler {
	return &BatchHandler{
		allocator: allocator,
		batches:   batches,
	}
}

// GetByProduct lists the batches of a product, soonest expiry first.
// Depleted batches are hidden unless include_depleted=true.
func (h *BatchHandler) GetByProduct(c *gin.Context) {
	productID, ok := h.uuidParam(c, "productId", "product ID")
	if !ok {
		return
	}
	includeDepleted := c.Query("include_depleted") == "true"

	report, err := h.batches.GetBatchesForProduct(c.Request.Context(), productID, includeDepleted)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Reduce removes stock from a product's batches in FIFO order
func (h *BatchHandler) Reduce(c *gin.Context) {
	var req ReduceStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.allocator.ReduceFIFO(c.Request.Context(), uuid.MustParse(req.ProductID), req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ReduceFromBatch removes stock from one named batch
func (h *BatchHandler) ReduceFromBatch(c *gin.Context) {
	var req ReduceFromBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	result, err := h.allocator.ReduceFromBatch(c.Request.Context(), uuid.MustParse(req.ProductID), req.BatchCode, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// AdjustStock applies a manual correction to a batch
func (h *BatchHandler) AdjustStock(c *gin.Context) {
	batchID, ok := h.uuidParam(c, "id", "batch ID")
	if !ok {
		return
	}

	var req AdjustBatchStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	batch, err := h.batches.AdjustBatchStock(c.Request.Context(), batchID, req.QuantityChange, req.Note)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// ListMovements returns the audit trail of a batch
func (h *BatchHandler) ListMovements(c *gin.Context) {
	batchID, ok := h.uuidParam(c, "id", "batch ID")
	if !ok {
		return
	}

	movements, err := h.batches.ListBatchMovements(c.Request.Context(), batchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, movements)
}

// SyncProductStock recomputes a product's aggregate stock from its batches
func (h *BatchHandler) SyncProductStock(c *gin.Context) {
	productID, ok := h.uuidParam(c, "productId", "product ID")
	if !ok {
		return
	}

	stock, err := h.batches.SyncProductStock(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SyncStockResponse{ProductID: productID, CurrentStock: stock})
}
