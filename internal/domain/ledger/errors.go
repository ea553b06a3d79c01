package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Ledger error codes
const (
	CodeProductNotFound   = "PRODUCT_NOT_FOUND"
	CodeInvalidQuantity   = "INVALID_QUANTITY"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyProcessed  = "ALREADY_PROCESSED"
	CodeMissingReason     = "MISSING_REASON"
	CodeBatchNotFound     = "BATCH_NOT_FOUND"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeAlreadyExists     = "ALREADY_EXISTS"
)

// ErrMissingReason is returned when a denial carries no reason
var ErrMissingReason = shared.NewDomainError(CodeMissingReason, "Reason is required when denying a ledger entry")

// NewProductNotFoundError reports a product that the catalog could not resolve
func NewProductNotFoundError(productID uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(CodeProductNotFound, fmt.Sprintf("Product with ID %s not found", productID))
}

// NewEntryNotFoundError reports a missing ledger entry
func NewEntryNotFoundError(id uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(CodeNotFound, fmt.Sprintf("Ledger entry with ID %s not found", id))
}

// NewAlreadyProcessedError reports a review attempt on a terminal entry
func NewAlreadyProcessedError(status Status) *shared.DomainError {
	return shared.NewDomainError(CodeAlreadyProcessed, fmt.Sprintf("Ledger entry has already been %s", status))
}

// NewBatchNotFoundError reports a batch code with no remaining stock for the product
func NewBatchNotFoundError(productID uuid.UUID, batchCode string) *shared.DomainError {
	return shared.NewDomainError(CodeBatchNotFound,
		fmt.Sprintf("Batch %s not found or has no remaining stock for product %s", batchCode, productID))
}

// NewBatchIDNotFoundError reports a missing batch looked up by ID
func NewBatchIDNotFoundError(id uuid.UUID) *shared.DomainError {
	return shared.NewDomainError(CodeBatchNotFound, fmt.Sprintf("Batch with ID %s not found", id))
}

// NewInsufficientStockError reports the quantity an export could not cover
func NewInsufficientStockError(productID uuid.UUID, shortfall decimal.Decimal) *shared.DomainError {
	return shared.NewDomainError(CodeInsufficientStock,
		fmt.Sprintf("Insufficient stock for product %s: short by %s", productID, shortfall.String()))
}

// NewDuplicateBatchCodeError reports a batch code already used by the product
func NewDuplicateBatchCodeError(productID uuid.UUID, batchCode string) *shared.DomainError {
	return shared.NewDomainError(CodeAlreadyExists,
		fmt.Sprintf("Batch code %s already exists for product %s", batchCode, productID))
}
