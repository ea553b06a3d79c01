package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LineItem is one product line of a ledger entry. Expiry date and unit price
// apply to imports; BatchCode names the batch to create on import or the
// batch to draw from on export.
type LineItem struct {
	ID         uuid.UUID
	EntryID    uuid.UUID
	LineNo     int
	ProductID  uuid.UUID
	Quantity   decimal.Decimal
	ExpiryDate *time.Time
	UnitPrice  decimal.Decimal
	BatchCode  string
}

func newLineItem(entryID uuid.UUID, lineNo int, action Action, in LineInput) (*LineItem, error) {
	if in.ProductID == uuid.Nil {
		return nil, shared.NewDomainError(CodeInvalidInput, fmt.Sprintf("Line %d: product ID is required", lineNo))
	}
	if !in.Quantity.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidQuantity, fmt.Sprintf("Line %d: quantity must be greater than zero", lineNo))
	}

	batchCode := strings.TrimSpace(in.BatchCode)
	if len(batchCode) > MaxBatchCodeLength {
		return nil, shared.NewDomainError(CodeInvalidInput, fmt.Sprintf("Line %d: batch code cannot exceed %d characters", lineNo, MaxBatchCodeLength))
	}

	line := &LineItem{
		ID:        uuid.New(),
		EntryID:   entryID,
		LineNo:    lineNo,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		UnitPrice: decimal.Zero,
		BatchCode: batchCode,
	}

	if action == ActionImport {
		if in.ExpiryDate == nil || in.ExpiryDate.IsZero() {
			return nil, shared.NewDomainError(CodeInvalidInput, fmt.Sprintf("Line %d: expiry date is required for import", lineNo))
		}
		if in.UnitPrice.IsNegative() {
			return nil, shared.NewDomainError(CodeInvalidInput, fmt.Sprintf("Line %d: unit price cannot be negative", lineNo))
		}
		expiry := in.ExpiryDate.UTC()
		line.ExpiryDate = &expiry
		line.UnitPrice = in.UnitPrice
	}

	return line, nil
}

// HasBatchCode returns true when the line names a specific batch
func (l LineItem) HasBatchCode() bool {
	return l.BatchCode != ""
}
