package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchReduction records what one batch contributed to a reduction
type BatchReduction struct {
	BatchID          uuid.UUID       `json:"batch_id"`
	BatchCode        string          `json:"batch_code"`
	ExpiryDate       time.Time       `json:"expiry_date"`
	Reduced          decimal.Decimal `json:"reduced"`
	RemainingInBatch decimal.Decimal `json:"remaining_in_batch"`
	FullyConsumed    bool            `json:"fully_consumed"`
}

// AllocationPlan is the outcome of planning a FIFO reduction
type AllocationPlan struct {
	Reductions   []BatchReduction
	TotalReduced decimal.Decimal
	Shortfall    decimal.Decimal
}

// IsFullyFulfilled returns true when nothing was left unallocated
func (p *AllocationPlan) IsFullyFulfilled() bool {
	return p.Shortfall.IsZero()
}

// SortFIFO orders batches by ascending expiry date, then creation time, then ID
func SortFIFO(batches []Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// PlanFIFO walks batches in first-expiring-first-out order taking
// min(remaining, still needed) from each until the quantity is covered or
// supply runs out. Batches are mutated in place; only batches that
// contributed appear in the plan. Shortfall is never an error.
func PlanFIFO(batches []Batch, quantity decimal.Decimal) *AllocationPlan {
	plan := &AllocationPlan{
		Reductions:   make([]BatchReduction, 0),
		TotalReduced: decimal.Zero,
		Shortfall:    decimal.Max(quantity, decimal.Zero),
	}
	if !quantity.IsPositive() {
		return plan
	}

	SortFIFO(batches)

	needed := quantity
	for i := range batches {
		if !needed.IsPositive() {
			break
		}
		batch := &batches[i]
		if !batch.HasStock() {
			continue
		}
		taken := batch.Take(needed)
		needed = needed.Sub(taken)
		plan.TotalReduced = plan.TotalReduced.Add(taken)
		plan.Reductions = append(plan.Reductions, BatchReduction{
			BatchID:          batch.ID,
			BatchCode:        batch.BatchCode,
			ExpiryDate:       batch.ExpiryDate,
			Reduced:          taken,
			RemainingInBatch: batch.RemainingStock,
			FullyConsumed:    batch.RemainingStock.IsZero(),
		})
	}

	plan.Shortfall = needed
	return plan
}

// SumRemaining returns the total remaining stock across batches
func SumRemaining(batches []Batch) decimal.Decimal {
	total := decimal.Zero
	for _, b := range batches {
		total = total.Add(b.RemainingStock)
	}
	return total
}
