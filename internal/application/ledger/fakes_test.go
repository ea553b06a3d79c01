package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// memoryStore is a thread-safe in-memory backing for every ledger repository
type memoryStore struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*ledger.Product
	entries   map[uuid.UUID]*ledger.LedgerEntry
	batches   map[uuid.UUID]*ledger.Batch
	movements []ledger.BatchMovement
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products: make(map[uuid.UUID]*ledger.Product),
		entries:  make(map[uuid.UUID]*ledger.LedgerEntry),
		batches:  make(map[uuid.UUID]*ledger.Batch),
	}
}

func (s *memoryStore) addProduct(name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.products[id] = &ledger.Product{ID: id, Name: name, CurrentStock: decimal.Zero}
	return id
}

func (s *memoryStore) stock(id uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].CurrentStock
}

func (s *memoryStore) setStock(id uuid.UUID, qty decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id].CurrentStock = qty
}

func (s *memoryStore) batch(id uuid.UUID) ledger.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.batches[id]
}

// seedBatch stores a batch owned by a completed import entry
func (s *memoryStore) seedBatch(productID uuid.UUID, code string, qty int64, expiry time.Time) *ledger.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &ledger.LedgerEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Action:            ledger.ActionImport,
		Status:            ledger.StatusCompleted,
	}
	s.entries[entry.ID] = entry
	b := &ledger.Batch{
		BaseEntity:       shared.NewBaseEntity(),
		LedgerEntryID:    entry.ID,
		ProductID:        productID,
		BatchCode:        code,
		ImportedQuantity: decimal.NewFromInt(qty),
		RemainingStock:   decimal.NewFromInt(qty),
		ExpiryDate:       expiry.UTC(),
		UnitPrice:        decimal.NewFromInt(1),
	}
	s.batches[b.ID] = b
	s.products[productID].CurrentStock = s.products[productID].CurrentStock.Add(b.RemainingStock)
	copied := *b
	return &copied
}

func (s *memoryStore) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(&memEntryRepo{s}, &memBatchRepo{s}, &memMovementRepo{s}, &memProducts{s})
}

func cloneEntry(e *ledger.LedgerEntry) *ledger.LedgerEntry {
	c := *e
	c.Lines = append([]ledger.LineItem(nil), e.Lines...)
	c.ClearDomainEvents()
	return &c
}

type memProducts struct{ s *memoryStore }

func (p *memProducts) GetProduct(_ context.Context, id uuid.UUID) (*ledger.Product, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	product, ok := p.s.products[id]
	if !ok {
		return nil, ledger.NewProductNotFoundError(id)
	}
	c := *product
	return &c, nil
}

func (p *memProducts) SetAggregateStock(_ context.Context, id uuid.UUID, qty decimal.Decimal) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	product, ok := p.s.products[id]
	if !ok {
		return ledger.NewProductNotFoundError(id)
	}
	product.CurrentStock = qty
	return nil
}

type memEntryRepo struct{ s *memoryStore }

func (r *memEntryRepo) Create(_ context.Context, entry *ledger.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.entries[entry.ID] = cloneEntry(entry)
	return nil
}

func (r *memEntryRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok {
		return nil, ledger.NewEntryNotFoundError(id)
	}
	return cloneEntry(e), nil
}

func (r *memEntryRepo) UpdateStatus(_ context.Context, entry *ledger.LedgerEntry, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.entries[entry.ID]
	if !ok || stored.Version != expectedVersion || stored.Status != ledger.StatusPending {
		return shared.ErrConcurrencyConflict
	}
	stored.Status = entry.Status
	stored.Reason = entry.Reason
	stored.ReviewedAt = entry.ReviewedAt
	stored.Version = entry.Version
	return nil
}

func (r *memEntryRepo) List(_ context.Context, filter ledger.EntryFilter) ([]ledger.LedgerEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	matched := make([]ledger.LedgerEntry, 0)
	for _, e := range r.s.entries {
		if !matchesFilter(e, filter) {
			continue
		}
		matched = append(matched, *cloneEntry(e))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit()
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func matchesFilter(e *ledger.LedgerEntry, f ledger.EntryFilter) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, st := range f.Statuses {
			ok = ok || e.Status == st
		}
		if !ok {
			return false
		}
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.RequestedBy != nil && e.RequestedBy != *f.RequestedBy {
		return false
	}
	if f.ProductID != nil || f.BatchCode != "" {
		found := false
		for _, l := range e.Lines {
			if f.ProductID != nil && l.ProductID != *f.ProductID {
				continue
			}
			if f.BatchCode != "" && !strings.Contains(strings.ToLower(l.BatchCode), strings.ToLower(f.BatchCode)) {
				continue
			}
			found = true
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *memEntryRepo) FindLines(_ context.Context, entryID uuid.UUID) ([]ledger.LineItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[entryID]
	if !ok {
		return nil, ledger.NewEntryNotFoundError(entryID)
	}
	return append([]ledger.LineItem(nil), e.Lines...), nil
}

func (r *memEntryRepo) SetLineBatchCode(_ context.Context, lineID uuid.UUID, batchCode string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entries {
		for i := range e.Lines {
			if e.Lines[i].ID == lineID {
				e.Lines[i].BatchCode = batchCode
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

type memBatchRepo struct{ s *memoryStore }

func (r *memBatchRepo) Create(_ context.Context, batch *ledger.Batch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.batches {
		if b.ProductID == batch.ProductID && b.BatchCode == batch.BatchCode {
			return ledger.NewDuplicateBatchCodeError(batch.ProductID, batch.BatchCode)
		}
	}
	c := *batch
	r.s.batches[batch.ID] = &c
	return nil
}

func (r *memBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*ledger.Batch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[id]
	if !ok {
		return nil, ledger.NewBatchIDNotFoundError(id)
	}
	c := *b
	return &c, nil
}

func (r *memBatchRepo) selectBatches(keep func(*ledger.Batch) bool) []ledger.Batch {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]ledger.Batch, 0)
	for _, b := range r.s.batches {
		if keep(b) {
			out = append(out, *b)
		}
	}
	ledger.SortFIFO(out)
	return out
}

func (r *memBatchRepo) FindAvailableByProduct(_ context.Context, productID uuid.UUID) ([]ledger.Batch, error) {
	return r.selectBatches(func(b *ledger.Batch) bool {
		return b.ProductID == productID && b.HasStock()
	}), nil
}

func (r *memBatchRepo) FindAvailableByCode(_ context.Context, productID uuid.UUID, batchCode string) (*ledger.Batch, error) {
	found := r.selectBatches(func(b *ledger.Batch) bool {
		return b.ProductID == productID && b.BatchCode == batchCode && b.HasStock()
	})
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (r *memBatchRepo) FindByProduct(_ context.Context, productID uuid.UUID, includeDepleted bool) ([]ledger.Batch, error) {
	return r.selectBatches(func(b *ledger.Batch) bool {
		return b.ProductID == productID && (includeDepleted || b.HasStock())
	}), nil
}

func (r *memBatchRepo) ExistsCode(_ context.Context, productID uuid.UUID, batchCode string) (bool, error) {
	return len(r.selectBatches(func(b *ledger.Batch) bool {
		return b.ProductID == productID && b.BatchCode == batchCode
	})) > 0, nil
}

func (r *memBatchRepo) CountCodesWithPrefix(_ context.Context, productID uuid.UUID, prefix string) (int64, error) {
	return int64(len(r.selectBatches(func(b *ledger.Batch) bool {
		return b.ProductID == productID && strings.HasPrefix(b.BatchCode, prefix)
	}))), nil
}

func (r *memBatchRepo) SumRemaining(_ context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	return ledger.SumRemaining(r.selectBatches(func(b *ledger.Batch) bool {
		return b.ProductID == productID
	})), nil
}

func (r *memBatchRepo) DecrementStock(_ context.Context, batchID uuid.UUID, qty decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[batchID]
	if !ok || b.RemainingStock.LessThan(qty) {
		return shared.ErrConcurrencyConflict
	}
	b.RemainingStock = b.RemainingStock.Sub(qty)
	return nil
}

func (r *memBatchRepo) AdjustStock(_ context.Context, batchID uuid.UUID, change decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[batchID]
	if !ok {
		return shared.ErrConcurrencyConflict
	}
	next := b.RemainingStock.Add(change)
	if next.IsNegative() || next.GreaterThan(b.ImportedQuantity) {
		return shared.ErrConcurrencyConflict
	}
	b.RemainingStock = next
	return nil
}

func (r *memBatchRepo) isExpiredImport(b *ledger.Batch, asOf time.Time) bool {
	e, ok := r.s.entries[b.LedgerEntryID]
	return ok && e.Status == ledger.StatusCompleted && e.Action == ledger.ActionImport &&
		b.HasStock() && b.ExpiryDate.Before(asOf)
}

func (r *memBatchRepo) FindExpired(_ context.Context, asOf time.Time) ([]ledger.Batch, error) {
	return r.selectBatches(func(b *ledger.Batch) bool { return r.isExpiredImport(b, asOf) }), nil
}

func (r *memBatchRepo) FindExpiredByProduct(_ context.Context, productID uuid.UUID, asOf time.Time) ([]ledger.Batch, error) {
	return r.selectBatches(func(b *ledger.Batch) bool {
		return b.ProductID == productID && r.isExpiredImport(b, asOf)
	}), nil
}

type memMovementRepo struct{ s *memoryStore }

func (r *memMovementRepo) Create(_ context.Context, m *ledger.BatchMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r *memMovementRepo) FindByBatch(_ context.Context, batchID uuid.UUID) ([]ledger.BatchMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]ledger.BatchMovement, 0)
	for _, m := range r.s.movements {
		if m.BatchID == batchID {
			out = append(out, m)
		}
	}
	return out, nil
}

var (
	_ ledger.EntryRepository    = (*memEntryRepo)(nil)
	_ ledger.BatchRepository    = (*memBatchRepo)(nil)
	_ ledger.MovementRepository = (*memMovementRepo)(nil)
	_ ledger.ProductCatalog     = (*memProducts)(nil)
)
