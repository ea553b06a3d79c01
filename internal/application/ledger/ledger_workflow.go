package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/pcshop/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// LedgerWorkflow records import/export requests and turns approved ones
// into batch movements. Pending entries have no stock effect.
type LedgerWorkflow struct {
	entryRepo      ledger.EntryRepository
	products       ledger.ProductCatalog
	scope          TransactionScope
	locker         *ProductLocker
	generator      *BatchNumberGenerator
	allocator      *FIFOAllocator
	sync           *StockSynchronizer
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewLedgerWorkflow creates a new LedgerWorkflow
func NewLedgerWorkflow(
	entryRepo ledger.EntryRepository,
	products ledger.ProductCatalog,
	scope TransactionScope,
	locker *ProductLocker,
	generator *BatchNumberGenerator,
	allocator *FIFOAllocator,
	sync *StockSynchronizer,
	logger *zap.Logger,
) *LedgerWorkflow {
	return &LedgerWorkflow{
		entryRepo: entryRepo,
		products:  products,
		scope:     scope,
		locker:    locker,
		generator: generator,
		allocator: allocator,
		sync:      sync,
		logger:    logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (w *LedgerWorkflow) SetEventPublisher(publisher shared.EventPublisher) {
	w.eventPublisher = publisher
}

// Create validates and stores a pending ledger entry
func (w *LedgerWorkflow) Create(ctx context.Context, input CreateEntryInput) (*LedgerEntryResponse, error) {
	entry, err := ledger.NewLedgerEntry(input.Action, input.Lines, input.RequestedBy)
	if err != nil {
		return nil, err
	}

	for _, productID := range entry.ProductIDs() {
		if _, err := w.products.GetProduct(ctx, productID); err != nil {
			return nil, err
		}
	}

	if err := w.entryRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}

	w.publishEvents(ctx, entry)

	w.logger.Info("Ledger entry created",
		zap.String("entry_id", entry.ID.String()),
		zap.String("action", entry.Action.String()),
		zap.String("requested_by", entry.RequestedBy.String()),
		zap.Int("lines", len(entry.Lines)),
	)

	response := ToLedgerEntryResponse(entry)
	return &response, nil
}

// Review approves or denies a pending entry. The status transition and every
// batch effect of an approval are applied in one transaction; on any error
// the entry stays pending and no stock moves.
func (w *LedgerWorkflow) Review(ctx context.Context, id uuid.UUID, input ReviewInput) (*LedgerEntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "review",
		telemetry.SpanAttrEntryID, id.String(),
		"approved", input.Approved,
	)
	defer span.End()

	entry, err := w.entryRepo.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrAction, entry.Action.String())
	if !entry.IsPending() {
		return nil, ledger.NewAlreadyProcessedError(entry.Status)
	}
	if !input.Approved && strings.TrimSpace(input.Reason) == "" {
		return nil, ledger.ErrMissingReason
	}

	if input.Approved {
		unlock := w.locker.Lock(entry.ProductIDs()...)
		defer unlock()
	}

	var reviewed *ledger.LedgerEntry
	err = w.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		current, err := repos.EntryRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}

		expectedVersion := current.GetVersion()
		if input.Approved {
			err = current.Complete()
		} else {
			err = current.Deny(input.Reason)
		}
		if err != nil {
			return err
		}

		if err := repos.EntryRepo().UpdateStatus(ctx, current, expectedVersion); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				return shared.NewDomainError(ledger.CodeAlreadyProcessed, "Ledger entry has already been reviewed")
			}
			return fmt.Errorf("update ledger entry status: %w", err)
		}

		if input.Approved {
			if err := w.applyApproval(ctx, repos, current); err != nil {
				return err
			}
		}

		reviewed = current
		return nil
	})
	if err != nil {
		w.logger.Warn("Ledger entry review failed",
			zap.String("entry_id", id.String()),
			zap.Bool("approved", input.Approved),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		return nil, err
	}

	w.publishEvents(ctx, reviewed)

	w.logger.Info("Ledger entry reviewed",
		zap.String("entry_id", reviewed.ID.String()),
		zap.String("action", reviewed.Action.String()),
		zap.String("status", reviewed.Status.String()),
	)

	response := ToLedgerEntryResponse(reviewed)
	return &response, nil
}

// applyApproval locks the product rows, applies every line and re-syncs each product
func (w *LedgerWorkflow) applyApproval(ctx context.Context, repos TransactionalRepositories, entry *ledger.LedgerEntry) error {
	productIDs := sortedUnique(entry.ProductIDs())
	for _, productID := range productIDs {
		if _, err := repos.Products().GetProduct(ctx, productID); err != nil {
			return err
		}
	}

	for i := range entry.Lines {
		line := &entry.Lines[i]
		var err error
		switch entry.Action {
		case ledger.ActionImport:
			err = w.applyImportLine(ctx, repos, entry, line)
		case ledger.ActionExport:
			err = w.applyExportLine(ctx, repos, entry, line)
		}
		if err != nil {
			return err
		}
	}

	for _, productID := range productIDs {
		if _, err := w.sync.syncIn(ctx, repos, productID); err != nil {
			return err
		}
	}
	return nil
}

func (w *LedgerWorkflow) applyImportLine(ctx context.Context, repos TransactionalRepositories, entry *ledger.LedgerEntry, line *ledger.LineItem) error {
	code := line.BatchCode
	if code == "" {
		generated, err := w.generator.generateIn(ctx, repos, line.ProductID)
		if err != nil {
			return err
		}
		code = generated
		if err := repos.EntryRepo().SetLineBatchCode(ctx, line.ID, code); err != nil {
			return fmt.Errorf("record generated batch code: %w", err)
		}
		line.BatchCode = code
	} else {
		exists, err := repos.BatchRepo().ExistsCode(ctx, line.ProductID, code)
		if err != nil {
			return fmt.Errorf("check batch code: %w", err)
		}
		if exists {
			return ledger.NewDuplicateBatchCodeError(line.ProductID, code)
		}
	}

	batch, err := ledger.NewBatch(entry.ID, *line, code)
	if err != nil {
		return err
	}
	if err := repos.BatchRepo().Create(ctx, batch); err != nil {
		return err
	}

	movement := ledger.NewBatchMovement(batch, ledger.MovementImport, batch.ImportedQuantity, batch.RemainingStock, "import approved").
		WithEntry(entry.ID)
	if err := repos.MovementRepo().Create(ctx, movement); err != nil {
		return fmt.Errorf("record movement: %w", err)
	}

	w.logger.Debug("Batch created",
		zap.String("entry_id", entry.ID.String()),
		zap.String("product_id", line.ProductID.String()),
		zap.String("batch_code", code),
		zap.String("quantity", batch.ImportedQuantity.String()),
	)
	return nil
}

func (w *LedgerWorkflow) applyExportLine(ctx context.Context, repos TransactionalRepositories, entry *ledger.LedgerEntry, line *ledger.LineItem) error {
	source := movementSource{kind: ledger.MovementExport, entryID: entry.ID, note: "export approved"}

	if line.HasBatchCode() {
		result, err := w.allocator.reduceFromBatchIn(ctx, repos, line.ProductID, line.BatchCode, line.Quantity, source)
		if err != nil {
			return err
		}
		if result.Shortfall.IsPositive() {
			return ledger.NewInsufficientStockError(line.ProductID, result.Shortfall)
		}
		return nil
	}

	result, err := w.allocator.reduceFIFOIn(ctx, repos, line.ProductID, line.Quantity, source)
	if err != nil {
		return err
	}
	if result.Shortfall.IsPositive() {
		return ledger.NewInsufficientStockError(line.ProductID, result.Shortfall)
	}
	return nil
}

// GetEntry returns one entry with its lines
func (w *LedgerWorkflow) GetEntry(ctx context.Context, id uuid.UUID) (*LedgerEntryResponse, error) {
	entry, err := w.entryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToLedgerEntryResponse(entry)
	return &response, nil
}

// ListEntries returns entries matching the query, newest first
func (w *LedgerWorkflow) ListEntries(ctx context.Context, query ListEntriesQuery) (*EntryListResponse, error) {
	filter := ledger.EntryFilter{
		ProductID:   query.ProductID,
		Action:      query.Action,
		RequestedBy: query.RequestedBy,
		BatchCode:   strings.TrimSpace(query.BatchCode),
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if query.Status != "" {
		filter.Statuses = []ledger.Status{query.Status}
	}
	return w.list(ctx, filter)
}

// ListPending returns entries awaiting review
func (w *LedgerWorkflow) ListPending(ctx context.Context, page, pageSize int) (*EntryListResponse, error) {
	return w.list(ctx, ledger.EntryFilter{
		Statuses: []ledger.Status{ledger.StatusPending},
		Page:     page,
		PageSize: pageSize,
	})
}

// ListByProduct returns reviewed entries that touch the product
func (w *LedgerWorkflow) ListByProduct(ctx context.Context, productID uuid.UUID, page, pageSize int) (*EntryListResponse, error) {
	return w.list(ctx, ledger.EntryFilter{
		ProductID: &productID,
		Statuses:  []ledger.Status{ledger.StatusCompleted, ledger.StatusDenied},
		Page:      page,
		PageSize:  pageSize,
	})
}

// ListByUser returns entries requested by the user
func (w *LedgerWorkflow) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) (*EntryListResponse, error) {
	return w.list(ctx, ledger.EntryFilter{
		RequestedBy: &userID,
		Page:        page,
		PageSize:    pageSize,
	})
}

// GetLineItems returns the lines of an entry
func (w *LedgerWorkflow) GetLineItems(ctx context.Context, entryID uuid.UUID) ([]LineItemResponse, error) {
	if _, err := w.entryRepo.FindByID(ctx, entryID); err != nil {
		return nil, err
	}
	lines, err := w.entryRepo.FindLines(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return ToLineItemResponses(lines), nil
}

func (w *LedgerWorkflow) list(ctx context.Context, filter ledger.EntryFilter) (*EntryListResponse, error) {
	entries, total, err := w.entryRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]LedgerEntryResponse, len(entries))
	for i := range entries {
		responses[i] = ToLedgerEntryResponse(&entries[i])
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	return &EntryListResponse{
		Entries:  responses,
		Total:    total,
		Page:     page,
		PageSize: filter.Limit(),
	}, nil
}

func (w *LedgerWorkflow) publishEvents(ctx context.Context, entry *ledger.LedgerEntry) {
	events := entry.GetDomainEvents()
	entry.ClearDomainEvents()
	if w.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := w.eventPublisher.Publish(ctx, events...); err != nil {
		w.logger.Warn("Failed to publish ledger events",
			zap.String("entry_id", entry.ID.String()),
			zap.Error(err),
		)
	}
}
