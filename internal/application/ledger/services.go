package ledger

import (
	"time"

	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Dependencies are the collaborators shared by the ledger services
type Dependencies struct {
	EntryRepo         ledger.EntryRepository
	BatchRepo         ledger.BatchRepository
	MovementRepo      ledger.MovementRepository
	Products          ledger.ProductCatalog
	Scope             TransactionScope
	BatchCodeLocation *time.Location
	Logger            *zap.Logger
}

// Services bundles the ledger services around one ProductLocker so every
// stock mutation in the process shares the same per-product serialization.
type Services struct {
	Locker       *ProductLocker
	Synchronizer *StockSynchronizer
	Generator    *BatchNumberGenerator
	Allocator    *FIFOAllocator
	Workflow     *LedgerWorkflow
	Sweeper      *ExpirySweeper
	Batches      *BatchService
}

// NewServices wires the ledger services
func NewServices(deps Dependencies) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	locker := NewProductLocker()
	synchronizer := NewStockSynchronizer(deps.Scope, locker, logger.Named("stock_sync"))
	generator := NewBatchNumberGenerator(deps.Scope, deps.BatchCodeLocation)
	allocator := NewFIFOAllocator(deps.Scope, locker, synchronizer, logger.Named("fifo"))

	return &Services{
		Locker:       locker,
		Synchronizer: synchronizer,
		Generator:    generator,
		Allocator:    allocator,
		Workflow: NewLedgerWorkflow(deps.EntryRepo, deps.Products, deps.Scope, locker,
			generator, allocator, synchronizer, logger.Named("workflow")),
		Sweeper: NewExpirySweeper(deps.BatchRepo, deps.Products, deps.Scope, locker,
			allocator, synchronizer, logger.Named("expiry_sweep")),
		Batches: NewBatchService(deps.BatchRepo, deps.MovementRepo, deps.Products, deps.Scope,
			locker, synchronizer, logger.Named("batches")),
	}
}

// SetEventPublisher attaches the publisher to every service that raises events
func (s *Services) SetEventPublisher(publisher shared.EventPublisher) {
	s.Workflow.SetEventPublisher(publisher)
	s.Sweeper.SetEventPublisher(publisher)
}
