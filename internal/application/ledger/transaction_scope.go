package ledger

import (
	"context"

	"github.com/pcshop/backend/internal/domain/ledger"
)

// TransactionScope provides transactional access to ledger repositories.
// All repository operations performed inside fn belong to one database
// transaction and are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories within a transaction.
//
// Reads made through a transaction-scoped repository lock the rows they
// return (SELECT ... FOR UPDATE on databases that support it):
//   - Products().GetProduct locks the product row. It is always the first
//     read for a product so concurrent writers queue on the same row.
//   - BatchRepo().FindAvailableByProduct and FindExpiredByProduct lock the batches they return.
type TransactionalRepositories interface {
	// EntryRepo returns the ledger entry repository scoped to the current transaction
	EntryRepo() ledger.EntryRepository
	// BatchRepo returns the batch repository scoped to the current transaction
	BatchRepo() ledger.BatchRepository
	// MovementRepo returns the batch movement repository scoped to the current transaction
	MovementRepo() ledger.MovementRepository
	// Products returns the product catalog scoped to the current transaction
	Products() ledger.ProductCatalog
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	entryRepo    ledger.EntryRepository
	batchRepo    ledger.BatchRepository
	movementRepo ledger.MovementRepository
	products     ledger.ProductCatalog
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	entryRepo ledger.EntryRepository,
	batchRepo ledger.BatchRepository,
	movementRepo ledger.MovementRepository,
	products ledger.ProductCatalog,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		entryRepo:    entryRepo,
		batchRepo:    batchRepo,
		movementRepo: movementRepo,
		products:     products,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// EntryRepo returns the ledger entry repository.
func (s *NoOpTransactionScope) EntryRepo() ledger.EntryRepository {
	return s.entryRepo
}

// BatchRepo returns the batch repository.
func (s *NoOpTransactionScope) BatchRepo() ledger.BatchRepository {
	return s.batchRepo
}

// MovementRepo returns the batch movement repository.
func (s *NoOpTransactionScope) MovementRepo() ledger.MovementRepository {
	return s.movementRepo
}

// Products returns the product catalog.
func (s *NoOpTransactionScope) Products() ledger.ProductCatalog {
	return s.products
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
