package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	appledger "github.com/pcshop/backend/internal/application/ledger"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/pcshop/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sqliteEnv struct {
	db       *gorm.DB
	catalog  *persistence.GormProductCatalog
	batches  *persistence.GormBatchRepository
	services *appledger.Services
}

func newSQLiteEnv(t *testing.T) *sqliteEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, persistence.AutoMigrate(db))

	catalog := persistence.NewGormProductCatalog(db)
	batches := persistence.NewGormBatchRepository(db)
	services := appledger.NewServices(appledger.Dependencies{
		EntryRepo:    persistence.NewGormLedgerEntryRepository(db),
		BatchRepo:    batches,
		MovementRepo: persistence.NewGormMovementRepository(db),
		Products:     catalog,
		Scope:        persistence.NewGormTransactionScope(db),
		Logger:       zap.NewNop(),
	})
	return &sqliteEnv{db: db, catalog: catalog, batches: batches, services: services}
}

func (e *sqliteEnv) product(t *testing.T, name string) uuid.UUID {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), name)
	require.NoError(t, err)
	return p.ID
}

func (e *sqliteEnv) stock(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	p, err := e.catalog.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.CurrentStock
}

func (e *sqliteEnv) importStock(t *testing.T, productID uuid.UUID, qty int64, expiry time.Time) *appledger.LedgerEntryResponse {
	t.Helper()
	ctx := context.Background()
	created, err := e.services.Workflow.Create(ctx, appledger.CreateEntryInput{
		Action:      ledger.ActionImport,
		Lines:       []ledger.LineInput{{ProductID: productID, Quantity: decimal.NewFromInt(qty), ExpiryDate: &expiry, UnitPrice: decimal.NewFromInt(4)}},
		RequestedBy: uuid.New(),
	})
	require.NoError(t, err)
	approved, err := e.services.Workflow.Review(ctx, created.ID, appledger.ReviewInput{Approved: true})
	require.NoError(t, err)
	return approved
}

func days(n int) time.Time {
	return time.Now().UTC().Truncate(time.Second).AddDate(0, 0, n)
}

func requireEqualDec(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s", want, got)
}

func TestSQLite_ImportThenFIFOExport(t *testing.T) {
	env := newSQLiteEnv(t)
	ctx := context.Background()
	productID := env.product(t, "Kem dưỡng ẩm")

	approved := env.importStock(t, productID, 100, days(10))
	assert.Equal(t, string(ledger.StatusCompleted), approved.Status)
	require.Len(t, approved.Lines, 1)
	assert.Regexp(t, `^KEMD-\d{8}-001$`, approved.Lines[0].BatchCode)
	requireEqualDec(t, 100, env.stock(t, productID))

	export, err := env.services.Workflow.Create(ctx, appledger.CreateEntryInput{
		Action:      ledger.ActionExport,
		Lines:       []ledger.LineInput{{ProductID: productID, Quantity: decimal.NewFromInt(30)}},
		RequestedBy: uuid.New(),
	})
	require.NoError(t, err)
	_, err = env.services.Workflow.Review(ctx, export.ID, appledger.ReviewInput{Approved: true})
	require.NoError(t, err)

	report, err := env.services.Batches.GetBatchesForProduct(ctx, productID, false)
	require.NoError(t, err)
	require.Len(t, report.Batches, 1)
	requireEqualDec(t, 70, report.Batches[0].RemainingStock)
	requireEqualDec(t, 70, report.TotalStock)
	requireEqualDec(t, 70, env.stock(t, productID))

	movements, err := env.services.Batches.ListBatchMovements(ctx, report.Batches[0].ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, string(ledger.MovementImport), movements[0].Kind)
	assert.Equal(t, string(ledger.MovementExport), movements[1].Kind)
	requireEqualDec(t, -30, movements[1].Quantity)
	requireEqualDec(t, 70, movements[1].BalanceAfter)
}

func TestSQLite_FailingSecondLineRollsBackFirst(t *testing.T) {
	env := newSQLiteEnv(t)
	ctx := context.Background()
	plenty := env.product(t, "Shampoo")
	scarce := env.product(t, "Conditioner")

	env.importStock(t, plenty, 50, days(20))
	env.importStock(t, scarce, 2, days(20))

	export, err := env.services.Workflow.Create(ctx, appledger.CreateEntryInput{
		Action: ledger.ActionExport,
		Lines: []ledger.LineInput{
			{ProductID: plenty, Quantity: decimal.NewFromInt(10)},
			{ProductID: scarce, Quantity: decimal.NewFromInt(5)},
		},
		RequestedBy: uuid.New(),
	})
	require.NoError(t, err)

	_, err = env.services.Workflow.Review(ctx, export.ID, appledger.ReviewInput{Approved: true})
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, ledger.CodeInsufficientStock))

	entry, err := env.services.Workflow.GetEntry(ctx, export.ID)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.StatusPending), entry.Status)

	requireEqualDec(t, 50, env.stock(t, plenty))
	requireEqualDec(t, 2, env.stock(t, scarce))
	sum, err := env.batches.SumRemaining(ctx, plenty)
	require.NoError(t, err)
	requireEqualDec(t, 50, sum)

	t.Run("entry can still be denied afterwards", func(t *testing.T) {
		denied, err := env.services.Workflow.Review(ctx, export.ID, appledger.ReviewInput{Approved: false, Reason: "not enough conditioner"})
		require.NoError(t, err)
		assert.Equal(t, string(ledger.StatusDenied), denied.Status)

		_, err = env.services.Workflow.Review(ctx, export.ID, appledger.ReviewInput{Approved: true})
		assert.True(t, shared.HasCode(err, ledger.CodeAlreadyProcessed))
	})
}

func TestSQLite_DuplicateSuppliedBatchCodeRollsBack(t *testing.T) {
	env := newSQLiteEnv(t)
	ctx := context.Background()
	productID := env.product(t, "Toner")
	expiry := days(15)

	create := func() *appledger.LedgerEntryResponse {
		entry, err := env.services.Workflow.Create(ctx, appledger.CreateEntryInput{
			Action:      ledger.ActionImport,
			Lines:       []ledger.LineInput{{ProductID: productID, Quantity: decimal.NewFromInt(5), ExpiryDate: &expiry, BatchCode: "TONE-LOT-A"}},
			RequestedBy: uuid.New(),
		})
		require.NoError(t, err)
		return entry
	}

	first := create()
	_, err := env.services.Workflow.Review(ctx, first.ID, appledger.ReviewInput{Approved: true})
	require.NoError(t, err)

	second := create()
	_, err = env.services.Workflow.Review(ctx, second.ID, appledger.ReviewInput{Approved: true})
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, ledger.CodeAlreadyExists))

	entry, err := env.services.Workflow.GetEntry(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, string(ledger.StatusPending), entry.Status)
	requireEqualDec(t, 5, env.stock(t, productID))
}

func TestSQLite_ExpirySweep(t *testing.T) {
	env := newSQLiteEnv(t)
	ctx := context.Background()
	productID := env.product(t, "Yogurt")

	// batches dated in the past relative to the sweep date: expiring on day 1 and day 5
	base := days(-10)
	env.importStock(t, productID, 5, base.AddDate(0, 0, 1))
	env.importStock(t, productID, 20, base.AddDate(0, 0, 5))
	requireEqualDec(t, 25, env.stock(t, productID))

	checkDate := base.AddDate(0, 0, 3)
	expired, err := env.services.Sweeper.ListExpired(ctx, checkDate)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, 2, expired[0].DaysPastExpiry)
	assert.Equal(t, "Yogurt", expired[0].ProductName)

	result, err := env.services.Sweeper.Sweep(ctx, checkDate)
	require.NoError(t, err)
	require.Len(t, result.ProcessedItems, 1)
	assert.Equal(t, 1, result.TotalExpiredItems)
	requireEqualDec(t, 5, result.TotalQuantityRemoved)
	item := result.ProcessedItems[0]
	requireEqualDec(t, 25, item.StockBefore)
	requireEqualDec(t, 20, item.StockAfter)
	assert.True(t, item.UnderRemoved.IsZero())
	assert.Empty(t, result.Errors)
	requireEqualDec(t, 20, env.stock(t, productID))

	again, err := env.services.Sweeper.Sweep(ctx, checkDate)
	require.NoError(t, err)
	assert.Empty(t, again.ProcessedItems)

	manual := env.services.Sweeper.TriggerManual(ctx, &checkDate)
	assert.True(t, manual.Success)
	assert.Equal(t, "Manual processing completed: 0 expired items found, 0 units removed from 0 products", manual.Message)
}

func TestSQLite_AdjustBatchStock(t *testing.T) {
	env := newSQLiteEnv(t)
	ctx := context.Background()
	productID := env.product(t, "Sunscreen")
	env.importStock(t, productID, 10, days(30))

	report, err := env.services.Batches.GetBatchesForProduct(ctx, productID, false)
	require.NoError(t, err)
	batchID := report.Batches[0].ID

	adjusted, err := env.services.Batches.AdjustBatchStock(ctx, batchID, decimal.NewFromInt(-4), " broken bottles ")
	require.NoError(t, err)
	requireEqualDec(t, 6, adjusted.RemainingStock)
	requireEqualDec(t, 6, env.stock(t, productID))

	_, err = env.services.Batches.AdjustBatchStock(ctx, batchID, decimal.NewFromInt(5), "")
	assert.True(t, shared.HasCode(err, ledger.CodeInvalidQuantity))
	requireEqualDec(t, 6, env.stock(t, productID))

	movements, err := env.services.Batches.ListBatchMovements(ctx, batchID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, "broken bottles", movements[1].Note)
}

func TestSQLite_ConcurrentReduceFIFO(t *testing.T) {
	env := newSQLiteEnv(t)
	ctx := context.Background()
	productID := env.product(t, "Cleanser")
	env.importStock(t, productID, 30, days(5))
	env.importStock(t, productID, 30, days(9))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reduced = decimal.Zero
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.services.Allocator.ReduceFIFO(ctx, productID, decimal.NewFromInt(4))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			reduced = reduced.Add(res.TotalReduced)
			mu.Unlock()
		}()
	}
	wg.Wait()

	requireEqualDec(t, 60, reduced)
	requireEqualDec(t, 0, env.stock(t, productID))

	all, err := env.batches.FindByProduct(ctx, productID, true)
	require.NoError(t, err)
	for _, b := range all {
		assert.False(t, b.RemainingStock.IsNegative())
	}
}
