package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection to ":memory:" would otherwise get its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func dayOffset(days int) time.Time {
	return time.Now().UTC().Truncate(time.Second).AddDate(0, 0, days)
}

// seedProduct creates a product row
func seedProduct(t *testing.T, db *gorm.DB, name string) *ledger.Product {
	t.Helper()
	p, err := NewGormProductCatalog(db).CreateProduct(context.Background(), name)
	require.NoError(t, err)
	return p
}

// seedImportEntry stores an import entry with one line per quantity and
// the given status
func seedImportEntry(t *testing.T, db *gorm.DB, productID uuid.UUID, status ledger.Status, expiry time.Time, quantities ...int64) *ledger.LedgerEntry {
	t.Helper()
	lines := make([]ledger.LineInput, len(quantities))
	for i, q := range quantities {
		lines[i] = ledger.LineInput{ProductID: productID, Quantity: dec(q), ExpiryDate: &expiry, UnitPrice: dec(3)}
	}
	entry, err := ledger.NewLedgerEntry(ledger.ActionImport, lines, uuid.New())
	require.NoError(t, err)
	entry.Status = status
	require.NoError(t, NewGormLedgerEntryRepository(db).Create(context.Background(), entry))
	return entry
}

// seedBatch stores a batch for the entry's first line
func seedBatch(t *testing.T, db *gorm.DB, entry *ledger.LedgerEntry, code string, expiry time.Time, qty int64) *ledger.Batch {
	t.Helper()
	line := entry.Lines[0]
	line.Quantity = dec(qty)
	line.ExpiryDate = &expiry
	batch, err := ledger.NewBatch(entry.ID, line, code)
	require.NoError(t, err)
	require.NoError(t, NewGormBatchRepository(db).Create(context.Background(), batch))
	return batch
}
