package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/ledger"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	store *memoryStore
	svc   *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemoryStore()
	scope := store.scope()
	svc := NewServices(Dependencies{
		EntryRepo:    scope.EntryRepo(),
		BatchRepo:    scope.BatchRepo(),
		MovementRepo: scope.MovementRepo(),
		Products:     scope.Products(),
		Scope:        scope,
		Logger:       zap.NewNop(),
	})
	return &testEnv{store: store, svc: svc}
}

func qty(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func daysFromNow(days int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, days)
	return &t
}

// importAndApprove creates and approves a single-line import
func (e *testEnv) importAndApprove(t *testing.T, productID uuid.UUID, quantity int64, expiry *time.Time, code string) *LedgerEntryResponse {
	t.Helper()
	ctx := context.Background()
	entry, err := e.svc.Workflow.Create(ctx, CreateEntryInput{
		Action: ledger.ActionImport,
		Lines: []ledger.LineInput{{
			ProductID:  productID,
			Quantity:   qty(quantity),
			ExpiryDate: expiry,
			UnitPrice:  decimal.NewFromFloat(2.5),
			BatchCode:  code,
		}},
		RequestedBy: uuid.New(),
	})
	require.NoError(t, err)
	reviewed, err := e.svc.Workflow.Review(ctx, entry.ID, ReviewInput{Approved: true})
	require.NoError(t, err)
	return reviewed
}

// MockEventPublisher is a mock implementation of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockMetricsRecorder is a mock implementation of MetricsRecorder
type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordEntryCreated(ctx context.Context, action string) {
	m.Called(ctx, action)
}

func (m *MockMetricsRecorder) RecordEntryReviewed(ctx context.Context, action, status string) {
	m.Called(ctx, action, status)
}

func (m *MockMetricsRecorder) RecordExpiredStockRemoved(ctx context.Context, removed, underRemoved float64) {
	m.Called(ctx, removed, underRemoved)
}

// MockBatchRepository wraps a real repository and lets tests inject failures
type MockBatchRepository struct {
	mock.Mock
	ledger.BatchRepository
}

func (m *MockBatchRepository) FindExpired(ctx context.Context, asOf time.Time) ([]ledger.Batch, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Batch), args.Error(1)
}
