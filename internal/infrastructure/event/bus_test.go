package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pcshop/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "LedgerEntry", uuid.New())}
}

type testHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []string
	err        error
	panicMsg   string
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event.EventType())
	return h.err
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	created := &testHandler{eventTypes: []string{"LedgerEntryCreated"}}
	wildcard := &testHandler{}
	bus.Subscribe(created)
	bus.Subscribe(wildcard)

	require.NoError(t, bus.Start(context.Background()))
	assert.True(t, bus.IsRunning())

	err := bus.Publish(context.Background(),
		newTestEvent("LedgerEntryCreated"),
		newTestEvent("LedgerEntryApproved"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"LedgerEntryCreated"}, created.handled)
	assert.Equal(t, []string{"LedgerEntryCreated", "LedgerEntryApproved"}, wildcard.handled)

	published, failed := bus.Stats()
	assert.Equal(t, int64(2), published)
	assert.Zero(t, failed)

	require.NoError(t, bus.Stop(context.Background()))
	assert.False(t, bus.IsRunning())
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	failing := &testHandler{eventTypes: []string{"X"}, err: errors.New("metrics down")}
	panicking := &testHandler{eventTypes: []string{"X"}, panicMsg: "boom"}
	healthy := &testHandler{eventTypes: []string{"X"}}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("X")))

	assert.Equal(t, []string{"X"}, healthy.handled)
	_, failed := bus.Stats()
	assert.Equal(t, int64(2), failed)
	assert.Len(t, recorded.FilterMessage("handler failed to process event").All(), 2)
}

func TestInMemoryEventBus_SubscribeExplicitTypesAndUnsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &testHandler{eventTypes: []string{"ignored"}}
	bus.Subscribe(h, "A")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A"), newTestEvent("ignored")))
	assert.Equal(t, []string{"A"}, h.handled)

	bus.Unsubscribe(h)
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A")))
	assert.Len(t, h.handled, 1)
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	a := &testHandler{}
	b := &testHandler{}

	r.Register(a, "A", "B")
	r.Register(a, "A")
	r.Register(b)

	assert.Len(t, r.GetHandlers("A"), 2)
	assert.Equal(t, []shared.EventHandler{a, b}, r.GetHandlers("B"))
	assert.Equal(t, []shared.EventHandler{b}, r.GetHandlers("C"))
	assert.Len(t, r.GetAllHandlers(), 2)

	r.Unregister(a)
	assert.Equal(t, []shared.EventHandler{b}, r.GetHandlers("A"))
	assert.Len(t, r.GetAllHandlers(), 1)
}

func TestAuditLogHandler(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewAuditLogHandler(zap.New(core)))

	ev := newTestEvent("LedgerEntryDenied")
	require.NoError(t, bus.Publish(context.Background(), ev))

	entries := recorded.FilterMessage("domain event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "LedgerEntryDenied", fields["event_type"])
	assert.Equal(t, ev.AggregateID().String(), fields["aggregate_id"])
	assert.Equal(t, "audit", entries[0].LoggerName)
}
