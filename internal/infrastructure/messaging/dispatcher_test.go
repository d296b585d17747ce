package messaging

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

func testDispatcher(t *testing.T) (*Dispatcher, *InMemoryEventBus) {
	t.Helper()

	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	bus := NewInMemoryEventBus(cfg)
	t.Cleanup(func() { _ = bus.Close() })

	dispatcher := NewDispatcher(DispatcherConfig{
		EventBus: bus,
		RetryConfig: RetryConfig{
			MaxRetries:        3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		EnableDeadLetterQueue: true,
		DeadLetterQueueSize:   10,
	})
	require.NoError(t, dispatcher.Start())

	return dispatcher, bus
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func purchaseEvent() shared.Event {
	return shared.NewPurchaseRecordedEvent("order-1", 1, 150_000, shared.DefaultCurrency)
}

func TestDispatcher_RoutesToHandler(t *testing.T) {
	dispatcher, bus := testDispatcher(t)

	var calls atomic.Int32
	require.NoError(t, dispatcher.Register(shared.EventPurchaseRecorded, "counter", func(event shared.Event) error {
		calls.Add(1)
		return nil
	}))

	require.NoError(t, bus.Publish(purchaseEvent()))
	assert.Equal(t, int32(1), calls.Load())

	// Unrelated event types are ignored.
	require.NoError(t, bus.Publish(shared.NewPointsRefreshedEvent(1, 10)))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	dispatcher, bus := testDispatcher(t)

	var calls atomic.Int32
	require.NoError(t, dispatcher.Register(shared.EventPurchaseRecorded, "flaky", func(event shared.Event) error {
		if calls.Add(1) < 3 {
			return errors.New("transient failure")
		}
		return nil
	}))

	require.NoError(t, bus.Publish(purchaseEvent()))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 0, dispatcher.DeadLetterQueue().Size())
}

func TestDispatcher_DeadLetterAfterExhaustedRetries(t *testing.T) {
	dispatcher, _ := testDispatcher(t)

	permanent := errors.New("permanent failure")
	var calls atomic.Int32
	require.NoError(t, dispatcher.RegisterHandler(shared.EventPurchaseRecorded, HandlerRegistration{
		Name: "doomed",
		Handler: func(event shared.Event) error {
			calls.Add(1)
			return permanent
		},
		MaxRetries: 2,
	}))

	err := dispatcher.Dispatch(purchaseEvent())
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	dlq := dispatcher.DeadLetterQueue()
	require.Equal(t, 1, dlq.Size())

	entry, ok := dlq.Pop()
	require.True(t, ok)
	assert.Equal(t, "doomed", entry.HandlerName)
	assert.Equal(t, 3, entry.Attempts)
	assert.ErrorIs(t, entry.Error, permanent)
	assert.Equal(t, shared.EventPurchaseRecorded, entry.Event.EventType())

	assert.Equal(t, 0, dlq.Size())
}

func TestDispatcher_RecoveryMiddleware(t *testing.T) {
	dispatcher, _ := testDispatcher(t)
	dispatcher.Use(RecoveryMiddleware(discardLogger()))

	require.NoError(t, dispatcher.RegisterHandler(shared.EventPurchaseRecorded, HandlerRegistration{
		Name:       "panicky",
		Handler:    func(event shared.Event) error { panic("boom") },
		MaxRetries: 0,
	}))

	err := dispatcher.Dispatch(purchaseEvent())
	assert.Error(t, err)

	entries := dispatcher.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.ErrorIs(t, entries[0].Error, ErrHandlerPanic)
}

func TestDispatcher_MultipleHandlersAllRun(t *testing.T) {
	dispatcher, bus := testDispatcher(t)

	var first, second atomic.Int32
	require.NoError(t, dispatcher.Register(shared.EventPurchaseRecorded, "first", func(event shared.Event) error {
		first.Add(1)
		return nil
	}))
	require.NoError(t, dispatcher.Register(shared.EventPurchaseRecorded, "second", func(event shared.Event) error {
		second.Add(1)
		return nil
	}))

	require.NoError(t, bus.Publish(purchaseEvent()))
	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(1), second.Load())
}

func TestDispatcher_NilHandlerRejected(t *testing.T) {
	dispatcher, _ := testDispatcher(t)

	err := dispatcher.Register(shared.EventPurchaseRecorded, "nil", nil)
	assert.Error(t, err)
}

func TestDeadLetterQueue_EvictsOldestAtCapacity(t *testing.T) {
	q := NewDeadLetterQueue(2)

	q.Add(DeadLetterEntry{HandlerName: "a"})
	q.Add(DeadLetterEntry{HandlerName: "b"})
	q.Add(DeadLetterEntry{HandlerName: "c"})

	require.Equal(t, 2, q.Size())
	entries := q.Entries()
	assert.Equal(t, "b", entries[0].HandlerName)
	assert.Equal(t, "c", entries[1].HandlerName)
}
