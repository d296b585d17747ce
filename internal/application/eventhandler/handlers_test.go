package eventhandler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikemart-ng/loyalty-hub/internal/application/cascade"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/memory"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/postgres"
)

// envelopeEvent mimics an event reconstructed from the Redis envelope:
// the concrete type is lost and only the payload map survives, with
// numbers decoded as float64.
type envelopeEvent struct {
	shared.BaseEvent
	payload map[string]interface{}
}

func (e envelopeEvent) Payload() map[string]interface{} { return e.payload }

func TestOnPurchaseRecorded_RunsCascade(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, postgres.SeedCatalog(ctx, store))

	purchase, err := loyalty.NewPurchase(loyalty.NewPurchaseParams{
		ID:     "order-1",
		UserID: 1,
		Amount: shared.FromMajor(500),
	})
	require.NoError(t, err)
	require.NoError(t, store.RecordPurchase(ctx, purchase))

	orchestrator := cascade.NewOrchestrator(store, nil, nil, nil, cascade.DefaultOrchestratorConfig())
	handler := NewOnPurchaseRecordedHandler(orchestrator, nil, DefaultPurchaseRecordedConfig())

	event := shared.NewPurchaseRecordedEvent("order-1", 1, shared.FromMajor(500), shared.DefaultCurrency)
	require.NoError(t, handler.Handle(event))

	unlocks, err := store.ListUnlockedAchievements(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, unlocks, 1)
}

func TestOnPurchaseRecorded_MalformedEventIgnored(t *testing.T) {
	orchestrator := cascade.NewOrchestrator(memory.NewStore(), nil, nil, nil, cascade.DefaultOrchestratorConfig())
	handler := NewOnPurchaseRecordedHandler(orchestrator, nil, DefaultPurchaseRecordedConfig())

	event := envelopeEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventPurchaseRecorded, "1"),
		payload:   map[string]interface{}{"purchase_id": "order-1"},
	}

	// Missing user_id: logged and dropped, never retried.
	assert.NoError(t, handler.Handle(event))
}

func TestExtractPurchase(t *testing.T) {
	concrete := shared.NewPurchaseRecordedEvent("order-1", 7, 100, shared.DefaultCurrency)
	purchaseID, userID, ok := extractPurchase(concrete)
	require.True(t, ok)
	assert.Equal(t, "order-1", purchaseID)
	assert.Equal(t, int64(7), userID)

	// Numbers arrive as float64 after a JSON round trip.
	envelope := envelopeEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventPurchaseRecorded, "7"),
		payload: map[string]interface{}{
			"purchase_id": "order-2",
			"user_id":     float64(7),
		},
	}
	purchaseID, userID, ok = extractPurchase(envelope)
	require.True(t, ok)
	assert.Equal(t, "order-2", purchaseID)
	assert.Equal(t, int64(7), userID)

	_, _, ok = extractPurchase(envelopeEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventPurchaseRecorded, "7"),
		payload:   map[string]interface{}{"user_id": float64(7)},
	})
	assert.False(t, ok)
}

func TestOnLoyaltyChanged_InvalidatesCache(t *testing.T) {
	cache := memory.NewStatusCache()
	ctx := context.Background()
	userID := shared.UserID(5)

	require.NoError(t, cache.SetStatus(ctx, userID, []byte(`{"user_id":5}`), 0))

	handler := NewOnLoyaltyChangedHandler(cache, nil)
	event := shared.NewBadgeUnlockedEvent(userID, 1, "Bronze Member", 50, 30000)
	require.NoError(t, handler.Handle(event))

	_, err := cache.GetStatus(ctx, userID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOnLoyaltyChanged_EnvelopeEventInvalidates(t *testing.T) {
	cache := memory.NewStatusCache()
	ctx := context.Background()
	userID := shared.UserID(6)

	require.NoError(t, cache.SetStatus(ctx, userID, []byte(`{"user_id":6}`), 0))

	handler := NewOnLoyaltyChangedHandler(cache, nil)
	event := envelopeEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventBadgeUnlocked, "6"),
		payload:   map[string]interface{}{"user_id": float64(6)},
	}
	require.NoError(t, handler.Handle(event))

	_, err := cache.GetStatus(ctx, userID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOnLoyaltyChanged_NilCacheIsNoop(t *testing.T) {
	handler := NewOnLoyaltyChangedHandler(nil, nil)
	event := shared.NewBadgeUnlockedEvent(1, 1, "Bronze Member", 50, 30000)
	assert.NoError(t, handler.Handle(event))
}
