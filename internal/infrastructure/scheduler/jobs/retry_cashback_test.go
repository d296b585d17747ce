package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikemart-ng/loyalty-hub/internal/application/cascade"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
	gw "github.com/bikemart-ng/loyalty-hub/internal/infrastructure/payment"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/memory"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/postgres"
)

func TestRetryCashbackJob_PaysPendingUnlocks(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, postgres.SeedCatalog(ctx, store))

	gateway := gw.NewMockGateway(nil)
	disburser := cascade.NewDisburser(store, gateway, nil)
	orchestrator := cascade.NewOrchestrator(store, disburser, nil, nil, cascade.DefaultOrchestratorConfig())

	// Unlock a badge while the gateway is down.
	userID := shared.UserID(1)
	for i := 0; i < 5; i++ {
		purchase, err := loyalty.NewPurchase(loyalty.NewPurchaseParams{
			ID:     "order-" + string(rune('a'+i)),
			UserID: userID,
			Amount: shared.FromMajor(2_500),
		})
		require.NoError(t, err)
		require.NoError(t, store.RecordPurchase(ctx, purchase))
	}

	gateway.FailAll(shared.ErrGatewayUnavailable)
	result, err := orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID})
	require.NoError(t, err)
	require.Len(t, result.UnlockedBadges, 1)
	badgeID := result.UnlockedBadges[0].ID

	gateway.FailAll(nil)

	job := NewRetryCashbackJob(store, orchestrator, nil, RetryCashbackConfig{BatchSize: 10})
	assert.Equal(t, "retry_cashback", job.Name())

	require.NoError(t, job.Run(ctx))

	unlock, err := store.GetBadgeUnlock(ctx, userID, badgeID)
	require.NoError(t, err)
	assert.True(t, unlock.IsAwarded())
	assert.Equal(t, 1, gateway.ProcessedCount())

	pending, err := store.ListPendingCashbackUsers(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRetryCashbackJob_NothingPending(t *testing.T) {
	store := memory.NewStore()
	orchestrator := cascade.NewOrchestrator(store, nil, nil, nil, cascade.DefaultOrchestratorConfig())

	job := NewRetryCashbackJob(store, orchestrator, nil, RetryCashbackConfig{})
	assert.NoError(t, job.Run(context.Background()))
}

func TestRetryCashbackJob_RespectsContext(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	_, err := store.TryUnlockBadge(ctx, 1, 1)
	require.NoError(t, err)

	orchestrator := cascade.NewOrchestrator(store, nil, nil, nil, cascade.DefaultOrchestratorConfig())
	job := NewRetryCashbackJob(store, orchestrator, nil, RetryCashbackConfig{})

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	assert.ErrorIs(t, job.Run(cancelled), context.Canceled)
}
