package query_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikemart-ng/loyalty-hub/internal/application/cascade"
	"github.com/bikemart-ng/loyalty-hub/internal/application/eventhandler"
	"github.com/bikemart-ng/loyalty-hub/internal/application/query"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
	gw "github.com/bikemart-ng/loyalty-hub/internal/infrastructure/payment"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/memory"
	"github.com/bikemart-ng/loyalty-hub/internal/infrastructure/persistence/postgres"
)

// seedUser puts a user through the cascade so the projection has real
// unlocks to report.
func seedUser(t *testing.T, store *memory.Store, userID shared.UserID, purchases int, each shared.Money) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < purchases; i++ {
		purchase, err := loyalty.NewPurchase(loyalty.NewPurchaseParams{
			ID:     uuid.New().String(),
			UserID: userID,
			Amount: each,
		})
		require.NoError(t, err)
		require.NoError(t, store.RecordPurchase(ctx, purchase))
	}

	disburser := cascade.NewDisburser(store, gw.NewMockGateway(nil), nil)
	orchestrator := cascade.NewOrchestrator(store, disburser, nil, nil, cascade.DefaultOrchestratorConfig())
	_, err := orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID})
	require.NoError(t, err)
}

func TestLoyaltyStatus_Projection(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, postgres.SeedCatalog(ctx, store))

	userID := shared.UserID(1)
	// 5 purchases of ₦2,500: 160 points, Bronze unlocked.
	seedUser(t, store, userID, 5, shared.FromMajor(2_500))

	handler := query.NewLoyaltyStatusHandler(store, nil, nil)
	result, err := handler.Handle(ctx, query.LoyaltyStatusQuery{UserID: userID.Int64()})
	require.NoError(t, err)

	assert.Equal(t, userID.Int64(), result.UserID)
	assert.Equal(t, 160, result.TotalPoints)
	assert.Equal(t, 5, result.PurchaseCount)
	assert.Equal(t, shared.FromMajor(12_500).Minor(), result.TotalSpentMinor)

	assert.Len(t, result.UnlockedAchievements, 3)

	require.NotNil(t, result.CurrentBadge)
	assert.Equal(t, "Bronze Member", result.CurrentBadge.Name)

	require.NotNil(t, result.NextBadge)
	assert.Equal(t, "Silver Member", result.NextBadge.Name)
	assert.Equal(t, 40, result.PointsToNextBadge)

	assert.False(t, result.FromCache)
}

func TestLoyaltyStatus_NextAchievementsCapped(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, postgres.SeedCatalog(ctx, store))

	// Fresh user: nothing unlocked, seven locked achievements but the
	// projection lists at most five.
	handler := query.NewLoyaltyStatusHandler(store, nil, nil)
	result, err := handler.Handle(ctx, query.LoyaltyStatusQuery{UserID: 2})
	require.NoError(t, err)

	assert.Empty(t, result.UnlockedAchievements)
	assert.Len(t, result.NextAchievements, 5)
	assert.Nil(t, result.CurrentBadge)
	require.NotNil(t, result.NextBadge)
	assert.Equal(t, "Bronze Member", result.NextBadge.Name)
}

func TestLoyaltyStatus_CacheRoundTrip(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, postgres.SeedCatalog(ctx, store))

	userID := shared.UserID(3)
	seedUser(t, store, userID, 1, shared.FromMajor(500))

	cache := memory.NewStatusCache()
	handler := query.NewLoyaltyStatusHandler(store, cache, nil)

	first, err := handler.Handle(ctx, query.LoyaltyStatusQuery{UserID: userID.Int64()})
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := handler.Handle(ctx, query.LoyaltyStatusQuery{UserID: userID.Int64()})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.TotalPoints, second.TotalPoints)
	assert.Equal(t, first.PurchaseCount, second.PurchaseCount)

	bypassed, err := handler.Handle(ctx, query.LoyaltyStatusQuery{UserID: userID.Int64(), BypassCache: true})
	require.NoError(t, err)
	assert.False(t, bypassed.FromCache)
}

func TestLoyaltyStatus_InvalidationRefreshes(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, postgres.SeedCatalog(ctx, store))

	userID := shared.UserID(4)
	seedUser(t, store, userID, 1, shared.FromMajor(500))

	cache := memory.NewStatusCache()
	handler := query.NewLoyaltyStatusHandler(store, cache, nil)

	first, err := handler.Handle(ctx, query.LoyaltyStatusQuery{UserID: userID.Int64()})
	require.NoError(t, err)
	assert.Equal(t, 10, first.TotalPoints)

	// More purchases push the user over new thresholds; the unlock
	// event invalidates the stale projection.
	seedUser(t, store, userID, 5, shared.FromMajor(2_500))

	invalidation := eventhandler.NewOnLoyaltyChangedHandler(cache, nil)
	event := shared.NewAchievementUnlockedEvent(userID, 2, "Shopping Enthusiast", 5, 60)
	require.NoError(t, invalidation.Handle(event))

	refreshed, err := handler.Handle(ctx, query.LoyaltyStatusQuery{UserID: userID.Int64()})
	require.NoError(t, err)
	assert.False(t, refreshed.FromCache)
	assert.Greater(t, refreshed.TotalPoints, first.TotalPoints)
}

func TestLoyaltyStatus_InvalidUser(t *testing.T) {
	handler := query.NewLoyaltyStatusHandler(memory.NewStore(), nil, nil)

	_, err := handler.Handle(context.Background(), query.LoyaltyStatusQuery{UserID: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)
}
