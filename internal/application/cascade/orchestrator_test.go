package cascade_test

import (
	"context"
	"fmt"
	"sync"
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

// newCascade wires an orchestrator over the in-memory store with the
// stock catalog and a mock gateway.
func newCascade(t *testing.T) (*cascade.Orchestrator, *memory.Store, *gw.MockGateway) {
	t.Helper()

	store := memory.NewStore()
	require.NoError(t, postgres.SeedCatalog(context.Background(), store))

	gateway := gw.NewMockGateway(nil)
	disburser := cascade.NewDisburser(store, gateway, nil)
	orchestrator := cascade.NewOrchestrator(store, disburser, nil, nil, cascade.DefaultOrchestratorConfig())

	return orchestrator, store, gateway
}

func recordPurchases(t *testing.T, store *memory.Store, userID shared.UserID, count int, each shared.Money) {
	t.Helper()
	for i := 0; i < count; i++ {
		purchase, err := loyalty.NewPurchase(loyalty.NewPurchaseParams{
			ID:     fmt.Sprintf("purchase-%d-%d", userID, i),
			UserID: userID,
			Amount: each,
		})
		require.NoError(t, err)
		require.NoError(t, store.RecordPurchase(context.Background(), purchase))
	}
}

func TestCascade_FirstPurchase(t *testing.T) {
	orchestrator, store, _ := newCascade(t)
	ctx := context.Background()
	userID := shared.UserID(1)

	recordPurchases(t, store, userID, 1, shared.FromMajor(500))

	result, err := orchestrator.Execute(ctx, cascade.CascadeInput{
		UserID:       userID,
		PurchaseID:   "purchase-1-0",
		TriggerEvent: "purchase_recorded",
	})
	require.NoError(t, err)

	// One purchase of ₦500: only First Purchase (10 points), below the
	// 50-point Bronze threshold.
	require.Len(t, result.UnlockedAchievements, 1)
	assert.Equal(t, "First Purchase", result.UnlockedAchievements[0].Name)
	assert.Equal(t, shared.Points(10), result.TotalPoints)
	assert.Empty(t, result.UnlockedBadges)
	assert.Empty(t, result.Disbursements)
}

func TestCascade_BadgeUnlockPaysCashback(t *testing.T) {
	orchestrator, store, gateway := newCascade(t)
	ctx := context.Background()
	userID := shared.UserID(2)

	// 5 purchases of ₦2,500 = ₦12,500 total: First Purchase (10) +
	// Shopping Enthusiast (50) + Big Spender (100) = 160 points,
	// crossing the Bronze threshold (50).
	recordPurchases(t, store, userID, 5, shared.FromMajor(2_500))

	result, err := orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID})
	require.NoError(t, err)

	assert.Equal(t, shared.Points(160), result.TotalPoints)
	require.Len(t, result.UnlockedBadges, 1)
	assert.Equal(t, "Bronze Member", result.UnlockedBadges[0].Name)

	require.Len(t, result.Disbursements, 1)
	outcome := result.Disbursements[0]
	assert.Equal(t, cascade.DisbursementPaid, outcome.Status)
	assert.Equal(t, shared.FromMajor(300), outcome.Amount)
	assert.NotEmpty(t, outcome.TransactionRef)
	assert.Equal(t, 1, gateway.ProcessedCount())

	unlock, err := store.GetBadgeUnlock(ctx, userID, result.UnlockedBadges[0].ID)
	require.NoError(t, err)
	assert.True(t, unlock.IsAwarded())
	assert.Equal(t, outcome.TransactionRef, unlock.TransactionRef)
}

func TestCascade_RerunUnlocksNothingNew(t *testing.T) {
	orchestrator, store, gateway := newCascade(t)
	ctx := context.Background()
	userID := shared.UserID(3)

	recordPurchases(t, store, userID, 5, shared.FromMajor(2_500))

	first, err := orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID})
	require.NoError(t, err)
	require.True(t, first.HasNewUnlocks())

	// Same counters, second run: everything already unlocked and paid.
	second, err := orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID, TriggerEvent: "retry"})
	require.NoError(t, err)
	assert.False(t, second.HasNewUnlocks())
	assert.Empty(t, second.Disbursements)
	assert.Equal(t, first.TotalPoints, second.TotalPoints)
	assert.Equal(t, 1, gateway.ProcessedCount())
}

func TestCascade_GatewayFailureLeavesUnlockUnpaid(t *testing.T) {
	orchestrator, store, gateway := newCascade(t)
	ctx := context.Background()
	userID := shared.UserID(4)

	recordPurchases(t, store, userID, 5, shared.FromMajor(2_500))
	gateway.FailAll(shared.ErrGatewayUnavailable)

	result, err := orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID})
	require.NoError(t, err)

	// The badge unlock survives the payment failure.
	require.Len(t, result.UnlockedBadges, 1)
	badgeID := result.UnlockedBadges[0].ID

	require.Len(t, result.Disbursements, 1)
	assert.Equal(t, cascade.DisbursementFailed, result.Disbursements[0].Status)
	assert.ErrorIs(t, result.Disbursements[0].Err, shared.ErrGatewayUnavailable)

	unlock, err := store.GetBadgeUnlock(ctx, userID, badgeID)
	require.NoError(t, err)
	assert.False(t, unlock.IsAwarded())
	assert.True(t, unlock.CashbackAwarded.IsZero())

	pending, err := store.ListPendingCashbackUsers(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []shared.UserID{userID}, pending)
}

func TestCascade_RetryPendingCashbackConverges(t *testing.T) {
	orchestrator, store, gateway := newCascade(t)
	ctx := context.Background()
	userID := shared.UserID(5)

	recordPurchases(t, store, userID, 5, shared.FromMajor(2_500))
	gateway.FailAll(shared.ErrGatewayUnavailable)

	result, err := orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID})
	require.NoError(t, err)
	require.Len(t, result.UnlockedBadges, 1)
	badgeID := result.UnlockedBadges[0].ID

	// Gateway recovers; the retry pays exactly once.
	gateway.FailAll(nil)

	outcomes, err := orchestrator.RetryPendingCashback(ctx, userID)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, cascade.DisbursementPaid, outcomes[0].Status)

	unlock, err := store.GetBadgeUnlock(ctx, userID, badgeID)
	require.NoError(t, err)
	assert.True(t, unlock.IsAwarded())

	// A second retry finds nothing to pay.
	outcomes, err = orchestrator.RetryPendingCashback(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Equal(t, 1, gateway.ProcessedCount())
}

func TestCascade_ConcurrentRunsUnlockOnce(t *testing.T) {
	orchestrator, store, gateway := newCascade(t)
	ctx := context.Background()
	userID := shared.UserID(6)

	recordPurchases(t, store, userID, 5, shared.FromMajor(2_500))

	const runs = 8
	results := make([]*cascade.CascadeResult, runs)
	errs := make([]error, runs)

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID})
		}(i)
	}
	wg.Wait()

	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
	}

	// Exactly one run owns each unlock.
	var totalAchievements, totalBadges, totalPaid int
	for _, r := range results {
		totalAchievements += len(r.UnlockedAchievements)
		totalBadges += len(r.UnlockedBadges)
		for _, d := range r.Disbursements {
			if d.Status == cascade.DisbursementPaid {
				totalPaid++
			}
		}
	}
	assert.Equal(t, 3, totalAchievements)
	assert.Equal(t, 1, totalBadges)
	assert.Equal(t, 1, totalPaid)
	assert.Equal(t, 1, gateway.ProcessedCount())

	unlocks, err := store.ListUnlockedBadges(ctx, userID)
	require.NoError(t, err)
	require.Len(t, unlocks, 1)
	assert.True(t, unlocks[0].IsAwarded())
}

func TestCascade_PointsJumpCrossesMultipleTiers(t *testing.T) {
	orchestrator, store, _ := newCascade(t)
	ctx := context.Background()
	userID := shared.UserID(7)

	// 10 purchases of ₦10,000 = ₦100,000: all 7 achievements except
	// VIP Customer (25 purchases) = 10+50+100+100+500+1000 = 1760
	// points, crossing Bronze, Silver, Gold, and Platinum at once.
	recordPurchases(t, store, userID, 10, shared.FromMajor(10_000))

	result, err := orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID})
	require.NoError(t, err)

	assert.Equal(t, shared.Points(1760), result.TotalPoints)
	require.Len(t, result.UnlockedBadges, 4)

	// Ascending threshold order.
	names := make([]string, len(result.UnlockedBadges))
	for i, b := range result.UnlockedBadges {
		names[i] = b.Name
	}
	assert.Equal(t, []string{"Bronze Member", "Silver Member", "Gold Member", "Platinum Member"}, names)

	// Each badge settles as its own payment with its own reference.
	require.Len(t, result.Disbursements, 4)
	refs := make(map[string]bool, len(result.Disbursements))
	for _, d := range result.Disbursements {
		assert.Equal(t, cascade.DisbursementPaid, d.Status)
		assert.False(t, refs[d.TransactionRef], "transaction ref %q reused", d.TransactionRef)
		refs[d.TransactionRef] = true
	}
}

func TestCascade_SingleLargePurchase(t *testing.T) {
	orchestrator, store, gateway := newCascade(t)
	ctx := context.Background()
	userID := shared.UserID(9)

	// One ₦12,000 purchase: First Purchase (10) + Big Spender (100)
	// = 110 points, crossing the Bronze threshold.
	recordPurchases(t, store, userID, 1, shared.FromMajor(12_000))

	result, err := orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID})
	require.NoError(t, err)

	require.Len(t, result.UnlockedAchievements, 2)
	names := []string{result.UnlockedAchievements[0].Name, result.UnlockedAchievements[1].Name}
	assert.Contains(t, names, "First Purchase")
	assert.Contains(t, names, "Big Spender")
	assert.Equal(t, shared.Points(110), result.TotalPoints)

	require.Len(t, result.UnlockedBadges, 1)
	assert.Equal(t, "Bronze Member", result.UnlockedBadges[0].Name)
	assert.Equal(t, 1, gateway.ProcessedCount())
}

func TestCascade_UnknownRuleNeverUnlocks(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertAchievement(ctx, &loyalty.Achievement{
		Name:      "Mystery",
		Rule:      loyalty.RuleType("streak_days"),
		Points:    1000,
		Active:    true,
		SortOrder: 1,
	}))

	orchestrator := cascade.NewOrchestrator(store, nil, nil, nil, cascade.DefaultOrchestratorConfig())

	userID := shared.UserID(8)
	recordPurchases(t, store, userID, 3, shared.FromMajor(1_000))

	result, err := orchestrator.Execute(ctx, cascade.CascadeInput{UserID: userID})
	require.NoError(t, err)

	assert.Empty(t, result.UnlockedAchievements)
	assert.Equal(t, shared.Points(0), result.TotalPoints)
}

func TestCascade_InvalidInput(t *testing.T) {
	orchestrator, _, _ := newCascade(t)

	_, err := orchestrator.Execute(context.Background(), cascade.CascadeInput{UserID: 0})
	assert.Error(t, err)
}
