package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

func newPurchase(t *testing.T, id string, userID shared.UserID, amount shared.Money) *loyalty.Purchase {
	t.Helper()
	p, err := loyalty.NewPurchase(loyalty.NewPurchaseParams{
		ID:     id,
		UserID: userID,
		Amount: amount,
	})
	require.NoError(t, err)
	return p
}

func TestStore_RecordPurchase_Duplicate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	p := newPurchase(t, "order-1", 1, 500)

	require.NoError(t, store.RecordPurchase(ctx, p))
	assert.ErrorIs(t, store.RecordPurchase(ctx, p), shared.ErrPurchaseExists)
}

func TestStore_GetUserSnapshot(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.RecordPurchase(ctx, newPurchase(t, "a", 1, 500)))
	require.NoError(t, store.RecordPurchase(ctx, newPurchase(t, "b", 1, 1500)))
	require.NoError(t, store.RecordPurchase(ctx, newPurchase(t, "c", 2, 9000)))

	require.NoError(t, store.UpsertAchievement(ctx, &loyalty.Achievement{
		Name:   "First Purchase",
		Rule:   loyalty.RuleFirstPurchase,
		Points: 10,
		Active: true,
	}))
	achievements, err := store.ListActiveAchievements(ctx)
	require.NoError(t, err)
	require.Len(t, achievements, 1)

	_, err = store.TryUnlockAchievement(ctx, 1, achievements[0].ID)
	require.NoError(t, err)

	snapshot, err := store.GetUserSnapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.PurchaseCount)
	assert.Equal(t, shared.Money(2000), snapshot.TotalSpent)
	assert.Equal(t, shared.Points(10), snapshot.TotalPoints)

	// Empty snapshot for an unknown user, not an error.
	empty, err := store.GetUserSnapshot(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.PurchaseCount)
	assert.True(t, empty.TotalSpent.IsZero())
}

func TestStore_TryUnlockAchievement_InsertOrIgnore(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	inserted, err := store.TryUnlockAchievement(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.TryUnlockAchievement(ctx, 1, 10)
	require.NoError(t, err)
	assert.False(t, inserted)

	unlocks, err := store.ListUnlockedAchievements(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, unlocks, 1)
}

func TestStore_TryUnlockBadge_InsertOrIgnore(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	inserted, err := store.TryUnlockBadge(ctx, 1, 20)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.TryUnlockBadge(ctx, 1, 20)
	require.NoError(t, err)
	assert.False(t, inserted)

	unlock, err := store.GetBadgeUnlock(ctx, 1, 20)
	require.NoError(t, err)
	assert.False(t, unlock.IsAwarded())
	assert.True(t, unlock.CashbackAwarded.IsZero())
}

func TestStore_GetBadgeUnlock_NotFound(t *testing.T) {
	store := NewStore()

	_, err := store.GetBadgeUnlock(context.Background(), 1, 20)
	assert.ErrorIs(t, err, shared.ErrBadgeUnlockNotFound)
	assert.True(t, shared.IsNotFound(err))
}

func TestStore_SetCashbackAwarded_Conditional(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// No unlock yet: nothing to mark.
	marked, err := store.SetCashbackAwarded(ctx, 1, 20, 30000, "TX-1", now)
	require.NoError(t, err)
	assert.False(t, marked)

	_, err = store.TryUnlockBadge(ctx, 1, 20)
	require.NoError(t, err)

	marked, err = store.SetCashbackAwarded(ctx, 1, 20, 30000, "TX-1", now)
	require.NoError(t, err)
	assert.True(t, marked)

	// Already paid: the second attempt is a no-op.
	marked, err = store.SetCashbackAwarded(ctx, 1, 20, 30000, "TX-2", now)
	require.NoError(t, err)
	assert.False(t, marked)

	unlock, err := store.GetBadgeUnlock(ctx, 1, 20)
	require.NoError(t, err)
	assert.True(t, unlock.IsAwarded())
	assert.Equal(t, "TX-1", unlock.TransactionRef)
	require.NotNil(t, unlock.AwardedAt)
}

func TestStore_ListPendingCashbackUsers(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	// User 3 has an unpaid unlock, user 1 has two, user 2 is paid.
	for _, u := range []struct {
		userID  shared.UserID
		badgeID shared.CatalogID
	}{
		{1, 10}, {1, 11}, {2, 10}, {3, 10},
	} {
		_, err := store.TryUnlockBadge(ctx, u.userID, u.badgeID)
		require.NoError(t, err)
	}
	_, err := store.SetCashbackAwarded(ctx, 2, 10, 30000, "TX-2", now)
	require.NoError(t, err)

	pending, err := store.ListPendingCashbackUsers(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []shared.UserID{1, 3}, pending)

	limited, err := store.ListPendingCashbackUsers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []shared.UserID{1}, limited)
}

func TestStore_UpsertAchievement_KeyedByName(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertAchievement(ctx, &loyalty.Achievement{
		Name:   "First Purchase",
		Rule:   loyalty.RuleFirstPurchase,
		Points: 10,
		Active: true,
	}))

	achievements, err := store.ListActiveAchievements(ctx)
	require.NoError(t, err)
	require.Len(t, achievements, 1)
	originalID := achievements[0].ID

	// Re-seeding updates in place.
	require.NoError(t, store.UpsertAchievement(ctx, &loyalty.Achievement{
		Name:   "First Purchase",
		Rule:   loyalty.RuleFirstPurchase,
		Points: 25,
		Active: true,
	}))

	achievements, err = store.ListActiveAchievements(ctx)
	require.NoError(t, err)
	require.Len(t, achievements, 1)
	assert.Equal(t, originalID, achievements[0].ID)
	assert.Equal(t, shared.Points(25), achievements[0].Points)
}

func TestStore_ListActive_FiltersAndSorts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertBadge(ctx, &loyalty.Badge{Name: "Gold", RequiredPoints: 500, Active: true, SortOrder: 3}))
	require.NoError(t, store.UpsertBadge(ctx, &loyalty.Badge{Name: "Bronze", RequiredPoints: 50, Active: true, SortOrder: 1}))
	require.NoError(t, store.UpsertBadge(ctx, &loyalty.Badge{Name: "Retired", RequiredPoints: 10, Active: false, SortOrder: 2}))

	badges, err := store.ListActiveBadges(ctx)
	require.NoError(t, err)
	require.Len(t, badges, 2)
	assert.Equal(t, "Bronze", badges[0].Name)
	assert.Equal(t, "Gold", badges[1].Name)
}
