// Package memory provides an in-memory implementation of the loyalty
// store. It mirrors the PostgreSQL semantics (insert-or-ignore unlocks,
// conditional cashback marking) and backs tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// Store is an in-memory loyalty store guarded by a single RWMutex.
type Store struct {
	mu sync.RWMutex

	purchases    map[string]*loyalty.Purchase
	achievements map[shared.CatalogID]*loyalty.Achievement
	badges       map[shared.CatalogID]*loyalty.Badge
	nextCatalog  int64

	achievementUnlocks map[unlockKey]*loyalty.AchievementUnlock
	badgeUnlocks       map[unlockKey]*loyalty.BadgeUnlock
}

type unlockKey struct {
	userID    shared.UserID
	catalogID shared.CatalogID
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		purchases:          make(map[string]*loyalty.Purchase),
		achievements:       make(map[shared.CatalogID]*loyalty.Achievement),
		badges:             make(map[shared.CatalogID]*loyalty.Badge),
		nextCatalog:        1,
		achievementUnlocks: make(map[unlockKey]*loyalty.AchievementUnlock),
		badgeUnlocks:       make(map[unlockKey]*loyalty.BadgeUnlock),
	}
}

// Compile-time interface checks.
var (
	_ loyalty.Store         = (*Store)(nil)
	_ loyalty.CatalogWriter = (*Store)(nil)
)

// ──────────────────────────────────────────────────────────────────────────────
// Purchases
// ──────────────────────────────────────────────────────────────────────────────

// RecordPurchase stores a purchase.
func (s *Store) RecordPurchase(_ context.Context, purchase *loyalty.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.purchases[purchase.ID]; exists {
		return shared.ErrPurchaseExists
	}

	p := *purchase
	s.purchases[purchase.ID] = &p
	return nil
}

// GetUserSnapshot aggregates the user's counters.
func (s *Store) GetUserSnapshot(_ context.Context, userID shared.UserID) (loyalty.UserSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := loyalty.UserSnapshot{UserID: userID}

	for _, p := range s.purchases {
		if p.UserID == userID {
			snapshot.PurchaseCount++
			snapshot.TotalSpent = snapshot.TotalSpent.Add(p.Amount)
		}
	}

	for key, unlock := range s.achievementUnlocks {
		if key.userID != userID {
			continue
		}
		if a, ok := s.achievements[unlock.AchievementID]; ok {
			snapshot.TotalPoints = snapshot.TotalPoints.Add(a.Points)
		}
	}

	return snapshot, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────────────────────────────────

// ListActiveAchievements returns active achievements in catalog order.
func (s *Store) ListActiveAchievements(_ context.Context) ([]*loyalty.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*loyalty.Achievement
	for _, a := range s.achievements {
		if a.Active {
			copied := *a
			result = append(result, &copied)
		}
	}
	sortCatalogAchievements(result)
	return result, nil
}

// ListActiveBadges returns active badges in catalog order.
func (s *Store) ListActiveBadges(_ context.Context) ([]*loyalty.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*loyalty.Badge
	for _, b := range s.badges {
		if b.Active {
			copied := *b
			result = append(result, &copied)
		}
	}
	sortCatalogBadges(result)
	return result, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Unlocks
// ──────────────────────────────────────────────────────────────────────────────

// ListUnlockedAchievements returns the user's achievement unlocks.
func (s *Store) ListUnlockedAchievements(_ context.Context, userID shared.UserID) ([]*loyalty.AchievementUnlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*loyalty.AchievementUnlock
	for key, u := range s.achievementUnlocks {
		if key.userID == userID {
			copied := *u
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UnlockedAt.Equal(result[j].UnlockedAt) {
			return result[i].UnlockedAt.Before(result[j].UnlockedAt)
		}
		return result[i].AchievementID < result[j].AchievementID
	})
	return result, nil
}

// ListUnlockedBadges returns the user's badge unlocks.
func (s *Store) ListUnlockedBadges(_ context.Context, userID shared.UserID) ([]*loyalty.BadgeUnlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*loyalty.BadgeUnlock
	for key, u := range s.badgeUnlocks {
		if key.userID == userID {
			copied := *u
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UnlockedAt.Equal(result[j].UnlockedAt) {
			return result[i].UnlockedAt.Before(result[j].UnlockedAt)
		}
		return result[i].BadgeID < result[j].BadgeID
	})
	return result, nil
}

// TryUnlockAchievement inserts an unlock, ignoring duplicates.
func (s *Store) TryUnlockAchievement(_ context.Context, userID shared.UserID, achievementID shared.CatalogID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := unlockKey{userID: userID, catalogID: achievementID}
	if _, exists := s.achievementUnlocks[key]; exists {
		return false, nil
	}

	s.achievementUnlocks[key] = &loyalty.AchievementUnlock{
		UserID:        userID,
		AchievementID: achievementID,
		UnlockedAt:    time.Now().UTC(),
	}
	return true, nil
}

// TryUnlockBadge inserts a badge unlock with zero cashback.
func (s *Store) TryUnlockBadge(_ context.Context, userID shared.UserID, badgeID shared.CatalogID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := unlockKey{userID: userID, catalogID: badgeID}
	if _, exists := s.badgeUnlocks[key]; exists {
		return false, nil
	}

	s.badgeUnlocks[key] = &loyalty.BadgeUnlock{
		UserID:     userID,
		BadgeID:    badgeID,
		UnlockedAt: time.Now().UTC(),
	}
	return true, nil
}

// GetBadgeUnlock returns one badge unlock.
func (s *Store) GetBadgeUnlock(_ context.Context, userID shared.UserID, badgeID shared.CatalogID) (*loyalty.BadgeUnlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.badgeUnlocks[unlockKey{userID: userID, catalogID: badgeID}]
	if !exists {
		return nil, shared.ErrBadgeUnlockNotFound
	}

	copied := *u
	return &copied, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Cashback
// ──────────────────────────────────────────────────────────────────────────────

// SetCashbackAwarded conditionally marks a badge unlock as paid.
func (s *Store) SetCashbackAwarded(
	_ context.Context,
	userID shared.UserID,
	badgeID shared.CatalogID,
	amount shared.Money,
	txRef string,
	awardedAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.badgeUnlocks[unlockKey{userID: userID, catalogID: badgeID}]
	if !exists {
		return false, nil
	}
	if u.IsAwarded() {
		return false, nil
	}

	u.CashbackAwarded = amount
	u.TransactionRef = txRef
	at := awardedAt
	u.AwardedAt = &at
	return true, nil
}

// ListPendingCashbackUsers returns users holding unpaid badge unlocks.
func (s *Store) ListPendingCashbackUsers(_ context.Context, limit int) ([]shared.UserID, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[shared.UserID]bool)
	var result []shared.UserID
	for key, u := range s.badgeUnlocks {
		if u.IsAwarded() || seen[key.userID] {
			continue
		}
		seen[key.userID] = true
		result = append(result, key.userID)
	}

	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Catalog administration
// ──────────────────────────────────────────────────────────────────────────────

// UpsertAchievement creates or updates an achievement keyed by name.
func (s *Store) UpsertAchievement(_ context.Context, a *loyalty.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.achievements {
		if existing.Name == a.Name {
			updated := *a
			updated.ID = id
			updated.CreatedAt = existing.CreatedAt
			s.achievements[id] = &updated
			return nil
		}
	}

	created := *a
	created.ID = shared.CatalogID(s.nextCatalog)
	created.CreatedAt = time.Now().UTC()
	s.nextCatalog++
	s.achievements[created.ID] = &created
	return nil
}

// UpsertBadge creates or updates a badge keyed by name.
func (s *Store) UpsertBadge(_ context.Context, b *loyalty.Badge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.badges {
		if existing.Name == b.Name {
			updated := *b
			updated.ID = id
			updated.CreatedAt = existing.CreatedAt
			s.badges[id] = &updated
			return nil
		}
	}

	created := *b
	created.ID = shared.CatalogID(s.nextCatalog)
	created.CreatedAt = time.Now().UTC()
	s.nextCatalog++
	s.badges[created.ID] = &created
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Sorting
// ──────────────────────────────────────────────────────────────────────────────

func sortCatalogAchievements(items []*loyalty.Achievement) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
}

func sortCatalogBadges(items []*loyalty.Badge) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
}
