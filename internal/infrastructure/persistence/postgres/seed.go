package postgres

import (
	"context"
	"fmt"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG SEED
// Default reward catalog, upserted by name so re-running the seeder
// updates definitions without touching unlock history.
// ══════════════════════════════════════════════════════════════════════════════

// SeedCatalog installs the default achievement and badge catalogs.
func SeedCatalog(ctx context.Context, writer loyalty.CatalogWriter) error {
	for _, a := range DefaultAchievements() {
		achievement := a
		if err := writer.UpsertAchievement(ctx, &achievement); err != nil {
			return fmt.Errorf("seed achievement %q: %w", a.Name, err)
		}
	}

	for _, b := range DefaultBadges() {
		badge := b
		if err := writer.UpsertBadge(ctx, &badge); err != nil {
			return fmt.Errorf("seed badge %q: %w", b.Name, err)
		}
	}

	return nil
}

// DefaultAchievements returns the stock achievement catalog.
// Spend thresholds are in kobo.
func DefaultAchievements() []loyalty.Achievement {
	return []loyalty.Achievement{
		{
			Name:        "First Purchase",
			Description: "Make your first purchase",
			Rule:        loyalty.RuleFirstPurchase,
			Points:      10,
			Active:      true,
			SortOrder:   1,
		},
		{
			Name:          "Shopping Enthusiast",
			Description:   "Make 5 purchases",
			Rule:          loyalty.RulePurchaseCount,
			RequiredCount: 5,
			Points:        50,
			Active:        true,
			SortOrder:     2,
		},
		{
			Name:          "Regular Customer",
			Description:   "Make 10 purchases",
			Rule:          loyalty.RulePurchaseCount,
			RequiredCount: 10,
			Points:        100,
			Active:        true,
			SortOrder:     3,
		},
		{
			Name:          "VIP Customer",
			Description:   "Make 25 purchases",
			Rule:          loyalty.RulePurchaseCount,
			RequiredCount: 25,
			Points:        250,
			Active:        true,
			SortOrder:     4,
		},
		{
			Name:          "Big Spender",
			Description:   "Spend ₦10,000 in total",
			Rule:          loyalty.RuleTotalSpent,
			RequiredSpend: shared.FromMajor(10_000),
			Points:        100,
			Active:        true,
			SortOrder:     5,
		},
		{
			Name:          "High Roller",
			Description:   "Spend ₦50,000 in total",
			Rule:          loyalty.RuleTotalSpent,
			RequiredSpend: shared.FromMajor(50_000),
			Points:        500,
			Active:        true,
			SortOrder:     6,
		},
		{
			Name:          "Platinum Spender",
			Description:   "Spend ₦100,000 in total",
			Rule:          loyalty.RuleTotalSpent,
			RequiredSpend: shared.FromMajor(100_000),
			Points:        1000,
			Active:        true,
			SortOrder:     7,
		},
	}
}

// DefaultBadges returns the stock badge tier catalog.
// Every tier pays the same flat ₦300 cashback on unlock.
func DefaultBadges() []loyalty.Badge {
	cashback := shared.FromMajor(300)

	return []loyalty.Badge{
		{
			Name:           "Bronze Member",
			Description:    "Entry level membership with basic rewards",
			RequiredPoints: 50,
			Cashback:       cashback,
			Active:         true,
			SortOrder:      1,
		},
		{
			Name:           "Silver Member",
			Description:    "Silver membership with enhanced rewards",
			RequiredPoints: 200,
			Cashback:       cashback,
			Active:         true,
			SortOrder:      2,
		},
		{
			Name:           "Gold Member",
			Description:    "Gold membership with premium rewards",
			RequiredPoints: 500,
			Cashback:       cashback,
			Active:         true,
			SortOrder:      3,
		},
		{
			Name:           "Platinum Member",
			Description:    "Platinum membership with exclusive rewards",
			RequiredPoints: 1000,
			Cashback:       cashback,
			Active:         true,
			SortOrder:      4,
		},
		{
			Name:           "Diamond Member",
			Description:    "Diamond membership with ultimate rewards",
			RequiredPoints: 2000,
			Cashback:       cashback,
			Active:         true,
			SortOrder:      5,
		},
	}
}
