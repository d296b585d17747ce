package loyalty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

func TestMeetsRequirements(t *testing.T) {
	tests := []struct {
		name        string
		achievement *Achievement
		snapshot    UserSnapshot
		want        bool
		wantErr     error
	}{
		{
			name:        "first purchase with one purchase",
			achievement: &Achievement{Rule: RuleFirstPurchase},
			snapshot:    UserSnapshot{PurchaseCount: 1},
			want:        true,
		},
		{
			name:        "first purchase with no purchases",
			achievement: &Achievement{Rule: RuleFirstPurchase},
			snapshot:    UserSnapshot{PurchaseCount: 0},
			want:        false,
		},
		{
			name:        "purchase count below threshold",
			achievement: &Achievement{Rule: RulePurchaseCount, RequiredCount: 5},
			snapshot:    UserSnapshot{PurchaseCount: 4},
			want:        false,
		},
		{
			name:        "purchase count at threshold",
			achievement: &Achievement{Rule: RulePurchaseCount, RequiredCount: 5},
			snapshot:    UserSnapshot{PurchaseCount: 5},
			want:        true,
		},
		{
			name:        "total spent below threshold",
			achievement: &Achievement{Rule: RuleTotalSpent, RequiredSpend: shared.FromMajor(10_000)},
			snapshot:    UserSnapshot{TotalSpent: shared.FromMajor(9_999)},
			want:        false,
		},
		{
			name:        "total spent exactly at threshold",
			achievement: &Achievement{Rule: RuleTotalSpent, RequiredSpend: shared.FromMajor(10_000)},
			snapshot:    UserSnapshot{TotalSpent: shared.FromMajor(10_000)},
			want:        true,
		},
		{
			name:        "unknown rule type fails closed",
			achievement: &Achievement{Rule: RuleType("mystery_rule")},
			snapshot:    UserSnapshot{PurchaseCount: 100, TotalSpent: shared.FromMajor(1_000_000)},
			want:        false,
			wantErr:     shared.ErrUnknownRuleType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MeetsRequirements(tt.achievement, tt.snapshot)
			assert.Equal(t, tt.want, got)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQualifying_SkipsInactive(t *testing.T) {
	catalog := []*Achievement{
		{ID: 1, Name: "active", Rule: RuleFirstPurchase, Active: true},
		{ID: 2, Name: "inactive", Rule: RuleFirstPurchase, Active: false},
	}

	qualified, violations := Qualifying(catalog, UserSnapshot{PurchaseCount: 1})

	require.Len(t, qualified, 1)
	assert.Equal(t, shared.CatalogID(1), qualified[0].ID)
	assert.Empty(t, violations)
}

func TestQualifying_UnknownRuleGoesToViolations(t *testing.T) {
	catalog := []*Achievement{
		{ID: 1, Name: "known", Rule: RuleFirstPurchase, Active: true},
		{ID: 2, Name: "unknown", Rule: RuleType("streak_days"), Active: true},
	}

	qualified, violations := Qualifying(catalog, UserSnapshot{PurchaseCount: 1})

	require.Len(t, qualified, 1)
	assert.Equal(t, shared.CatalogID(1), qualified[0].ID)

	require.Len(t, violations, 1)
	assert.Equal(t, shared.CatalogID(2), violations[0].Achievement.ID)
	assert.ErrorIs(t, violations[0].Err, shared.ErrUnknownRuleType)
}

func TestQualifying_PreservesCatalogOrder(t *testing.T) {
	catalog := []*Achievement{
		{ID: 3, Rule: RuleFirstPurchase, Active: true},
		{ID: 1, Rule: RulePurchaseCount, RequiredCount: 1, Active: true},
		{ID: 2, Rule: RuleTotalSpent, RequiredSpend: 100, Active: true},
	}

	qualified, _ := Qualifying(catalog, UserSnapshot{PurchaseCount: 1, TotalSpent: 100})

	require.Len(t, qualified, 3)
	assert.Equal(t, shared.CatalogID(3), qualified[0].ID)
	assert.Equal(t, shared.CatalogID(1), qualified[1].ID)
	assert.Equal(t, shared.CatalogID(2), qualified[2].ID)
}

func TestSumPoints(t *testing.T) {
	achievements := []*Achievement{
		{Points: 10},
		{Points: 50},
		{Points: 100},
	}

	assert.Equal(t, shared.Points(160), SumPoints(achievements))
	assert.Equal(t, shared.Points(0), SumPoints(nil))
}

func TestRuleType_IsValid(t *testing.T) {
	assert.True(t, RuleFirstPurchase.IsValid())
	assert.True(t, RulePurchaseCount.IsValid())
	assert.True(t, RuleTotalSpent.IsValid())
	assert.False(t, RuleType("referral").IsValid())
	assert.False(t, RuleType("").IsValid())
}
