package loyalty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

func tierCatalog() []*Badge {
	return []*Badge{
		{ID: 1, Name: "Bronze", RequiredPoints: 50, Active: true},
		{ID: 2, Name: "Silver", RequiredPoints: 200, Active: true},
		{ID: 3, Name: "Gold", RequiredPoints: 500, Active: true},
	}
}

func TestSortByThreshold_Ascending(t *testing.T) {
	badges := []*Badge{
		{ID: 3, RequiredPoints: 500},
		{ID: 1, RequiredPoints: 50},
		{ID: 2, RequiredPoints: 200},
	}

	sorted := SortByThreshold(badges)

	require.Len(t, sorted, 3)
	assert.Equal(t, shared.CatalogID(1), sorted[0].ID)
	assert.Equal(t, shared.CatalogID(2), sorted[1].ID)
	assert.Equal(t, shared.CatalogID(3), sorted[2].ID)

	// Input order untouched
	assert.Equal(t, shared.CatalogID(3), badges[0].ID)
}

func TestSortByThreshold_StableOnTies(t *testing.T) {
	// Equal thresholds keep catalog insertion order.
	badges := []*Badge{
		{ID: 7, Name: "Early Bird", RequiredPoints: 100},
		{ID: 8, Name: "Night Owl", RequiredPoints: 100},
	}

	sorted := SortByThreshold(badges)

	assert.Equal(t, shared.CatalogID(7), sorted[0].ID)
	assert.Equal(t, shared.CatalogID(8), sorted[1].ID)
}

func TestNewlyQualified(t *testing.T) {
	unlocked := map[shared.CatalogID]bool{1: true}

	result := NewlyQualified(tierCatalog(), unlocked, 250)

	require.Len(t, result, 1)
	assert.Equal(t, shared.CatalogID(2), result[0].ID)
}

func TestNewlyQualified_MultipleTiersInOnePass(t *testing.T) {
	// A points jump can cross several thresholds at once; the result
	// comes back in ascending threshold order.
	result := NewlyQualified(tierCatalog(), nil, 500)

	require.Len(t, result, 3)
	assert.Equal(t, shared.CatalogID(1), result[0].ID)
	assert.Equal(t, shared.CatalogID(2), result[1].ID)
	assert.Equal(t, shared.CatalogID(3), result[2].ID)
}

func TestNewlyQualified_SkipsInactive(t *testing.T) {
	badges := tierCatalog()
	badges[1].Active = false

	result := NewlyQualified(badges, nil, 500)

	require.Len(t, result, 2)
	assert.Equal(t, shared.CatalogID(1), result[0].ID)
	assert.Equal(t, shared.CatalogID(3), result[1].ID)
}

func TestNewlyQualified_NothingBelowThreshold(t *testing.T) {
	assert.Empty(t, NewlyQualified(tierCatalog(), nil, 49))
}

func TestCurrentBadge(t *testing.T) {
	badges := tierCatalog()

	assert.Nil(t, CurrentBadge(badges, nil))

	unlocked := map[shared.CatalogID]bool{1: true, 2: true}
	current := CurrentBadge(badges, unlocked)
	require.NotNil(t, current)
	assert.Equal(t, shared.CatalogID(2), current.ID)
}

func TestNextBadge(t *testing.T) {
	badges := tierCatalog()

	next := NextBadge(badges, map[shared.CatalogID]bool{1: true})
	require.NotNil(t, next)
	assert.Equal(t, shared.CatalogID(2), next.ID)

	all := map[shared.CatalogID]bool{1: true, 2: true, 3: true}
	assert.Nil(t, NextBadge(badges, all))
}

func TestPointsToNext(t *testing.T) {
	next := &Badge{RequiredPoints: 200}

	assert.Equal(t, shared.Points(150), PointsToNext(next, 50))
	assert.Equal(t, shared.Points(0), PointsToNext(next, 200))
	assert.Equal(t, shared.Points(0), PointsToNext(next, 300))
	assert.Equal(t, shared.Points(0), PointsToNext(nil, 50))
}
