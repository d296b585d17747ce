package loyalty

import (
	"sort"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE TIER EVALUATOR
// Чистые функции оценки уровней. Порядок обхода детерминирован:
// по возрастанию порога баллов, при равных порогах - по порядку
// каталога. Один и тот же вход всегда даёт один и тот же выход.
// ══════════════════════════════════════════════════════════════════════════════

// SortByThreshold возвращает копию каталога бейджей, отсортированную
// по возрастанию RequiredPoints. Сортировка стабильная: бейджи с
// одинаковым порогом сохраняют порядок каталога.
func SortByThreshold(badges []*Badge) []*Badge {
	sorted := make([]*Badge, len(badges))
	copy(sorted, badges)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RequiredPoints < sorted[j].RequiredPoints
	})
	return sorted
}

// NewlyQualified возвращает активные бейджи, порог которых достигнут,
// но которые ещё не разблокированы, в порядке возрастания порога.
func NewlyQualified(badges []*Badge, unlocked map[shared.CatalogID]bool, points shared.Points) []*Badge {
	var result []*Badge
	for _, b := range SortByThreshold(badges) {
		if !b.Active {
			continue
		}
		if unlocked[b.ID] {
			continue
		}
		if points.Reaches(b.RequiredPoints) {
			result = append(result, b)
		}
	}
	return result
}

// CurrentBadge возвращает текущий бейдж покупателя: разблокированный
// бейдж с наибольшим порогом. Возвращает nil, если ничего не
// разблокировано.
func CurrentBadge(badges []*Badge, unlocked map[shared.CatalogID]bool) *Badge {
	var current *Badge
	for _, b := range SortByThreshold(badges) {
		if unlocked[b.ID] {
			current = b
		}
	}
	return current
}

// NextBadge возвращает ближайший неразблокированный активный бейдж
// (наименьший порог среди недостигнутых). Возвращает nil, если все
// бейджи разблокированы.
func NextBadge(badges []*Badge, unlocked map[shared.CatalogID]bool) *Badge {
	for _, b := range SortByThreshold(badges) {
		if !b.Active {
			continue
		}
		if !unlocked[b.ID] {
			return b
		}
	}
	return nil
}

// PointsToNext возвращает, сколько баллов осталось до следующего
// бейджа. Если следующего нет или порог уже достигнут, возвращает 0.
func PointsToNext(next *Badge, points shared.Points) shared.Points {
	if next == nil {
		return 0
	}
	if points.Reaches(next.RequiredPoints) {
		return 0
	}
	return next.RequiredPoints - points
}
