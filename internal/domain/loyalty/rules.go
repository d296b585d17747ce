package loyalty

import (
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT RULE EVALUATOR
// Чистые функции без побочных эффектов: вход - каталог и счётчики
// покупателя, выход - какие достижения выполнены. Оценщик не знает
// о состоянии разблокировок; дедупликацией занимается хранилище.
// ══════════════════════════════════════════════════════════════════════════════

// MeetsRequirements проверяет, выполнено ли правило достижения для
// данных счётчиков покупателя.
//
// Неизвестный тип правила возвращает false и ErrUnknownRuleType:
// новая запись каталога со старым кодом никогда не разблокируется
// молча (fail closed).
func MeetsRequirements(a *Achievement, snap UserSnapshot) (bool, error) {
	switch a.Rule {
	case RuleFirstPurchase:
		return snap.HasPurchased(), nil
	case RulePurchaseCount:
		return snap.PurchaseCount >= a.RequiredCount, nil
	case RuleTotalSpent:
		return snap.TotalSpent >= a.RequiredSpend, nil
	default:
		return false, shared.ErrUnknownRuleType
	}
}

// RuleViolation описывает запись каталога, которую оценщик не смог
// обработать. Возвращается вызывающему для логирования.
type RuleViolation struct {
	Achievement *Achievement
	Err         error
}

// Qualifying возвращает достижения из каталога, выполненные для данных
// счётчиков, в порядке каталога. Неактивные записи пропускаются.
// Записи с неизвестным правилом собираются в violations и в результат
// не попадают.
func Qualifying(catalog []*Achievement, snap UserSnapshot) (qualified []*Achievement, violations []RuleViolation) {
	for _, a := range catalog {
		if !a.Active {
			continue
		}

		ok, err := MeetsRequirements(a, snap)
		if err != nil {
			violations = append(violations, RuleViolation{Achievement: a, Err: err})
			continue
		}
		if ok {
			qualified = append(qualified, a)
		}
	}
	return qualified, violations
}

// SumPoints возвращает сумму баллов набора достижений.
// Используется хранилищем для пересчёта total_points.
func SumPoints(achievements []*Achievement) shared.Points {
	var total shared.Points
	for _, a := range achievements {
		total = total.Add(a.Points)
	}
	return total
}
