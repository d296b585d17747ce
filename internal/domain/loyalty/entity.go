// Package loyalty содержит доменную модель программы лояльности:
// покупки, достижения, бейджи и кэшбэк. Это ядро бизнес-логики -
// здесь нет внешних зависимостей.
package loyalty

import (
	"fmt"
	"time"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// RuleType определяет тип правила разблокировки достижения.
type RuleType string

const (
	// RuleFirstPurchase - достижение за первую покупку.
	RuleFirstPurchase RuleType = "first_purchase"
	// RulePurchaseCount - достижение за количество покупок.
	RulePurchaseCount RuleType = "purchase_count"
	// RuleTotalSpent - достижение за общую сумму покупок.
	RuleTotalSpent RuleType = "total_spent"
)

// IsValid проверяет, что тип правила известен системе.
// Неизвестные типы никогда не срабатывают (fail closed).
func (r RuleType) IsValid() bool {
	switch r {
	case RuleFirstPurchase, RulePurchaseCount, RuleTotalSpent:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа правила.
func (r RuleType) String() string {
	return string(r)
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - запись каталога достижений.
// Каталог задаёт, за что и сколько баллов получает покупатель.
type Achievement struct {
	// ID - уникальный идентификатор достижения.
	ID shared.CatalogID

	// Name - название достижения (уникально в каталоге).
	Name string

	// Description - описание для покупателя.
	Description string

	// Rule - тип правила разблокировки.
	Rule RuleType

	// RequiredCount - порог количества покупок (для purchase_count).
	RequiredCount int

	// RequiredSpend - порог общей суммы покупок (для total_spent).
	RequiredSpend shared.Money

	// Points - баллы, начисляемые за разблокировку.
	Points shared.Points

	// Active - участвует ли достижение в оценке.
	Active bool

	// SortOrder - порядок в каталоге (порядок вставки).
	SortOrder int

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// Validate проверяет согласованность записи каталога.
func (a *Achievement) Validate() error {
	if !a.ID.IsValid() {
		return shared.NewDomainError("loyalty", "Validate", shared.ErrInvalidID, "achievement id must be positive")
	}
	if a.Name == "" {
		return shared.NewDomainError("loyalty", "Validate", shared.ErrEmptyValue, "achievement name is required")
	}
	if !a.Points.IsValid() {
		return shared.NewDomainError("loyalty", "Validate", shared.ErrNegativeValue, "achievement points must be non-negative")
	}
	switch a.Rule {
	case RulePurchaseCount:
		if a.RequiredCount <= 0 {
			return shared.NewDomainError("loyalty", "Validate", shared.ErrValueOutOfRange, "purchase_count rule requires a positive count")
		}
	case RuleTotalSpent:
		if !a.RequiredSpend.IsPositive() {
			return shared.NewDomainError("loyalty", "Validate", shared.ErrValueOutOfRange, "total_spent rule requires a positive amount")
		}
	}
	// Неизвестный тип правила не является ошибкой каталога:
	// такая запись просто никогда не разблокируется.
	return nil
}

// String возвращает строковое представление для логирования.
func (a *Achievement) String() string {
	return fmt.Sprintf("Achievement{ID: %d, Name: %s, Rule: %s, Points: %d}",
		a.ID, a.Name, a.Rule, a.Points)
}

// Badge - запись каталога бейджей (уровней лояльности).
type Badge struct {
	// ID - уникальный идентификатор бейджа.
	ID shared.CatalogID

	// Name - название бейджа (уникально в каталоге).
	Name string

	// Description - описание для покупателя.
	Description string

	// RequiredPoints - порог баллов для разблокировки.
	RequiredPoints shared.Points

	// Cashback - сумма кэшбэка за разблокировку (в минорных единицах).
	Cashback shared.Money

	// Active - участвует ли бейдж в оценке.
	Active bool

	// SortOrder - порядок в каталоге (порядок вставки).
	SortOrder int

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// Validate проверяет согласованность записи каталога.
func (b *Badge) Validate() error {
	if !b.ID.IsValid() {
		return shared.NewDomainError("loyalty", "Validate", shared.ErrInvalidID, "badge id must be positive")
	}
	if b.Name == "" {
		return shared.NewDomainError("loyalty", "Validate", shared.ErrEmptyValue, "badge name is required")
	}
	if b.RequiredPoints < 0 {
		return shared.ErrInvalidBadgeThreshold
	}
	if b.Cashback < 0 {
		return shared.NewDomainError("loyalty", "Validate", shared.ErrNegativeValue, "badge cashback must be non-negative")
	}
	return nil
}

// HasCashback возвращает true, если за бейдж положена выплата.
func (b *Badge) HasCashback() bool {
	return b.Cashback.IsPositive()
}

// String возвращает строковое представление для логирования.
func (b *Badge) String() string {
	return fmt.Sprintf("Badge{ID: %d, Name: %s, RequiredPoints: %d, Cashback: %s}",
		b.ID, b.Name, b.RequiredPoints, b.Cashback)
}

// ══════════════════════════════════════════════════════════════════════════════
// PURCHASE
// ══════════════════════════════════════════════════════════════════════════════

// Purchase - зафиксированная покупка. Запись неизменяема после создания.
type Purchase struct {
	// ID - уникальный идентификатор покупки (UUID в строковом формате).
	ID string

	// UserID - идентификатор покупателя.
	UserID shared.UserID

	// Amount - сумма покупки в минорных единицах.
	Amount shared.Money

	// Currency - валюта покупки (по умолчанию NGN).
	Currency shared.Currency

	// Metadata - произвольные атрибуты покупки (источник, SKU и т.п.).
	Metadata map[string]string

	// CreatedAt - время фиксации покупки.
	CreatedAt time.Time
}

// NewPurchaseParams содержит параметры для создания покупки.
type NewPurchaseParams struct {
	ID       string
	UserID   shared.UserID
	Amount   shared.Money
	Currency shared.Currency
	Metadata map[string]string
}

// NewPurchase создаёт покупку с валидацией всех полей.
func NewPurchase(params NewPurchaseParams) (*Purchase, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("purchase", "Validate", shared.ErrEmptyValue, "purchase id is required")
	}
	if !params.UserID.IsValid() {
		return nil, shared.ErrInvalidUserID
	}
	if !params.Amount.IsPositive() {
		return nil, shared.ErrInvalidAmount
	}
	currency := params.Currency
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError("purchase", "Validate", shared.ErrInvalidFormat, "currency must be a 3-letter code")
	}

	return &Purchase{
		ID:        params.ID,
		UserID:    params.UserID,
		Amount:    params.Amount,
		Currency:  currency,
		Metadata:  params.Metadata,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// UserSnapshot - агрегированные счётчики покупателя на момент оценки.
// Правила достижений смотрят только на эти счётчики, а не на
// состояние разблокировок.
type UserSnapshot struct {
	// UserID - идентификатор покупателя.
	UserID shared.UserID

	// PurchaseCount - количество зафиксированных покупок.
	PurchaseCount int

	// TotalSpent - сумма всех покупок в минорных единицах.
	TotalSpent shared.Money

	// TotalPoints - сумма баллов всех разблокированных достижений.
	TotalPoints shared.Points
}

// HasPurchased возвращает true, если у покупателя есть хотя бы одна покупка.
func (s UserSnapshot) HasPurchased() bool {
	return s.PurchaseCount > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementUnlock - факт разблокировки достижения покупателем.
// Пара (UserID, AchievementID) уникальна.
type AchievementUnlock struct {
	UserID        shared.UserID
	AchievementID shared.CatalogID
	UnlockedAt    time.Time
}

// BadgeUnlock - факт разблокировки бейджа покупателем.
// Пара (UserID, BadgeID) уникальна. CashbackAwarded остаётся нулём,
// пока выплата не прошла: это и есть защита от повторной выплаты.
type BadgeUnlock struct {
	UserID  shared.UserID
	BadgeID shared.CatalogID

	// CashbackAwarded - фактически выплаченная сумма (0 = не выплачено).
	CashbackAwarded shared.Money

	// TransactionRef - референс транзакции платёжного шлюза.
	TransactionRef string

	// UnlockedAt - время разблокировки бейджа.
	UnlockedAt time.Time

	// AwardedAt - время успешной выплаты (nil = не выплачено).
	AwardedAt *time.Time
}

// IsAwarded возвращает true, если кэшбэк уже выплачен.
func (u *BadgeUnlock) IsAwarded() bool {
	return u.CashbackAwarded.IsPositive()
}
