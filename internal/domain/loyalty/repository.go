package loyalty

import (
	"context"
	"time"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE INTERFACE
// Контракт хранилища программы лояльности. Реализации находятся в
// infrastructure/persistence (postgres и in-memory).
// ══════════════════════════════════════════════════════════════════════════════

// Store определяет операции хранилища лояльности.
//
// Методы TryUnlock* реализуют семантику insert-or-ignore: уникальность
// пар (user, achievement) и (user, badge) обеспечивает само хранилище,
// поэтому конкурирующие каскады не создают дублей.
type Store interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Purchases
	// ─────────────────────────────────────────────────────────────────────────

	// RecordPurchase фиксирует покупку.
	// Возвращает ErrPurchaseExists при повторе идентификатора.
	RecordPurchase(ctx context.Context, purchase *Purchase) error

	// GetUserSnapshot возвращает агрегированные счётчики покупателя.
	// Для покупателя без покупок возвращает нулевой снимок, а не ошибку.
	GetUserSnapshot(ctx context.Context, userID shared.UserID) (UserSnapshot, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Catalog
	// ─────────────────────────────────────────────────────────────────────────

	// ListActiveAchievements возвращает активные достижения в порядке каталога.
	ListActiveAchievements(ctx context.Context) ([]*Achievement, error)

	// ListActiveBadges возвращает активные бейджи в порядке каталога.
	ListActiveBadges(ctx context.Context) ([]*Badge, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Unlocks
	// ─────────────────────────────────────────────────────────────────────────

	// ListUnlockedAchievements возвращает разблокировки достижений покупателя.
	ListUnlockedAchievements(ctx context.Context, userID shared.UserID) ([]*AchievementUnlock, error)

	// ListUnlockedBadges возвращает разблокировки бейджей покупателя.
	ListUnlockedBadges(ctx context.Context, userID shared.UserID) ([]*BadgeUnlock, error)

	// TryUnlockAchievement вставляет разблокировку достижения.
	// Возвращает true, если запись создана, и false, если уже существовала.
	TryUnlockAchievement(ctx context.Context, userID shared.UserID, achievementID shared.CatalogID) (bool, error)

	// TryUnlockBadge вставляет разблокировку бейджа с нулевым кэшбэком.
	// Возвращает true, если запись создана, и false, если уже существовала.
	TryUnlockBadge(ctx context.Context, userID shared.UserID, badgeID shared.CatalogID) (bool, error)

	// GetBadgeUnlock возвращает запись разблокировки бейджа.
	// Возвращает ErrBadgeUnlockNotFound, если записи нет.
	GetBadgeUnlock(ctx context.Context, userID shared.UserID, badgeID shared.CatalogID) (*BadgeUnlock, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Cashback
	// ─────────────────────────────────────────────────────────────────────────

	// SetCashbackAwarded отмечает выплату кэшбэка. Запись обновляется
	// только если кэшбэк ещё не выплачен (условная запись); при уже
	// выплаченном кэшбэке возвращает false без изменений.
	SetCashbackAwarded(ctx context.Context, userID shared.UserID, badgeID shared.CatalogID, amount shared.Money, txRef string, awardedAt time.Time) (bool, error)

	// ListPendingCashbackUsers возвращает покупателей с разблокированными
	// бейджами без выплаченного кэшбэка (не более limit). Используется
	// фоновой задачей повторных выплат.
	ListPendingCashbackUsers(ctx context.Context, limit int) ([]shared.UserID, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG ADMINISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// CatalogWriter определяет операции наполнения каталога.
// Используется сидером и администрированием; каскад каталог не меняет.
type CatalogWriter interface {
	// UpsertAchievement создаёт или обновляет достижение по имени.
	UpsertAchievement(ctx context.Context, achievement *Achievement) error

	// UpsertBadge создаёт или обновляет бейдж по имени.
	UpsertBadge(ctx context.Context, badge *Badge) error
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS CACHE
// Кеш проекции статуса лояльности (обычно реализуется через Redis).
// ══════════════════════════════════════════════════════════════════════════════

// StatusCache определяет операции кеширования статуса покупателя.
// Кеш не участвует в корректности каскада: промах - это просто
// чтение из хранилища.
type StatusCache interface {
	// GetStatus получает сериализованный статус из кеша.
	// Возвращает ErrNotFound при промахе.
	GetStatus(ctx context.Context, userID shared.UserID) ([]byte, error)

	// SetStatus сохраняет сериализованный статус с TTL.
	SetStatus(ctx context.Context, userID shared.UserID, payload []byte, ttl time.Duration) error

	// Invalidate удаляет статус покупателя из кеша.
	Invalidate(ctx context.Context, userID shared.UserID) error
}
