// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ══════════════════════════════════════════════════════════════════════════════
// LOYALTY STATUS QUERY
// Собирает проекцию статуса лояльности покупателя: разблокированные
// достижения, ближайшие доступные достижения, текущий и следующий
// бейдж, сколько баллов осталось. Проекция кешируется в Redis и
// инвалидируется обработчиком событий разблокировки.
// ══════════════════════════════════════════════════════════════════════════════

// LoyaltyStatusQuery содержит параметры запроса статуса.
type LoyaltyStatusQuery struct {
	// UserID - покупатель, чей статус запрашивается.
	UserID int64

	// BypassCache - читать напрямую из хранилища, минуя кеш.
	BypassCache bool
}

// Validate проверяет корректность параметров запроса.
func (q LoyaltyStatusQuery) Validate() error {
	if q.UserID <= 0 {
		return shared.ErrInvalidUserID
	}
	return nil
}

// AchievementDTO - достижение в проекции статуса.
type AchievementDTO struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}

// BadgeDTO - бейдж в проекции статуса.
type BadgeDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	RequiredPoints int    `json:"required_points"`
	CashbackMinor  int64  `json:"cashback_minor"`
}

// LoyaltyStatusResult содержит проекцию статуса лояльности.
type LoyaltyStatusResult struct {
	// UserID - покупатель.
	UserID int64 `json:"user_id"`

	// TotalPoints - сумма баллов разблокированных достижений.
	TotalPoints int `json:"total_points"`

	// PurchaseCount - количество покупок.
	PurchaseCount int `json:"purchase_count"`

	// TotalSpentMinor - сумма покупок в минорных единицах.
	TotalSpentMinor int64 `json:"total_spent_minor"`

	// UnlockedAchievements - разблокированные достижения.
	UnlockedAchievements []AchievementDTO `json:"unlocked_achievements"`

	// NextAchievements - ближайшие доступные достижения (до 5).
	NextAchievements []AchievementDTO `json:"next_achievements"`

	// CurrentBadge - текущий бейдж (разблокированный с наибольшим
	// порогом), nil если ничего не разблокировано.
	CurrentBadge *BadgeDTO `json:"current_badge,omitempty"`

	// NextBadge - следующий бейдж по возрастанию порога.
	NextBadge *BadgeDTO `json:"next_badge,omitempty"`

	// PointsToNextBadge - сколько баллов осталось до следующего бейджа.
	PointsToNextBadge int `json:"points_to_next_badge"`

	// FromCache - проекция прочитана из кеша.
	FromCache bool `json:"-"`

	// GeneratedAt - время построения проекции.
	GeneratedAt time.Time `json:"generated_at"`
}

// maxNextAchievements ограничивает список ближайших достижений.
const maxNextAchievements = 5

// statusCacheTTL - время жизни проекции в кеше.
const statusCacheTTL = 5 * time.Minute

// LoyaltyStatusHandler обрабатывает запрос статуса лояльности.
type LoyaltyStatusHandler struct {
	store  loyalty.Store
	cache  loyalty.StatusCache
	logger *slog.Logger
}

// NewLoyaltyStatusHandler создаёт новый обработчик запроса.
// Кеш опционален: с nil-кешем каждый запрос идёт в хранилище.
func NewLoyaltyStatusHandler(store loyalty.Store, cache loyalty.StatusCache, logger *slog.Logger) *LoyaltyStatusHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoyaltyStatusHandler{
		store:  store,
		cache:  cache,
		logger: logger.With("handler", "loyalty_status"),
	}
}

// Handle возвращает проекцию статуса лояльности покупателя.
func (h *LoyaltyStatusHandler) Handle(ctx context.Context, query LoyaltyStatusQuery) (*LoyaltyStatusResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	userID := shared.UserID(query.UserID)

	// 1. Пробуем кеш. Ошибка кеша - это промах, а не отказ.
	if h.cache != nil && !query.BypassCache {
		if payload, err := h.cache.GetStatus(ctx, userID); err == nil {
			var cached LoyaltyStatusResult
			if err := json.Unmarshal(payload, &cached); err == nil {
				cached.FromCache = true
				return &cached, nil
			}
			h.logger.Warn("failed to decode cached status, rebuilding",
				"user_id", userID,
			)
		}
	}

	// 2. Строим проекцию из хранилища.
	result, err := h.build(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 3. Кладём в кеш. Неудача записи не влияет на ответ.
	if h.cache != nil {
		if payload, err := json.Marshal(result); err == nil {
			if err := h.cache.SetStatus(ctx, userID, payload, statusCacheTTL); err != nil {
				h.logger.Warn("failed to cache status",
					"user_id", userID,
					"error", err,
				)
			}
		}
	}

	return result, nil
}

// build собирает проекцию напрямую из хранилища.
func (h *LoyaltyStatusHandler) build(ctx context.Context, userID shared.UserID) (*LoyaltyStatusResult, error) {
	snapshot, err := h.store.GetUserSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	achievements, err := h.store.ListActiveAchievements(ctx)
	if err != nil {
		return nil, err
	}
	badges, err := h.store.ListActiveBadges(ctx)
	if err != nil {
		return nil, err
	}

	achievementUnlocks, err := h.store.ListUnlockedAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	badgeUnlocks, err := h.store.ListUnlockedBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	unlockedAt := make(map[shared.CatalogID]time.Time, len(achievementUnlocks))
	for _, u := range achievementUnlocks {
		unlockedAt[u.AchievementID] = u.UnlockedAt
	}
	unlockedBadges := make(map[shared.CatalogID]bool, len(badgeUnlocks))
	for _, u := range badgeUnlocks {
		unlockedBadges[u.BadgeID] = true
	}

	result := &LoyaltyStatusResult{
		UserID:          userID.Int64(),
		TotalPoints:     snapshot.TotalPoints.Int(),
		PurchaseCount:   snapshot.PurchaseCount,
		TotalSpentMinor: snapshot.TotalSpent.Minor(),
		GeneratedAt:     time.Now().UTC(),
	}

	// Достижения: разблокированные и ближайшие доступные.
	for _, a := range achievements {
		if at, ok := unlockedAt[a.ID]; ok {
			t := at
			result.UnlockedAchievements = append(result.UnlockedAchievements, AchievementDTO{
				ID:          a.ID.Int64(),
				Name:        a.Name,
				Description: a.Description,
				Points:      a.Points.Int(),
				UnlockedAt:  &t,
			})
			continue
		}
		if len(result.NextAchievements) < maxNextAchievements {
			result.NextAchievements = append(result.NextAchievements, AchievementDTO{
				ID:          a.ID.Int64(),
				Name:        a.Name,
				Description: a.Description,
				Points:      a.Points.Int(),
			})
		}
	}

	// Бейджи: текущий, следующий и остаток баллов.
	if current := loyalty.CurrentBadge(badges, unlockedBadges); current != nil {
		result.CurrentBadge = badgeDTO(current)
	}
	next := loyalty.NextBadge(badges, unlockedBadges)
	if next != nil {
		result.NextBadge = badgeDTO(next)
		result.PointsToNextBadge = loyalty.PointsToNext(next, snapshot.TotalPoints).Int()
	}

	return result, nil
}

// badgeDTO конвертирует запись каталога в DTO.
func badgeDTO(b *loyalty.Badge) *BadgeDTO {
	return &BadgeDTO{
		ID:             b.ID.Int64(),
		Name:           b.Name,
		Description:    b.Description,
		RequiredPoints: b.RequiredPoints.Int(),
		CashbackMinor:  b.Cashback.Minor(),
	}
}
