package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LOYALTY CHANGED HANDLER
// Инвалидирует кешированную проекцию статуса лояльности, когда у
// покупателя меняется состояние: разблокировано достижение или бейдж,
// выплачен кэшбэк. Кеш не участвует в корректности каскада, поэтому
// неудачная инвалидация - это warning, а не ошибка обработки.
// ═══════════════════════════════════════════════════════════════════════════

// OnLoyaltyChangedHandler сбрасывает кеш статуса по событиям изменения.
type OnLoyaltyChangedHandler struct {
	cache  loyalty.StatusCache
	logger *slog.Logger
}

// NewOnLoyaltyChangedHandler создаёт новый обработчик.
func NewOnLoyaltyChangedHandler(cache loyalty.StatusCache, logger *slog.Logger) *OnLoyaltyChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnLoyaltyChangedHandler{
		cache:  cache,
		logger: logger.With("handler", "on_loyalty_changed"),
	}
}

// Handle обрабатывает событие изменения состояния лояльности.
// Реализует интерфейс shared.EventHandler.
func (h *OnLoyaltyChangedHandler) Handle(event shared.Event) error {
	if h.cache == nil {
		return nil
	}

	var userID shared.UserID
	switch e := event.(type) {
	case shared.AchievementUnlockedEvent:
		userID = shared.UserID(e.UserID)
	case shared.BadgeUnlockedEvent:
		userID = shared.UserID(e.UserID)
	case shared.CashbackDisbursedEvent:
		userID = shared.UserID(e.UserID)
	default:
		// События из Redis восстанавливаются из конверта, поэтому
		// идентификатор достаём из payload.
		userID = userIDFromPayload(event)
		if !userID.IsValid() {
			h.logger.Warn("received unexpected event type",
				"event_type", event.EventType(),
			)
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.cache.Invalidate(ctx, userID); err != nil {
		h.logger.Warn("failed to invalidate status cache",
			"user_id", userID,
			"event_type", event.EventType(),
			"error", err,
		)
	}

	return nil
}

// EventTypes возвращает типы событий, на которые подписывается handler.
func (h *OnLoyaltyChangedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventAchievementUnlocked,
		shared.EventBadgeUnlocked,
		shared.EventCashbackDisbursed,
	}
}

// userIDFromPayload достаёт идентификатор покупателя из payload события.
func userIDFromPayload(event shared.Event) shared.UserID {
	payload := event.Payload()
	if payload == nil {
		return 0
	}
	switch v := payload["user_id"].(type) {
	case int64:
		return shared.UserID(v)
	case float64:
		return shared.UserID(int64(v))
	default:
		return 0
	}
}
