// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/bikemart-ng/loyalty-hub/internal/application/cascade"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PURCHASE RECORDED HANDLER
// Обрабатывает событие зафиксированной покупки: запускает каскад
// наград для покупателя. Используется воркером, когда покупки
// приходят через шину событий, а не через синхронную команду.
//
// Событие публикуется ПОСЛЕ записи покупки в хранилище, поэтому
// обработчик всегда видит покупку в счётчиках. Повторная доставка
// события безопасна: каскад идемпотентен.
// ═══════════════════════════════════════════════════════════════════════════

// OnPurchaseRecordedHandler обрабатывает событие фиксации покупки.
type OnPurchaseRecordedHandler struct {
	orchestrator *cascade.Orchestrator

	// Logger для структурированного логирования
	logger *slog.Logger

	// Configuration
	config PurchaseRecordedConfig
}

// PurchaseRecordedConfig содержит конфигурацию обработчика.
type PurchaseRecordedConfig struct {
	// CascadeTimeout - максимальное время одного каскада.
	CascadeTimeout time.Duration
}

// DefaultPurchaseRecordedConfig возвращает конфигурацию по умолчанию.
func DefaultPurchaseRecordedConfig() PurchaseRecordedConfig {
	return PurchaseRecordedConfig{
		CascadeTimeout: 30 * time.Second,
	}
}

// NewOnPurchaseRecordedHandler создаёт новый обработчик.
func NewOnPurchaseRecordedHandler(
	orchestrator *cascade.Orchestrator,
	logger *slog.Logger,
	config PurchaseRecordedConfig,
) *OnPurchaseRecordedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.CascadeTimeout <= 0 {
		config.CascadeTimeout = DefaultPurchaseRecordedConfig().CascadeTimeout
	}

	return &OnPurchaseRecordedHandler{
		orchestrator: orchestrator,
		logger:       logger.With("handler", "on_purchase_recorded"),
		config:       config,
	}
}

// Handle обрабатывает событие фиксации покупки.
// Реализует интерфейс shared.EventHandler.
func (h *OnPurchaseRecordedHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.CascadeTimeout)
	defer cancel()

	purchaseID, userID, ok := extractPurchase(event)
	if !ok {
		h.logger.Warn("received malformed purchase event",
			"event_type", event.EventType(),
		)
		return nil
	}

	h.logger.Info("processing purchase recorded event",
		"purchase_id", purchaseID,
		"user_id", userID,
	)

	result, err := h.orchestrator.Execute(ctx, cascade.CascadeInput{
		UserID:       shared.UserID(userID),
		PurchaseID:   purchaseID,
		TriggerEvent: "purchase_recorded",
	})
	if err != nil {
		h.logger.Error("reward cascade failed",
			"purchase_id", purchaseID,
			"user_id", userID,
			"error", err,
		)
		return err
	}

	if result.HasNewUnlocks() {
		h.logger.Info("purchase event processed with new unlocks",
			"user_id", userID,
			"new_achievements", len(result.UnlockedAchievements),
			"new_badges", len(result.UnlockedBadges),
		)
	}

	return nil
}

// extractPurchase достаёт идентификаторы покупки из события. События из
// этого же процесса приходят конкретным типом; события из Redis
// восстанавливаются из конверта и несут только payload.
func extractPurchase(event shared.Event) (purchaseID string, userID int64, ok bool) {
	if e, isConcrete := event.(shared.PurchaseRecordedEvent); isConcrete {
		return e.PurchaseID, e.UserID, true
	}

	payload := event.Payload()
	if payload == nil {
		return "", 0, false
	}

	purchaseID, _ = payload["purchase_id"].(string)

	switch v := payload["user_id"].(type) {
	case int64:
		userID = v
	case float64:
		// JSON числа декодируются как float64
		userID = int64(v)
	}

	if purchaseID == "" || userID <= 0 {
		return "", 0, false
	}
	return purchaseID, userID, true
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnPurchaseRecordedHandler) EventType() shared.EventType {
	return shared.EventPurchaseRecorded
}
