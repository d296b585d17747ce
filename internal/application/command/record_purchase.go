// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bikemart-ng/loyalty-hub/internal/application/cascade"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD PURCHASE COMMAND
// Ingestion entry point: validates the purchase, stores it durably,
// then triggers the reward cascade. The purchase write and the cascade
// are separate stages; a cascade failure never loses the purchase.
// ══════════════════════════════════════════════════════════════════════════════

// RecordPurchaseCommand contains the data needed to record a purchase.
type RecordPurchaseCommand struct {
	// PurchaseID is an optional caller-supplied identifier.
	// Generated when empty; repeats of the same ID are rejected,
	// which makes retried submissions safe.
	PurchaseID string

	// UserID is the customer making the purchase.
	UserID int64

	// AmountMinor is the purchase amount in minor units (kobo).
	AmountMinor int64

	// Currency is the 3-letter currency code. Defaults to NGN.
	Currency string

	// Metadata holds optional attributes (source, SKU, channel).
	Metadata map[string]string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c RecordPurchaseCommand) Validate() error {
	if c.UserID <= 0 {
		return shared.ErrInvalidUserID
	}
	if c.AmountMinor <= 0 {
		return shared.ErrInvalidAmount
	}
	if c.Currency != "" {
		if _, err := shared.NewCurrency(c.Currency); err != nil {
			return err
		}
	}
	return nil
}

// RecordPurchaseResult contains the result of recording a purchase.
type RecordPurchaseResult struct {
	// PurchaseID is the identifier of the stored purchase.
	PurchaseID string

	// Cascade is the outcome of the reward cascade run, nil when the
	// cascade failed after the purchase was stored.
	Cascade *cascade.CascadeResult

	// RecordedAt is when the purchase was stored.
	RecordedAt time.Time
}

// RecordPurchaseHandler handles purchase recording.
type RecordPurchaseHandler struct {
	store        loyalty.Store
	orchestrator *cascade.Orchestrator
	eventBus     shared.EventPublisher
	logger       *slog.Logger
}

// NewRecordPurchaseHandler creates a new handler.
func NewRecordPurchaseHandler(
	store loyalty.Store,
	orchestrator *cascade.Orchestrator,
	eventBus shared.EventPublisher,
	logger *slog.Logger,
) *RecordPurchaseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordPurchaseHandler{
		store:        store,
		orchestrator: orchestrator,
		eventBus:     eventBus,
		logger:       logger.With("handler", "record_purchase"),
	}
}

// Handle records the purchase and runs the reward cascade.
func (h *RecordPurchaseHandler) Handle(ctx context.Context, cmd RecordPurchaseCommand) (*RecordPurchaseResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	purchaseID := cmd.PurchaseID
	if purchaseID == "" {
		purchaseID = uuid.New().String()
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	currency, err := shared.NewCurrency(cmd.Currency)
	if err != nil {
		return nil, err
	}

	purchase, err := loyalty.NewPurchase(loyalty.NewPurchaseParams{
		ID:       purchaseID,
		UserID:   userID,
		Amount:   shared.Money(cmd.AmountMinor),
		Currency: currency,
		Metadata: cmd.Metadata,
	})
	if err != nil {
		return nil, err
	}

	// Stage 1: durable write. Everything after this point builds on a
	// purchase that is already on disk.
	if err := h.store.RecordPurchase(ctx, purchase); err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}

	h.logger.Info("purchase recorded",
		"purchase_id", purchase.ID,
		"user_id", purchase.UserID,
		"amount", purchase.Amount,
		"currency", purchase.Currency,
	)

	if h.eventBus != nil {
		event := shared.NewPurchaseRecordedEvent(purchase.ID, purchase.UserID, purchase.Amount, purchase.Currency)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		if err := h.eventBus.Publish(event); err != nil {
			h.logger.Warn("failed to publish purchase event",
				"purchase_id", purchase.ID,
				"error", err,
			)
		}
	}

	result := &RecordPurchaseResult{
		PurchaseID: purchase.ID,
		RecordedAt: purchase.CreatedAt,
	}

	// Stage 2: reward cascade. A failure here leaves the purchase in
	// place; the next purchase (or a manual retry) re-evaluates the
	// same counters and converges to the same unlocks.
	if h.orchestrator != nil {
		cascadeResult, err := h.orchestrator.Execute(ctx, cascade.CascadeInput{
			UserID:       purchase.UserID,
			PurchaseID:   purchase.ID,
			TriggerEvent: "purchase_recorded",
		})
		if err != nil {
			h.logger.Error("reward cascade failed",
				"purchase_id", purchase.ID,
				"user_id", purchase.UserID,
				"error", err,
			)
			return result, nil
		}
		result.Cascade = cascadeResult
	}

	return result, nil
}
