// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Purchase events
	EventPurchaseRecorded EventType = "purchase.recorded"

	// Loyalty events
	EventAchievementUnlocked EventType = "loyalty.achievement_unlocked"
	EventBadgeUnlocked       EventType = "loyalty.badge_unlocked"
	EventPointsRefreshed     EventType = "loyalty.points_refreshed"

	// Cashback events
	EventCashbackDisbursed EventType = "cashback.disbursed"
	EventCashbackFailed    EventType = "cashback.failed"

	// System events
	EventCatalogSeeded EventType = "system.catalog_seeded"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Purchase Events
// ═══════════════════════════════════════════════════════════════════════════

// PurchaseRecordedEvent is emitted after a purchase has been durably stored.
// It is the trigger for the reward cascade.
type PurchaseRecordedEvent struct {
	BaseEvent
	PurchaseID  string `json:"purchase_id"`
	UserID      int64  `json:"user_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// Payload implements Event interface.
func (e PurchaseRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"purchase_id":  e.PurchaseID,
		"user_id":      e.UserID,
		"amount_minor": e.AmountMinor,
		"currency":     e.Currency,
	}
}

// NewPurchaseRecordedEvent creates a new PurchaseRecordedEvent.
func NewPurchaseRecordedEvent(purchaseID string, userID UserID, amount Money, currency Currency) PurchaseRecordedEvent {
	return PurchaseRecordedEvent{
		BaseEvent:   NewBaseEvent(EventPurchaseRecorded, userID.String()),
		PurchaseID:  purchaseID,
		UserID:      userID.Int64(),
		AmountMinor: amount.Minor(),
		Currency:    currency.String(),
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Loyalty Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted when a user unlocks an achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	UserID          int64  `json:"user_id"`
	AchievementID   int64  `json:"achievement_id"`
	AchievementName string `json:"achievement_name"`
	PointsAwarded   int    `json:"points_awarded"`
	TotalPoints     int    `json:"total_points"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":          e.UserID,
		"achievement_id":   e.AchievementID,
		"achievement_name": e.AchievementName,
		"points_awarded":   e.PointsAwarded,
		"total_points":     e.TotalPoints,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID UserID, achievementID CatalogID, name string, points, total Points) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(EventAchievementUnlocked, userID.String()),
		UserID:          userID.Int64(),
		AchievementID:   achievementID.Int64(),
		AchievementName: name,
		PointsAwarded:   points.Int(),
		TotalPoints:     total.Int(),
	}
}

// BadgeUnlockedEvent is emitted when a user's points reach a badge threshold.
type BadgeUnlockedEvent struct {
	BaseEvent
	UserID         int64  `json:"user_id"`
	BadgeID        int64  `json:"badge_id"`
	BadgeName      string `json:"badge_name"`
	RequiredPoints int    `json:"required_points"`
	CashbackMinor  int64  `json:"cashback_minor"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"badge_id":        e.BadgeID,
		"badge_name":      e.BadgeName,
		"required_points": e.RequiredPoints,
		"cashback_minor":  e.CashbackMinor,
	}
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(userID UserID, badgeID CatalogID, name string, required Points, cashback Money) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent:      NewBaseEvent(EventBadgeUnlocked, userID.String()),
		UserID:         userID.Int64(),
		BadgeID:        badgeID.Int64(),
		BadgeName:      name,
		RequiredPoints: required.Int(),
		CashbackMinor:  cashback.Minor(),
	}
}

// PointsRefreshedEvent is emitted when a user's total points change.
type PointsRefreshedEvent struct {
	BaseEvent
	UserID      int64 `json:"user_id"`
	TotalPoints int   `json:"total_points"`
}

// Payload implements Event interface.
func (e PointsRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"total_points": e.TotalPoints,
	}
}

// NewPointsRefreshedEvent creates a new PointsRefreshedEvent.
func NewPointsRefreshedEvent(userID UserID, total Points) PointsRefreshedEvent {
	return PointsRefreshedEvent{
		BaseEvent:   NewBaseEvent(EventPointsRefreshed, userID.String()),
		UserID:      userID.Int64(),
		TotalPoints: total.Int(),
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Cashback Events
// ═══════════════════════════════════════════════════════════════════════════

// CashbackDisbursedEvent is emitted after cashback has been paid out and
// the unlock record marked as awarded.
type CashbackDisbursedEvent struct {
	BaseEvent
	UserID         int64  `json:"user_id"`
	BadgeID        int64  `json:"badge_id"`
	AmountMinor    int64  `json:"amount_minor"`
	TransactionRef string `json:"transaction_ref"`
}

// Payload implements Event interface.
func (e CashbackDisbursedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"badge_id":        e.BadgeID,
		"amount_minor":    e.AmountMinor,
		"transaction_ref": e.TransactionRef,
	}
}

// NewCashbackDisbursedEvent creates a new CashbackDisbursedEvent.
func NewCashbackDisbursedEvent(userID UserID, badgeID CatalogID, amount Money, txRef string) CashbackDisbursedEvent {
	return CashbackDisbursedEvent{
		BaseEvent:      NewBaseEvent(EventCashbackDisbursed, userID.String()),
		UserID:         userID.Int64(),
		BadgeID:        badgeID.Int64(),
		AmountMinor:    amount.Minor(),
		TransactionRef: txRef,
	}
}

// CashbackFailedEvent is emitted when a disbursement attempt fails.
// The badge unlock is kept; a later retry may still pay out.
type CashbackFailedEvent struct {
	BaseEvent
	UserID      int64  `json:"user_id"`
	BadgeID     int64  `json:"badge_id"`
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason"`
}

// Payload implements Event interface.
func (e CashbackFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"badge_id":     e.BadgeID,
		"amount_minor": e.AmountMinor,
		"reason":       e.Reason,
	}
}

// NewCashbackFailedEvent creates a new CashbackFailedEvent.
func NewCashbackFailedEvent(userID UserID, badgeID CatalogID, amount Money, reason string) CashbackFailedEvent {
	return CashbackFailedEvent{
		BaseEvent:   NewBaseEvent(EventCashbackFailed, userID.String()),
		UserID:      userID.Int64(),
		BadgeID:     badgeID.Int64(),
		AmountMinor: amount.Minor(),
		Reason:      reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
