// Package payment содержит контракт платёжного шлюза для выплат кэшбэка.
// Реализации находятся в infrastructure/payment.
package payment

import (
	"context"
	"time"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT GATEWAY
// ══════════════════════════════════════════════════════════════════════════════

// DisbursementRequest - запрос на выплату кэшбэка покупателю.
type DisbursementRequest struct {
	// UserID - получатель выплаты.
	UserID shared.UserID

	// Amount - сумма выплаты в минорных единицах.
	Amount shared.Money

	// Currency - валюта выплаты.
	Currency shared.Currency

	// IdempotencyKey - ключ идемпотентности на стороне шлюза.
	// Повтор с тем же ключом не создаёт вторую выплату.
	IdempotencyKey string

	// Reason - человекочитаемое назначение выплаты.
	Reason string
}

// Validate проверяет корректность запроса.
func (r DisbursementRequest) Validate() error {
	if !r.UserID.IsValid() {
		return shared.ErrInvalidUserID
	}
	if !r.Amount.IsPositive() {
		return shared.ErrInvalidAmount
	}
	if r.IdempotencyKey == "" {
		return shared.NewDomainError("payment", "Validate", shared.ErrEmptyValue, "idempotency key is required")
	}
	return nil
}

// DisbursementResult - результат успешной выплаты.
type DisbursementResult struct {
	// TransactionRef - референс транзакции на стороне шлюза.
	TransactionRef string

	// ProcessedAt - время обработки выплаты шлюзом.
	ProcessedAt time.Time
}

// Gateway определяет контракт платёжного шлюза.
//
// Disburse либо возвращает результат с референсом транзакции, либо
// ошибку. Ошибка означает, что выплата НЕ считается прошедшей:
// вызывающий оставляет запись невыплаченной и может повторить позже.
type Gateway interface {
	// Disburse выполняет выплату кэшбэка.
	Disburse(ctx context.Context, req DisbursementRequest) (*DisbursementResult, error)

	// Name возвращает имя провайдера для логирования.
	Name() string
}
