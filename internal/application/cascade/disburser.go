package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/payment"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CASHBACK DISBURSER
// Pays cashback for a badge unlock exactly once.
//
// The guard is the unlock row itself: cashback_awarded stays 0 until a
// payment succeeds, and the marking write is conditional on it still
// being 0. The gateway call additionally carries an idempotency key
// derived from (user, badge), so even a marking race cannot produce a
// second payout on a sane gateway.
// ══════════════════════════════════════════════════════════════════════════════

// DisbursementStatus classifies the outcome of one disbursement attempt.
type DisbursementStatus string

const (
	// DisbursementPaid - the gateway accepted the payout and the record was marked.
	DisbursementPaid DisbursementStatus = "paid"
	// DisbursementAlreadyAwarded - the record was already paid; nothing was sent.
	DisbursementAlreadyAwarded DisbursementStatus = "already_awarded"
	// DisbursementSkipped - nothing to pay (no cashback configured, or no unlock record).
	DisbursementSkipped DisbursementStatus = "skipped"
	// DisbursementFailed - the gateway call failed; the record stays unpaid.
	DisbursementFailed DisbursementStatus = "failed"
)

// DisbursementOutcome describes what happened to one badge's cashback.
type DisbursementOutcome struct {
	BadgeID        shared.CatalogID
	Status         DisbursementStatus
	Amount         shared.Money
	TransactionRef string
	Err            error
}

// Disburser pays badge cashback through the payment gateway.
type Disburser struct {
	store    loyalty.Store
	gateway  payment.Gateway
	logger   *slog.Logger
	currency shared.Currency
}

// NewDisburser creates a new cashback disburser.
func NewDisburser(store loyalty.Store, gateway payment.Gateway, logger *slog.Logger) *Disburser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Disburser{
		store:    store,
		gateway:  gateway,
		logger:   logger.With("component", "cashback_disburser"),
		currency: shared.DefaultCurrency,
	}
}

// Disburse attempts to pay the cashback for one badge unlock.
//
// The method never returns an error to the caller; the outcome carries
// the failure so the cascade can log it and keep going. A failed
// attempt leaves the unlock record unpaid and retryable. The badge
// unlock itself is never rolled back here.
func (d *Disburser) Disburse(ctx context.Context, userID shared.UserID, badge *loyalty.Badge) DisbursementOutcome {
	outcome := DisbursementOutcome{
		BadgeID: badge.ID,
		Amount:  badge.Cashback,
	}

	if !badge.HasCashback() {
		outcome.Status = DisbursementSkipped
		return outcome
	}

	// Re-read the unlock record right before paying. This is the
	// idempotency guard: a record that is missing or already marked
	// produces a no-op, not a payment.
	unlockRec, err := d.store.GetBadgeUnlock(ctx, userID, badge.ID)
	if err != nil {
		if shared.IsNotFound(err) {
			d.logger.Warn("no unlock record for cashback, skipping",
				"user_id", userID,
				"badge_id", badge.ID,
			)
			outcome.Status = DisbursementSkipped
			return outcome
		}
		outcome.Status = DisbursementFailed
		outcome.Err = fmt.Errorf("failed to read unlock record: %w", err)
		return outcome
	}

	if unlockRec.IsAwarded() {
		outcome.Status = DisbursementAlreadyAwarded
		outcome.TransactionRef = unlockRec.TransactionRef
		return outcome
	}

	result, err := d.gateway.Disburse(ctx, payment.DisbursementRequest{
		UserID:         userID,
		Amount:         badge.Cashback,
		Currency:       d.currency,
		IdempotencyKey: IdempotencyKey(userID, badge.ID),
		Reason:         fmt.Sprintf("Cashback for unlocking %s badge", badge.Name),
	})
	if err != nil {
		// The payment did not happen. cashback_awarded stays 0 and a
		// later run retries this badge.
		outcome.Status = DisbursementFailed
		outcome.Err = err
		return outcome
	}

	marked, err := d.store.SetCashbackAwarded(
		ctx, userID, badge.ID, badge.Cashback, result.TransactionRef, result.ProcessedAt)
	if err != nil {
		// The money went out but the mark failed. The gateway-side
		// idempotency key keeps a retry from paying twice, so surface
		// this as a failure and let the retry converge the record.
		outcome.Status = DisbursementFailed
		outcome.Err = fmt.Errorf("payment sent but record not marked: %w", err)
		return outcome
	}
	if !marked {
		// Lost a marking race with another process. That process paid
		// with the same idempotency key, so no double payout occurred.
		outcome.Status = DisbursementAlreadyAwarded
		return outcome
	}

	d.logger.Info("cashback disbursed",
		"user_id", userID,
		"badge_id", badge.ID,
		"amount", badge.Cashback,
		"transaction_ref", result.TransactionRef,
		"provider", d.gateway.Name(),
	)

	outcome.Status = DisbursementPaid
	outcome.TransactionRef = result.TransactionRef
	return outcome
}

// IdempotencyKey builds the gateway idempotency key for a badge payout.
// Stable across retries: the same unlock always sends the same key.
func IdempotencyKey(userID shared.UserID, badgeID shared.CatalogID) string {
	return fmt.Sprintf("cashback-%d-%d", userID.Int64(), badgeID.Int64())
}
