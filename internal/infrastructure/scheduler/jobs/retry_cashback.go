// Package jobs contains the scheduled background jobs of the loyalty hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bikemart-ng/loyalty-hub/internal/application/cascade"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
)

// ══════════════════════════════════════════════════════════════════════════════
// RETRY CASHBACK JOB
// Re-attempts cashback disbursement for badge unlocks left unpaid by a
// gateway failure. The unlock itself is never rolled back, so the rows
// with cashback_awarded_minor = 0 accumulate until a retry succeeds.
// ══════════════════════════════════════════════════════════════════════════════

// RetryCashbackJob walks users with unpaid badge unlocks and retries
// their disbursements through the cascade orchestrator.
type RetryCashbackJob struct {
	store        loyalty.Store
	orchestrator *cascade.Orchestrator
	logger       *slog.Logger

	// batchSize bounds how many users one run touches.
	batchSize int
}

// RetryCashbackConfig contains configuration for the job.
type RetryCashbackConfig struct {
	// BatchSize is the maximum number of users processed per run.
	BatchSize int
}

// NewRetryCashbackJob creates a new retry job.
func NewRetryCashbackJob(
	store loyalty.Store,
	orchestrator *cascade.Orchestrator,
	logger *slog.Logger,
	config RetryCashbackConfig,
) *RetryCashbackJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	return &RetryCashbackJob{
		store:        store,
		orchestrator: orchestrator,
		logger:       logger.With("job", "retry_cashback"),
		batchSize:    config.BatchSize,
	}
}

// Name returns the unique name of the job.
func (j *RetryCashbackJob) Name() string {
	return "retry_cashback"
}

// Description returns a human-readable description.
func (j *RetryCashbackJob) Description() string {
	return "retries cashback disbursement for unpaid badge unlocks"
}

// Run executes one retry pass.
func (j *RetryCashbackJob) Run(ctx context.Context) error {
	users, err := j.store.ListPendingCashbackUsers(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("list pending cashback users: %w", err)
	}

	if len(users) == 0 {
		return nil
	}

	j.logger.Info("retrying pending cashback", "users", len(users))

	var paid, failed int
	for _, userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		outcomes, err := j.orchestrator.RetryPendingCashback(ctx, userID)
		if err != nil {
			failed++
			j.logger.Error("cashback retry failed",
				"user_id", userID,
				"error", err,
			)
			continue
		}

		for _, outcome := range outcomes {
			switch outcome.Status {
			case cascade.DisbursementPaid:
				paid++
			case cascade.DisbursementFailed:
				failed++
			}
		}
	}

	j.logger.Info("cashback retry pass completed",
		"users", len(users),
		"paid", paid,
		"failed", failed,
	)

	return nil
}
