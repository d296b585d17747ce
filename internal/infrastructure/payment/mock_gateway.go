// Package payment implements payment gateway clients for cashback
// disbursement. It ships a mock provider for development and testing and
// an HTTP client for a real disbursement API.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/payment"
)

// ══════════════════════════════════════════════════════════════════════════════
// MOCK GATEWAY
// ══════════════════════════════════════════════════════════════════════════════

// MockGateway simulates a payment provider. Every accepted disbursement
// gets a distinct MOCK-<user>-<uuid> transaction reference. Repeated
// calls with the same idempotency key return the original reference,
// mirroring how real providers deduplicate.
type MockGateway struct {
	logger *slog.Logger

	mu        sync.Mutex
	processed map[string]payment.DisbursementResult
	failNext  error
	failAll   error
}

// NewMockGateway creates a mock payment gateway.
func NewMockGateway(logger *slog.Logger) *MockGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockGateway{
		logger:    logger.With("component", "mock_gateway"),
		processed: make(map[string]payment.DisbursementResult),
	}
}

var _ payment.Gateway = (*MockGateway)(nil)

// Name implements payment.Gateway.
func (g *MockGateway) Name() string {
	return "mock"
}

// Disburse simulates a cashback payout.
func (g *MockGateway) Disburse(ctx context.Context, req payment.DisbursementRequest) (*payment.DisbursementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failAll != nil {
		return nil, g.failAll
	}
	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		return nil, err
	}

	if result, seen := g.processed[req.IdempotencyKey]; seen {
		g.logger.Info("duplicate disbursement suppressed",
			"user_id", req.UserID,
			"idempotency_key", req.IdempotencyKey,
			"transaction_ref", result.TransactionRef,
		)
		return &result, nil
	}

	// The reference must be distinct per disbursement: several badges
	// can be paid for one user within the same second.
	now := time.Now().UTC()
	result := payment.DisbursementResult{
		TransactionRef: fmt.Sprintf("MOCK-%d-%s", req.UserID.Int64(), uuid.NewString()),
		ProcessedAt:    now,
	}
	g.processed[req.IdempotencyKey] = result

	g.logger.Info("mock payment provider processed cashback",
		"user_id", req.UserID,
		"amount", req.Amount.String(),
		"currency", req.Currency,
		"transaction_ref", result.TransactionRef,
	)

	return &result, nil
}

// FailNext makes the next Disburse call fail with the given error.
// Test hook.
func (g *MockGateway) FailNext(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = err
}

// FailAll makes every Disburse call fail until reset with FailAll(nil).
// Test hook.
func (g *MockGateway) FailAll(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failAll = err
}

// ProcessedCount returns the number of distinct disbursements processed.
func (g *MockGateway) ProcessedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.processed)
}
