package payment

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainpayment "github.com/bikemart-ng/loyalty-hub/internal/domain/payment"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

func validRequest() domainpayment.DisbursementRequest {
	return domainpayment.DisbursementRequest{
		UserID:         1,
		Amount:         30000,
		Currency:       shared.DefaultCurrency,
		IdempotencyKey: "cashback-1-1",
		Reason:         "Cashback for unlocking Bronze Member badge",
	}
}

func TestMockGateway_Disburse(t *testing.T) {
	gw := NewMockGateway(nil)

	result, err := gw.Disburse(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, result.TransactionRef)
	assert.Contains(t, result.TransactionRef, "MOCK-")
	assert.False(t, result.ProcessedAt.IsZero())
	assert.Equal(t, 1, gw.ProcessedCount())
}

func TestMockGateway_Validation(t *testing.T) {
	gw := NewMockGateway(nil)
	ctx := context.Background()

	req := validRequest()
	req.UserID = 0
	_, err := gw.Disburse(ctx, req)
	assert.ErrorIs(t, err, shared.ErrInvalidUserID)

	req = validRequest()
	req.Amount = 0
	_, err = gw.Disburse(ctx, req)
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)

	req = validRequest()
	req.IdempotencyKey = ""
	_, err = gw.Disburse(ctx, req)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	assert.Equal(t, 0, gw.ProcessedCount())
}

func TestMockGateway_IdempotencyDedup(t *testing.T) {
	gw := NewMockGateway(nil)
	ctx := context.Background()

	first, err := gw.Disburse(ctx, validRequest())
	require.NoError(t, err)

	// Same key: same transaction, no second payment.
	second, err := gw.Disburse(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, first.TransactionRef, second.TransactionRef)
	assert.Equal(t, first.ProcessedAt, second.ProcessedAt)
	assert.Equal(t, 1, gw.ProcessedCount())

	// Different key: new payment.
	req := validRequest()
	req.IdempotencyKey = "cashback-1-2"
	third, err := gw.Disburse(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.TransactionRef, third.TransactionRef)
	assert.Equal(t, 2, gw.ProcessedCount())
}

func TestMockGateway_DistinctRefsWithinSameSecond(t *testing.T) {
	gw := NewMockGateway(nil)
	ctx := context.Background()

	// One user paid for several badges back to back, as a multi-tier
	// cascade does. Every payment must carry its own reference.
	refs := make(map[string]bool)
	for i := 1; i <= 4; i++ {
		req := validRequest()
		req.IdempotencyKey = fmt.Sprintf("cashback-1-%d", i)

		result, err := gw.Disburse(ctx, req)
		require.NoError(t, err)
		assert.False(t, refs[result.TransactionRef], "transaction ref %q reused", result.TransactionRef)
		refs[result.TransactionRef] = true
	}
	assert.Equal(t, 4, gw.ProcessedCount())
}

func TestMockGateway_FailNext(t *testing.T) {
	gw := NewMockGateway(nil)
	ctx := context.Background()

	gw.FailNext(shared.ErrGatewayTimeout)

	_, err := gw.Disburse(ctx, validRequest())
	assert.ErrorIs(t, err, shared.ErrGatewayTimeout)
	assert.Equal(t, 0, gw.ProcessedCount())

	// One-shot: the retry goes through.
	_, err = gw.Disburse(ctx, validRequest())
	assert.NoError(t, err)
	assert.Equal(t, 1, gw.ProcessedCount())
}

func TestMockGateway_FailAll(t *testing.T) {
	gw := NewMockGateway(nil)
	ctx := context.Background()

	gw.FailAll(shared.ErrGatewayUnavailable)

	for i := 0; i < 3; i++ {
		_, err := gw.Disburse(ctx, validRequest())
		assert.ErrorIs(t, err, shared.ErrGatewayUnavailable)
	}

	gw.FailAll(nil)

	_, err := gw.Disburse(ctx, validRequest())
	assert.NoError(t, err)
	assert.Equal(t, 1, gw.ProcessedCount())
}

func TestMockGateway_RespectsContext(t *testing.T) {
	gw := NewMockGateway(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Disburse(ctx, validRequest())
	assert.ErrorIs(t, err, context.Canceled)
}
