package payment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/payment"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
	"github.com/bikemart-ng/loyalty-hub/pkg/circuitbreaker"
	"github.com/bikemart-ng/loyalty-hub/pkg/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// HTTPGatewayConfig contains configuration for the HTTP payment gateway.
type HTTPGatewayConfig struct {
	// BaseURL is the disbursement API base URL
	BaseURL string

	// APIKey is the bearer token for authentication
	APIKey string

	// ProviderName identifies the provider in logs and records
	ProviderName string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultHTTPGatewayConfig returns sensible defaults.
func DefaultHTTPGatewayConfig(baseURL string) HTTPGatewayConfig {
	return HTTPGatewayConfig{
		BaseURL:      baseURL,
		ProviderName: "http",
		Timeout:      30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP GATEWAY
// ══════════════════════════════════════════════════════════════════════════════

// HTTPGateway is a payment gateway client over a REST disbursement API.
// Calls go through a circuit breaker, then a retrier: the breaker stops
// hammering a dead provider, the retrier absorbs transient errors.
type HTTPGateway struct {
	config     HTTPGatewayConfig
	httpClient *http.Client
	logger     *slog.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
}

// NewHTTPGateway creates a new HTTP payment gateway client.
func NewHTTPGateway(config HTTPGatewayConfig) *HTTPGateway {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ProviderName == "" {
		config.ProviderName = "http"
	}

	logger := config.Logger.With("component", "http_gateway")

	breaker := circuitbreaker.GatewayBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})

	return &HTTPGateway{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:  logger,
		retrier: retry.GatewayRetrier(),
		breaker: breaker,
	}
}

var _ payment.Gateway = (*HTTPGateway)(nil)

// Name implements payment.Gateway.
func (g *HTTPGateway) Name() string {
	return g.config.ProviderName
}

// disbursementPayload is the wire format of a disbursement request.
type disbursementPayload struct {
	UserID         int64  `json:"user_id"`
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotency_key"`
	Reason         string `json:"reason,omitempty"`
}

// disbursementResponse is the wire format of a disbursement result.
type disbursementResponse struct {
	Status      string    `json:"status"`
	Reference   string    `json:"reference"`
	ProcessedAt time.Time `json:"processed_at"`
	Message     string    `json:"message,omitempty"`
}

// Disburse sends a cashback payout through the disbursement API.
// The idempotency key travels as a header as well, so a retried request
// that reached the provider the first time does not pay twice.
func (g *HTTPGateway) Disburse(ctx context.Context, req payment.DisbursementRequest) (*payment.DisbursementResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *payment.DisbursementResult

	err := g.retrier.Do(ctx, func(ctx context.Context) error {
		return g.breaker.Execute(ctx, func(ctx context.Context) error {
			res, err := g.doDisburse(ctx, req)
			if err != nil {
				if shared.IsRetryable(err) {
					return retry.Retryable(err)
				}
				return retry.Permanent(err)
			}
			result = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (g *HTTPGateway) doDisburse(ctx context.Context, req payment.DisbursementRequest) (*payment.DisbursementResult, error) {
	payload := disbursementPayload{
		UserID:         req.UserID.Int64(),
		AmountMinor:    req.Amount.Minor(),
		Currency:       req.Currency.String(),
		IdempotencyKey: req.IdempotencyKey,
		Reason:         req.Reason,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	fullURL := g.config.BaseURL + "/v1/disbursements"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if g.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, shared.ErrGatewayTimeout
		}
		return nil, shared.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.ErrGatewayInvalidResponse
	}

	if err := g.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	var parsed disbursementResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, shared.ErrGatewayInvalidResponse
	}
	if parsed.Status != "success" || parsed.Reference == "" {
		g.logger.Warn("gateway declined disbursement",
			"user_id", req.UserID,
			"status", parsed.Status,
			"message", parsed.Message,
		)
		return nil, shared.ErrGatewayDeclined
	}

	processedAt := parsed.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	return &payment.DisbursementResult{
		TransactionRef: parsed.Reference,
		ProcessedAt:    processedAt,
	}, nil
}

// checkStatus maps HTTP status codes to domain errors.
func (g *HTTPGateway) checkStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return shared.ErrGatewayTimeout
	case code == http.StatusTooManyRequests:
		return shared.ErrGatewayRateLimited
	case code >= 500:
		g.logger.Error("gateway server error", "status", code, "body", string(body))
		return shared.ErrGatewayUnavailable
	case code == http.StatusUnprocessableEntity || code == http.StatusPaymentRequired:
		return shared.ErrGatewayDeclined
	default:
		g.logger.Error("unexpected gateway response", "status", code, "body", string(body))
		return shared.ErrGatewayInvalidResponse
	}
}

// BreakerState returns the current circuit breaker state for health checks.
func (g *HTTPGateway) BreakerState() circuitbreaker.State {
	return g.breaker.State()
}
