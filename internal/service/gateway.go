package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/guard"
	"github.com/Harshitk-cp/psychograph/internal/metrics"
	"github.com/Harshitk-cp/psychograph/internal/resilience"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GatewayError is returned by Gateway.Invoke for every non-OK outcome.
// It unwraps to the underlying sentinel or upstream error.
type GatewayError struct {
	Code       domain.ResultCode
	RetryAfter time.Duration
	// Remaining is the credit balance for INSUFFICIENT_CREDITS.
	Remaining int
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ResultCodeOf maps any error onto the result taxonomy.
func ResultCodeOf(err error) domain.ResultCode {
	if err == nil {
		return domain.ResultOK
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		return domain.ResultInsufficientCredits
	case errors.Is(err, resilience.ErrRateLimited):
		return domain.ResultRateLimited
	case errors.Is(err, resilience.ErrCircuitOpen):
		return domain.ResultCircuitOpen
	case isValidationError(err):
		return domain.ResultValidationError
	}
	return domain.ResultSystemError
}

func isValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidCost, ErrIdempotencyKeyRequired, ErrTenantRequired, ErrUserIDRequired,
		ErrOperationRequired, ErrInvalidAllotment, ErrInvalidTimeRange, ErrTenantNameRequired,
		ErrLedgerNotFound,
		guard.ErrPromptTooShort, guard.ErrPromptTooLong, guard.ErrPromptInjection, guard.ErrInvalidOutput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var (
	ErrOperationRequired = errors.New("operation is required")
	ErrUserIDRequired    = errors.New("user_id is required")
)

// CreditConsumer is the ledger dependency of the gateway.
type CreditConsumer interface {
	Consume(ctx context.Context, tenantID uuid.UUID, cost int, key string, meta map[string]any) (*domain.ConsumeResult, error)
}

// AuditRecorder never fails from the caller's point of view.
type AuditRecorder interface {
	Record(ctx context.Context, e AuditEntry)
}

type InvokeRequest struct {
	TenantID       uuid.UUID
	UserID         string
	Operation      string
	Prompt         string
	Schema         *domain.OutputSchema
	IdempotencyKey string
	Cost           int
	Context        map[string]any
}

type InvokeResult struct {
	Output   map[string]any
	Raw      string
	Model    string
	Attempts int
	Latency  time.Duration
	Credits  *domain.ConsumeResult
}

// Gateway is the only path to the model provider. Each call passes credit
// metering, the per-tenant token bucket, the per-operation breaker, prompt
// sanitization, bounded retries and output validation, in that order.
type Gateway struct {
	client   domain.LLMClient
	credits  CreditConsumer
	buckets  *resilience.TokenBuckets
	breakers *resilience.BreakerRegistry
	retry    resilience.RetryPolicy
	guard    *guard.PromptGuard
	audit    AuditRecorder
	clock    resilience.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

type GatewayDeps struct {
	Client   domain.LLMClient
	Credits  CreditConsumer
	Buckets  *resilience.TokenBuckets
	Breakers *resilience.BreakerRegistry
	Retry    resilience.RetryPolicy
	Guard    *guard.PromptGuard
	Audit    AuditRecorder
	Clock    resilience.Clock
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func NewGateway(d GatewayDeps) *Gateway {
	if d.Clock == nil {
		d.Clock = resilience.SystemClock{}
	}
	if d.Guard == nil {
		d.Guard = guard.New(guard.Config{})
	}
	return &Gateway{
		client:   d.Client,
		credits:  d.Credits,
		buckets:  d.Buckets,
		breakers: d.Breakers,
		retry:    d.Retry,
		guard:    d.Guard,
		audit:    d.Audit,
		clock:    d.Clock,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
}

// Model returns the tag of the provider model behind the gateway.
func (g *Gateway) Model() string {
	return g.client.Model()
}

func (g *Gateway) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	start := g.clock.Now()
	res, entry, err := g.invoke(ctx, req)

	latency := g.clock.Now().Sub(start)
	code := ResultCodeOf(err)
	entry.Latency = latency
	entry.Success = err == nil
	entry.ErrorType = code

	g.metrics.ObserveGatewayCall(req.Operation, string(code), entry.Attempts, latency)
	if g.audit != nil {
		g.audit.Record(ctx, entry)
	}

	if err != nil {
		g.logger.Warn("llm gateway call failed",
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("operation", req.Operation),
			zap.String("code", string(code)),
			zap.Int("attempts", entry.Attempts),
			zap.Error(err))
		return nil, err
	}

	res.Latency = latency
	return res, nil
}

func (g *Gateway) invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, AuditEntry, error) {
	entry := AuditEntry{
		TenantID:  req.TenantID,
		UserID:    req.UserID,
		Operation: req.Operation,
		Model:     g.client.Model(),
		Input:     req.Prompt,
	}
	if req.Operation == "" {
		return nil, entry, &GatewayError{Code: domain.ResultValidationError, Err: ErrOperationRequired}
	}

	credits, err := g.credits.Consume(ctx, req.TenantID, req.Cost, req.IdempotencyKey, req.Context)
	if err != nil {
		return nil, entry, creditError(err)
	}

	if ok, wait := g.buckets.Take(req.TenantID.String(), req.Operation); !ok {
		return nil, entry, &GatewayError{Code: domain.ResultRateLimited, RetryAfter: wait, Err: resilience.ErrRateLimited}
	}

	breaker := g.breakers.Get(req.Operation)
	if err := breaker.Allow(); err != nil {
		return nil, entry, &GatewayError{Code: domain.ResultCircuitOpen, RetryAfter: g.untilNextAttempt(breaker), Err: err}
	}

	sanitized, err := g.guard.Sanitize(req.Prompt)
	if err != nil {
		breaker.Release()
		return nil, entry, &GatewayError{Code: domain.ResultValidationError, Err: err}
	}
	entry.Input = sanitized.Prompt

	raw, outcome, err := resilience.Run(ctx, g.retry, func(actx context.Context) (string, error) {
		return g.client.InvokeModel(actx, sanitized.Prompt, req.Schema)
	})
	entry.Attempts = outcome.Attempts
	if err != nil {
		if ctx.Err() != nil {
			breaker.Release()
			return nil, entry, &GatewayError{Code: domain.ResultSystemError, Err: ctx.Err()}
		}
		breaker.OnFailure()
		return nil, entry, &GatewayError{Code: domain.ResultSystemError, Err: err}
	}
	entry.Output = raw

	output, err := guard.ParseOutput(raw)
	if err == nil {
		entry.Parsed = output
		err = g.guard.Validate(output, req.Schema)
	}
	if err != nil {
		breaker.OnFailure()
		return nil, entry, &GatewayError{Code: domain.ResultValidationError, Err: err}
	}

	breaker.OnSuccess()
	entry.ConfidenceScores = confidenceScores(output)

	return &InvokeResult{
		Output:   output,
		Raw:      raw,
		Model:    g.client.Model(),
		Attempts: outcome.Attempts,
		Credits:  credits,
	}, entry, nil
}

func (g *Gateway) untilNextAttempt(b *resilience.CircuitBreaker) time.Duration {
	snap := b.Snapshot()
	if snap.NextAttemptAt == nil {
		return 0
	}
	if d := snap.NextAttemptAt.Sub(g.clock.Now()); d > 0 {
		return d
	}
	return 0
}

func creditError(err error) error {
	var insufficient *InsufficientCreditsError
	if errors.As(err, &insufficient) {
		return &GatewayError{Code: domain.ResultInsufficientCredits, Remaining: insufficient.Remaining, Err: err}
	}
	code := ResultCodeOf(err)
	if code == domain.ResultOK {
		code = domain.ResultSystemError
	}
	return &GatewayError{Code: code, Err: err}
}

// confidenceScores collects every "confidence" number in a response, keyed
// by the path of the object that holds it.
func confidenceScores(output map[string]any) map[string]float64 {
	scores := make(map[string]float64)
	collectConfidence(scores, "", output)
	if len(scores) == 0 {
		return nil
	}
	return scores
}

func collectConfidence(out map[string]float64, prefix string, m map[string]any) {
	for k, v := range m {
		if k == "confidence" && prefix != "" {
			if f, ok := v.(float64); ok {
				out[prefix] = f
			}
			continue
		}
		if child, ok := v.(map[string]any); ok {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			collectConfidence(out, path, child)
		}
	}
}
