package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/metrics"
	"github.com/Harshitk-cp/psychograph/internal/resilience"
	"github.com/Harshitk-cp/psychograph/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxConsumeCost bounds a single consumption.
const MaxConsumeCost = 10000

var (
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrInvalidCost            = errors.New("cost must be between 1 and 10000")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrLedgerNotFound         = errors.New("credit ledger not found")
	ErrInvalidAllotment       = errors.New("monthly allotment and overage limit must be non-negative")
	ErrTenantRequired         = errors.New("tenant_id is required")
)

// InsufficientCreditsError carries the balance seen when a consumption was
// rejected.
type InsufficientCreditsError struct {
	Remaining int
	Required  int
	// OverageCapped is set when overage is enabled but its limit was hit.
	OverageCapped bool
}

func (e *InsufficientCreditsError) Error() string {
	if e.OverageCapped {
		return fmt.Sprintf("insufficient credits: overage limit reached (remaining %d, required %d)", e.Remaining, e.Required)
	}
	return fmt.Sprintf("insufficient credits: remaining %d, required %d", e.Remaining, e.Required)
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}

type CreditService struct {
	store   domain.CreditStore
	clock   resilience.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewCreditService(s domain.CreditStore, clock resilience.Clock, m *metrics.Metrics, logger *zap.Logger) *CreditService {
	if clock == nil {
		clock = resilience.SystemClock{}
	}
	return &CreditService{store: s, clock: clock, metrics: m, logger: logger}
}

// Consume debits cost credits once per idempotency key. A repeated key
// returns the recorded outcome without touching the ledger. Rejected attempts
// leave no usage record.
func (s *CreditService) Consume(ctx context.Context, tenantID uuid.UUID, cost int, key string, meta map[string]any) (*domain.ConsumeResult, error) {
	if tenantID == uuid.Nil {
		return nil, ErrTenantRequired
	}
	if cost <= 0 || cost > MaxConsumeCost {
		return nil, ErrInvalidCost
	}
	if key == "" {
		return nil, ErrIdempotencyKeyRequired
	}

	var (
		result   *domain.ConsumeResult
		rejected error
	)

	err := s.store.WithLedgerLock(ctx, tenantID, func(ctx context.Context, tx domain.LedgerTx) error {
		// Take the row lock before the key lookup so a concurrent request
		// with the same key has either committed its usage or not started.
		ledger, err := tx.Ledger(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return ErrLedgerNotFound
		}
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}

		prior, err := tx.FindUsage(ctx, key)
		if err == nil {
			result = domain.ResultFromUsage(prior, true)
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("find usage: %w", err)
		}

		now := s.clock.Now().UTC()
		reset := applyMonthlyReset(ledger, now)

		usage, rej := debit(ledger, cost)
		if rej != nil {
			rejected = rej
			// The reset still stands even though this request is refused.
			if reset {
				return tx.SaveLedger(ctx, ledger)
			}
			return nil
		}

		if err := tx.SaveLedger(ctx, ledger); err != nil {
			return fmt.Errorf("save ledger: %w", err)
		}

		usage.IdempotencyKey = key
		usage.Context = meta
		if err := tx.InsertUsage(ctx, usage); err != nil {
			return fmt.Errorf("insert usage: %w", err)
		}
		result = domain.ResultFromUsage(usage, false)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if rejected != nil {
		s.metrics.ObserveCreditRejection()
		s.logger.Info("credit consumption rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("cost", cost),
			zap.Error(rejected))
		return nil, rejected
	}

	if !result.Replayed {
		s.metrics.ObserveCreditsConsumed(int64(cost), result.IsOverage)
	}
	return result, nil
}

// applyMonthlyReset refills the ledger when now is in a later UTC calendar
// month than the last reset.
func applyMonthlyReset(l *domain.CreditLedger, now time.Time) bool {
	if !l.NeedsReset(now) {
		return false
	}
	l.CreditsRemaining = l.MonthlyAllotment
	l.OverageUsed = 0
	l.LastResetDate = now
	return true
}

// debit mutates l for an accepted consumption and returns the usage to record.
func debit(l *domain.CreditLedger, cost int) (*domain.UsageEvent, error) {
	if cost <= l.CreditsRemaining {
		l.CreditsRemaining -= cost
		return &domain.UsageEvent{
			TenantID:       l.TenantID,
			Cost:           cost,
			RemainingAfter: l.CreditsRemaining,
		}, nil
	}

	if !l.OverageEnabled {
		return nil, &InsufficientCreditsError{Remaining: l.CreditsRemaining, Required: cost}
	}

	overage := cost - l.CreditsRemaining
	if l.OverageLimit > 0 && l.OverageUsed+overage > l.OverageLimit {
		return nil, &InsufficientCreditsError{Remaining: l.CreditsRemaining, Required: cost, OverageCapped: true}
	}

	l.CreditsRemaining = 0
	l.OverageUsed += overage
	return &domain.UsageEvent{
		TenantID:       l.TenantID,
		Cost:           cost,
		RemainingAfter: 0,
		IsOverage:      true,
		OverageAmount:  overage,
	}, nil
}

// GetBalance returns the ledger as Consume would see it now, with any pending
// monthly reset applied to the view only.
func (s *CreditService) GetBalance(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error) {
	l, err := s.store.GetLedger(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrLedgerNotFound
	}
	if err != nil {
		return nil, err
	}
	applyMonthlyReset(l, s.clock.Now().UTC())
	return l, nil
}

type ProvisionInput struct {
	MonthlyAllotment int  `json:"monthly_allotment"`
	OverageEnabled   bool `json:"overage_enabled"`
	OverageLimit     int  `json:"overage_limit"`
}

// Provision creates a ledger or changes its plan. Changing the allotment
// shifts the remaining balance by the same delta, floored at zero.
func (s *CreditService) Provision(ctx context.Context, tenantID uuid.UUID, in ProvisionInput) (*domain.CreditLedger, error) {
	if tenantID == uuid.Nil {
		return nil, ErrTenantRequired
	}
	if in.MonthlyAllotment < 0 || in.OverageLimit < 0 {
		return nil, ErrInvalidAllotment
	}

	now := s.clock.Now().UTC()
	l, err := s.store.GetLedger(ctx, tenantID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l = &domain.CreditLedger{
			TenantID:         tenantID,
			CreditsRemaining: in.MonthlyAllotment,
			LastResetDate:    now,
		}
	case err != nil:
		return nil, err
	default:
		applyMonthlyReset(l, now)
		l.CreditsRemaining += in.MonthlyAllotment - l.MonthlyAllotment
		if l.CreditsRemaining < 0 {
			l.CreditsRemaining = 0
		}
	}

	l.MonthlyAllotment = in.MonthlyAllotment
	l.OverageEnabled = in.OverageEnabled
	l.OverageLimit = in.OverageLimit

	if err := s.store.UpsertLedger(ctx, l); err != nil {
		return nil, fmt.Errorf("upsert ledger: %w", err)
	}

	s.logger.Info("credit ledger provisioned",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("monthly_allotment", l.MonthlyAllotment),
		zap.Bool("overage_enabled", l.OverageEnabled))
	return l, nil
}

func (s *CreditService) ListUsage(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.UsageEvent, error) {
	return s.store.ListUsage(ctx, tenantID, limit)
}
