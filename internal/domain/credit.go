package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreditLedger is the per-tenant quota row.
type CreditLedger struct {
	TenantID         uuid.UUID `json:"tenant_id"`
	MonthlyAllotment int       `json:"monthly_allotment"`
	CreditsRemaining int       `json:"credits_remaining"`
	OverageEnabled   bool      `json:"overage_enabled"`
	// OverageLimit caps OverageUsed per month. Zero means unbounded.
	OverageLimit  int       `json:"overage_limit"`
	OverageUsed   int       `json:"overage_used"`
	LastResetDate time.Time `json:"last_reset_date"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NeedsReset reports whether now falls in a later calendar month (UTC) than
// the last reset.
func (l *CreditLedger) NeedsReset(now time.Time) bool {
	last := l.LastResetDate.UTC()
	cur := now.UTC()
	if cur.Year() != last.Year() {
		return cur.Year() > last.Year()
	}
	return cur.Month() > last.Month()
}

// UsageEvent is the idempotency record for one accepted consumption.
type UsageEvent struct {
	ID             uuid.UUID      `json:"id"`
	TenantID       uuid.UUID      `json:"tenant_id"`
	IdempotencyKey string         `json:"idempotency_key"`
	Cost           int            `json:"cost"`
	RemainingAfter int            `json:"remaining_after"`
	IsOverage      bool           `json:"is_overage"`
	OverageAmount  int            `json:"overage_amount"`
	Context        map[string]any `json:"context,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type ConsumeResult struct {
	UsageEventID  uuid.UUID `json:"usage_event_id"`
	Consumed      int       `json:"consumed"`
	Remaining     int       `json:"remaining"`
	IsOverage     bool      `json:"is_overage"`
	OverageAmount int       `json:"overage_amount"`
	// Replayed is reported out of band so a retry gets the original body.
	Replayed bool `json:"-"`
}

// ResultFromUsage rebuilds the consume outcome recorded by u.
func ResultFromUsage(u *UsageEvent, replayed bool) *ConsumeResult {
	return &ConsumeResult{
		UsageEventID:  u.ID,
		Consumed:      u.Cost,
		Remaining:     u.RemainingAfter,
		IsOverage:     u.IsOverage,
		OverageAmount: u.OverageAmount,
		Replayed:      replayed,
	}
}
