package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TenantStore interface {
	Create(ctx context.Context, t *Tenant) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Tenant, error)
}

// EventStore reads the externally owned behavioral event stream.
type EventStore interface {
	// ListRecent returns at most limit events for the user, newest first.
	ListRecent(ctx context.Context, tenantID uuid.UUID, userID string, limit int) ([]BehavioralEvent, error)
}

type ProfileStore interface {
	Upsert(ctx context.Context, p *FusedProfile) error
	Get(ctx context.Context, tenantID uuid.UUID, userID string) (*FusedProfile, error)
	FindSimilar(ctx context.Context, tenantID uuid.UUID, features FeatureVector, excludeUserID string, limit int) ([]ProfileWithScore, error)
}

type ProfileAuditStore interface {
	Append(ctx context.Context, a *ProfileUpdateAudit) error
	ListByUser(ctx context.Context, tenantID uuid.UUID, userID string, limit int) ([]ProfileUpdateAudit, error)
}

// LedgerTx is one tenant's ledger transaction. The row lock is taken by the
// first Ledger call; reads made before it see no serialization.
type LedgerTx interface {
	Ledger(ctx context.Context) (*CreditLedger, error)
	FindUsage(ctx context.Context, idempotencyKey string) (*UsageEvent, error)
	SaveLedger(ctx context.Context, l *CreditLedger) error
	InsertUsage(ctx context.Context, u *UsageEvent) error
}

type CreditStore interface {
	// WithLedgerLock runs fn inside a ledger transaction. Access is exclusive
	// from the first tx.Ledger call onward. Writes commit only if fn returns nil.
	WithLedgerLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, tx LedgerTx) error) error
	GetLedger(ctx context.Context, tenantID uuid.UUID) (*CreditLedger, error)
	UpsertLedger(ctx context.Context, l *CreditLedger) error
	ListUsage(ctx context.Context, tenantID uuid.UUID, limit int) ([]UsageEvent, error)
}

type AuditStore interface {
	Create(ctx context.Context, r *AuditRecord) error
	List(ctx context.Context, tenantID uuid.UUID, f AuditFilter) ([]AuditRecord, error)
	// Tally groups the records in [start, end) by operation, success and
	// error type.
	Tally(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]AuditTally, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
