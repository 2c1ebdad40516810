package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CreditStore struct {
	db *pgxpool.Pool
}

func NewCreditStore(db *pgxpool.Pool) *CreditStore {
	return &CreditStore{db: db}
}

const ledgerColumns = `tenant_id, monthly_allotment, credits_remaining, overage_enabled,
	overage_limit, overage_used, last_reset_date, updated_at`

const usageColumns = `id, tenant_id, idempotency_key, cost, remaining_after, is_overage,
	overage_amount, context, created_at`

// WithLedgerLock opens a transaction, and the first Ledger call inside fn
// takes the row lock with SELECT ... FOR UPDATE. The transaction commits only
// when fn returns nil.
func (s *CreditStore) WithLedgerLock(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &ledgerTx{tx: tx, tenantID: tenantID}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *CreditStore) GetLedger(ctx context.Context, tenantID uuid.UUID) (*domain.CreditLedger, error) {
	return scanLedger(s.db.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM credit_ledgers WHERE tenant_id = $1`,
		tenantID,
	))
}

func (s *CreditStore) UpsertLedger(ctx context.Context, l *domain.CreditLedger) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO credit_ledgers
			(tenant_id, monthly_allotment, credits_remaining, overage_enabled, overage_limit, overage_used, last_reset_date, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 ON CONFLICT (tenant_id) DO UPDATE SET
			monthly_allotment = EXCLUDED.monthly_allotment,
			credits_remaining = EXCLUDED.credits_remaining,
			overage_enabled = EXCLUDED.overage_enabled,
			overage_limit = EXCLUDED.overage_limit,
			overage_used = EXCLUDED.overage_used,
			last_reset_date = EXCLUDED.last_reset_date,
			updated_at = NOW()
		 RETURNING updated_at`,
		l.TenantID, l.MonthlyAllotment, l.CreditsRemaining, l.OverageEnabled, l.OverageLimit, l.OverageUsed, l.LastResetDate,
	).Scan(&l.UpdatedAt)
}

func (s *CreditStore) ListUsage(ctx context.Context, tenantID uuid.UUID, limit int) ([]domain.UsageEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+usageColumns+`
		 FROM usage_events WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UsageEvent
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

type ledgerTx struct {
	tx       pgx.Tx
	tenantID uuid.UUID
}

func (t *ledgerTx) Ledger(ctx context.Context) (*domain.CreditLedger, error) {
	return scanLedger(t.tx.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM credit_ledgers WHERE tenant_id = $1 FOR UPDATE`,
		t.tenantID,
	))
}

func (t *ledgerTx) FindUsage(ctx context.Context, idempotencyKey string) (*domain.UsageEvent, error) {
	u, err := scanUsage(t.tx.QueryRow(ctx,
		`SELECT `+usageColumns+` FROM usage_events WHERE tenant_id = $1 AND idempotency_key = $2`,
		t.tenantID, idempotencyKey,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (t *ledgerTx) SaveLedger(ctx context.Context, l *domain.CreditLedger) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE credit_ledgers SET
			credits_remaining = $2, overage_used = $3, last_reset_date = $4, updated_at = NOW()
		 WHERE tenant_id = $1`,
		t.tenantID, l.CreditsRemaining, l.OverageUsed, l.LastResetDate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *ledgerTx) InsertUsage(ctx context.Context, u *domain.UsageEvent) error {
	meta, err := json.Marshal(u.Context)
	if err != nil {
		return fmt.Errorf("marshal usage context: %w", err)
	}

	u.TenantID = t.tenantID
	err = t.tx.QueryRow(ctx,
		`INSERT INTO usage_events
			(tenant_id, idempotency_key, cost, remaining_after, is_overage, overage_amount, context)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		u.TenantID, u.IdempotencyKey, u.Cost, u.RemainingAfter, u.IsOverage, u.OverageAmount, meta,
	).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func scanLedger(row pgx.Row) (*domain.CreditLedger, error) {
	l := &domain.CreditLedger{}
	err := row.Scan(&l.TenantID, &l.MonthlyAllotment, &l.CreditsRemaining, &l.OverageEnabled,
		&l.OverageLimit, &l.OverageUsed, &l.LastResetDate, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func scanUsage(row pgx.Row) (*domain.UsageEvent, error) {
	u := &domain.UsageEvent{}
	var meta []byte
	if err := row.Scan(&u.ID, &u.TenantID, &u.IdempotencyKey, &u.Cost, &u.RemainingAfter, &u.IsOverage,
		&u.OverageAmount, &meta, &u.CreatedAt); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &u.Context); err != nil {
			return nil, fmt.Errorf("unmarshal usage context: %w", err)
		}
	}
	return u, nil
}
