package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileAuditStore is append-only; there is no update or delete path.
type ProfileAuditStore struct {
	db *pgxpool.Pool
}

func NewProfileAuditStore(db *pgxpool.Pool) *ProfileAuditStore {
	return &ProfileAuditStore{db: db}
}

func (s *ProfileAuditStore) Append(ctx context.Context, a *domain.ProfileUpdateAudit) error {
	indicators, err := json.Marshal(a.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO profile_update_audits
			(tenant_id, user_id, cycle_id, reason, indicators, confidence, provenance, escalated, llm_outcome)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		a.TenantID, a.UserID, a.CycleID, a.Reason, indicators, a.Confidence, nonNil(a.Provenance), a.Escalated, a.LLMOutcome,
	).Scan(&a.ID, &a.CreatedAt)
}

func (s *ProfileAuditStore) ListByUser(ctx context.Context, tenantID uuid.UUID, userID string, limit int) ([]domain.ProfileUpdateAudit, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, user_id, cycle_id, reason, indicators, confidence, provenance, escalated, llm_outcome, created_at
		 FROM profile_update_audits
		 WHERE tenant_id = $1 AND user_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		tenantID, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProfileUpdateAudit
	for rows.Next() {
		var a domain.ProfileUpdateAudit
		var indicators []byte
		if err := rows.Scan(&a.ID, &a.TenantID, &a.UserID, &a.CycleID, &a.Reason, &indicators, &a.Confidence,
			&a.Provenance, &a.Escalated, &a.LLMOutcome, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(indicators, &a.Indicators); err != nil {
			return nil, fmt.Errorf("unmarshal indicators: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
