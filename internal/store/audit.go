package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditStore struct {
	db *pgxpool.Pool
}

func NewAuditStore(db *pgxpool.Pool) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Create(ctx context.Context, r *domain.AuditRecord) error {
	summary, err := json.Marshal(r.OutputSummary)
	if err != nil {
		return fmt.Errorf("marshal output summary: %w", err)
	}
	scores, err := json.Marshal(r.ConfidenceScores)
	if err != nil {
		return fmt.Errorf("marshal confidence scores: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO audit_records
			(tenant_id, user_id, operation, model, input_hash, output_hash, input_preview, output_summary,
			 latency_ms, attempts, success, error_type, confidence_scores)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, created_at`,
		r.TenantID, r.UserID, r.Operation, r.Model, r.InputHash, r.OutputHash, r.InputPreview, summary,
		r.LatencyMs, r.Attempts, r.Success, r.ErrorType, scores,
	).Scan(&r.ID, &r.CreatedAt)
}

func (s *AuditStore) List(ctx context.Context, tenantID uuid.UUID, f domain.AuditFilter) ([]domain.AuditRecord, error) {
	var conditions []string
	var args []any

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)+1))
	args = append(args, tenantID)

	if !f.Start.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, f.Start)
	}
	if !f.End.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)+1))
		args = append(args, f.End)
	}
	if f.Operation != "" {
		conditions = append(conditions, fmt.Sprintf("operation = $%d", len(args)+1))
		args = append(args, f.Operation)
	}
	if f.Success != nil {
		conditions = append(conditions, fmt.Sprintf("success = $%d", len(args)+1))
		args = append(args, *f.Success)
	}

	query := fmt.Sprintf(
		`SELECT id, tenant_id, user_id, operation, model, input_hash, output_hash, input_preview, output_summary,
		        latency_ms, attempts, success, error_type, confidence_scores, created_at
		 FROM audit_records
		 WHERE %s
		 ORDER BY created_at DESC`,
		strings.Join(conditions, " AND "),
	)
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var r domain.AuditRecord
		var summary, scores []byte
		if err := rows.Scan(&r.ID, &r.TenantID, &r.UserID, &r.Operation, &r.Model, &r.InputHash, &r.OutputHash,
			&r.InputPreview, &summary, &r.LatencyMs, &r.Attempts, &r.Success, &r.ErrorType, &scores, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := decodeAuditPayload(&r, summary, scores); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeAuditPayload(r *domain.AuditRecord, summary, scores []byte) error {
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &r.OutputSummary); err != nil {
			return fmt.Errorf("decode output summary of %s: %w", r.ID, err)
		}
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &r.ConfidenceScores); err != nil {
			return fmt.Errorf("decode confidence scores of %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *AuditStore) Tally(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]domain.AuditTally, error) {
	rows, err := s.db.Query(ctx,
		`SELECT operation, success, error_type, COUNT(*), COALESCE(SUM(latency_ms), 0)
		 FROM audit_records
		 WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		 GROUP BY operation, success, error_type`,
		tenantID, start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditTally
	for rows.Next() {
		var t domain.AuditTally
		if err := rows.Scan(&t.Operation, &t.Success, &t.ErrorType, &t.Count, &t.LatencyMsSum); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *AuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM audit_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
