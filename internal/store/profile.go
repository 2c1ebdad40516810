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
	pgvector "github.com/pgvector/pgvector-go"
)

type ProfileStore struct {
	db *pgxpool.Pool
}

func NewProfileStore(db *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileColumns = `id, tenant_id, user_id, cycle_id, indicators, confidence, evidence,
	provenance, motivations, degradations, features, updated_at`

func (s *ProfileStore) Upsert(ctx context.Context, p *domain.FusedProfile) error {
	indicators, err := json.Marshal(p.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}

	var features *pgvector.Vector
	if len(p.Features) > 0 {
		v := pgvector.NewVector(p.Features)
		features = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO psychographic_profiles
			(tenant_id, user_id, cycle_id, indicators, confidence, evidence, provenance, motivations, degradations, features, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		 ON CONFLICT (tenant_id, user_id) DO UPDATE SET
			cycle_id = EXCLUDED.cycle_id,
			indicators = EXCLUDED.indicators,
			confidence = EXCLUDED.confidence,
			evidence = EXCLUDED.evidence,
			provenance = EXCLUDED.provenance,
			motivations = EXCLUDED.motivations,
			degradations = EXCLUDED.degradations,
			features = EXCLUDED.features,
			updated_at = NOW()
		 RETURNING id, updated_at`,
		p.TenantID, p.UserID, p.CycleID, indicators, p.Confidence, p.Evidence,
		nonNil(p.Provenance), nonNil(p.Motivations), nonNil(p.Degradations), features,
	).Scan(&p.ID, &p.UpdatedAt)
}

func (s *ProfileStore) Get(ctx context.Context, tenantID uuid.UUID, userID string) (*domain.FusedProfile, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+profileColumns+`
		 FROM psychographic_profiles WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID,
	)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindSimilar ranks other users in the tenant by cosine similarity of their
// behavioral feature vectors.
func (s *ProfileStore) FindSimilar(ctx context.Context, tenantID uuid.UUID, features domain.FeatureVector, excludeUserID string, limit int) ([]domain.ProfileWithScore, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(features)

	rows, err := s.db.Query(ctx,
		`SELECT `+profileColumns+`, 1 - (features <=> $2) AS score
		 FROM psychographic_profiles
		 WHERE tenant_id = $1 AND user_id <> $3 AND features IS NOT NULL
		 ORDER BY features <=> $2
		 LIMIT $4`,
		tenantID, vec, excludeUserID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProfileWithScore
	for rows.Next() {
		var (
			p          domain.FusedProfile
			indicators []byte
			vecOut     *pgvector.Vector
			score      float32
		)
		if err := rows.Scan(&p.ID, &p.TenantID, &p.UserID, &p.CycleID, &indicators, &p.Confidence, &p.Evidence,
			&p.Provenance, &p.Motivations, &p.Degradations, &vecOut, &p.UpdatedAt, &score); err != nil {
			return nil, err
		}
		if err := finishProfile(&p, indicators, vecOut); err != nil {
			return nil, err
		}
		out = append(out, domain.ProfileWithScore{FusedProfile: p, Score: score})
	}
	return out, rows.Err()
}

func scanProfile(row pgx.Row) (*domain.FusedProfile, error) {
	var (
		p          domain.FusedProfile
		indicators []byte
		vec        *pgvector.Vector
	)
	if err := row.Scan(&p.ID, &p.TenantID, &p.UserID, &p.CycleID, &indicators, &p.Confidence, &p.Evidence,
		&p.Provenance, &p.Motivations, &p.Degradations, &vec, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := finishProfile(&p, indicators, vec); err != nil {
		return nil, err
	}
	return &p, nil
}

func finishProfile(p *domain.FusedProfile, indicators []byte, vec *pgvector.Vector) error {
	if err := json.Unmarshal(indicators, &p.Indicators); err != nil {
		return fmt.Errorf("unmarshal indicators: %w", err)
	}
	if vec != nil {
		p.Features = vec.Slice()
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
