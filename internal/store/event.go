package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventStore reads behavioral_events, which the ingestion pipeline owns.
type EventStore struct {
	db *pgxpool.Pool
}

func NewEventStore(db *pgxpool.Pool) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) ListRecent(ctx context.Context, tenantID uuid.UUID, userID string, limit int) ([]domain.BehavioralEvent, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, user_id, event_type, occurred_at, payload
		 FROM behavioral_events
		 WHERE tenant_id = $1 AND user_id = $2
		 ORDER BY occurred_at DESC
		 LIMIT $3`,
		tenantID, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.BehavioralEvent
	for rows.Next() {
		var e domain.BehavioralEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Type, &e.Timestamp, &payload); err != nil {
			return nil, err
		}
		// A malformed payload contributes no signal rather than failing the window.
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &e.Payload)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Append inserts an event. Used by seeding and local tooling only.
func (s *EventStore) Append(ctx context.Context, e *domain.BehavioralEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return s.db.QueryRow(ctx,
		`INSERT INTO behavioral_events (tenant_id, user_id, event_type, occurred_at, payload)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.TenantID, e.UserID, e.Type, e.Timestamp, payload,
	).Scan(&e.ID)
}
