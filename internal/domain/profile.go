package domain

import (
	"time"

	"github.com/google/uuid"
)

type UpdateReason string

const (
	ReasonRoutine      UpdateReason = "routine"
	ReasonDisagreement UpdateReason = "disagreement"
	ReasonHighValue    UpdateReason = "high_value"
)

// FusedProfile is the current merged profile for one user.
type FusedProfile struct {
	ID           uuid.UUID                  `json:"id"`
	TenantID     uuid.UUID                  `json:"tenant_id"`
	UserID       string                     `json:"user_id"`
	CycleID      uuid.UUID                  `json:"cycle_id"`
	Indicators   map[IndicatorKey]Indicator `json:"indicators"`
	Confidence   float64                    `json:"confidence"`
	Evidence     string                     `json:"evidence"`
	Provenance   []string                   `json:"provenance"`
	Motivations  []string                   `json:"motivations,omitempty"`
	Degradations []string                   `json:"degradations,omitempty"`
	Features     FeatureVector              `json:"features,omitempty"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

type ProfileWithScore struct {
	FusedProfile
	Score float32 `json:"score"`
}

// ProfileUpdateAudit is one historical fusion result. Rows are never updated.
type ProfileUpdateAudit struct {
	ID         uuid.UUID                  `json:"id"`
	TenantID   uuid.UUID                  `json:"tenant_id"`
	UserID     string                     `json:"user_id"`
	CycleID    uuid.UUID                  `json:"cycle_id"`
	Reason     UpdateReason               `json:"reason"`
	Indicators map[IndicatorKey]Indicator `json:"indicators"`
	Confidence float64                    `json:"confidence"`
	Provenance []string                   `json:"provenance"`
	Escalated  bool                       `json:"escalated"`
	LLMOutcome ResultCode                 `json:"llm_outcome,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
}
