package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditRecord is a compliance record for one governed model call. Raw input
// and output are never stored, only hashes, a masked preview and a summary.
type AuditRecord struct {
	ID               uuid.UUID          `json:"id"`
	TenantID         uuid.UUID          `json:"tenant_id"`
	UserID           string             `json:"user_id,omitempty"`
	Operation        string             `json:"operation"`
	Model            string             `json:"model"`
	InputHash        string             `json:"input_hash"`
	OutputHash       string             `json:"output_hash,omitempty"`
	InputPreview     string             `json:"input_preview"`
	OutputSummary    map[string]any     `json:"output_summary,omitempty"`
	LatencyMs        int64              `json:"latency_ms"`
	Attempts         int                `json:"attempts"`
	Success          bool               `json:"success"`
	ErrorType        ResultCode         `json:"error_type,omitempty"`
	ConfidenceScores map[string]float64 `json:"confidence_scores,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

type AuditFilter struct {
	Start     time.Time
	End       time.Time
	Operation string
	Success   *bool
	Limit     int
}

// AuditTally summarizes the records in a window that share an operation,
// outcome and error type.
type AuditTally struct {
	Operation    string
	Success      bool
	ErrorType    ResultCode
	Count        int
	LatencyMsSum int64
}

type ComplianceReport struct {
	TenantID        uuid.UUID      `json:"tenant_id"`
	Start           time.Time      `json:"start"`
	End             time.Time      `json:"end"`
	TotalOperations int            `json:"total_operations"`
	SuccessCount    int            `json:"success_count"`
	FailureCount    int            `json:"failure_count"`
	SuccessRate     float64        `json:"success_rate"`
	AvgLatencyMs    float64        `json:"avg_latency_ms"`
	ErrorCounts     map[string]int `json:"error_counts"`
	OperationCounts map[string]int `json:"operation_counts"`
	GeneratedAt     time.Time      `json:"generated_at"`
}
