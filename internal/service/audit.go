package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/guard"
	"github.com/Harshitk-cp/psychograph/internal/metrics"
	"github.com/Harshitk-cp/psychograph/internal/resilience"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	auditWriteTimeout = 5 * time.Second
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

var ErrInvalidTimeRange = errors.New("end must be after start")

// AuditEntry is what a caller knows about one governed call. Raw input and
// output are reduced to hashes and masked summaries before storage.
type AuditEntry struct {
	TenantID  uuid.UUID
	UserID    string
	Operation string
	Model     string
	Input     string
	Output    string
	// Parsed is the decoded output, when decoding succeeded.
	Parsed           map[string]any
	Latency          time.Duration
	Attempts         int
	Success          bool
	ErrorType        domain.ResultCode
	ConfidenceScores map[string]float64
}

type AuditService struct {
	store   domain.AuditStore
	clock   resilience.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewAuditService(s domain.AuditStore, clock resilience.Clock, m *metrics.Metrics, logger *zap.Logger) *AuditService {
	if clock == nil {
		clock = resilience.SystemClock{}
	}
	return &AuditService{store: s, clock: clock, metrics: m, logger: logger}
}

// Record persists an audit record. It is best effort: failures are logged and
// counted, never returned. The write survives cancellation of ctx.
func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	r := &domain.AuditRecord{
		TenantID:         e.TenantID,
		UserID:           e.UserID,
		Operation:        e.Operation,
		Model:            e.Model,
		InputHash:        hashHex(e.Input),
		InputPreview:     guard.Preview(e.Input),
		LatencyMs:        e.Latency.Milliseconds(),
		Attempts:         e.Attempts,
		Success:          e.Success,
		ErrorType:        e.ErrorType,
		ConfidenceScores: e.ConfidenceScores,
	}
	if e.Output != "" {
		r.OutputHash = hashHex(e.Output)
	}
	if e.Parsed != nil {
		r.OutputSummary = guard.Summarize(e.Parsed)
	}
	if r.Success {
		r.ErrorType = domain.ResultOK
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.store.Create(wctx, r); err != nil {
		s.metrics.ObserveAuditWriteFailure()
		s.logger.Error("failed to write audit record",
			zap.String("tenant_id", e.TenantID.String()),
			zap.String("operation", e.Operation),
			zap.Error(err))
	}
}

func (s *AuditService) GetAuditLogs(ctx context.Context, tenantID uuid.UUID, f domain.AuditFilter) ([]domain.AuditRecord, error) {
	if tenantID == uuid.Nil {
		return nil, ErrTenantRequired
	}
	if !f.Start.IsZero() && !f.End.IsZero() && !f.End.After(f.Start) {
		return nil, ErrInvalidTimeRange
	}
	if f.Limit <= 0 {
		f.Limit = defaultAuditLimit
	}
	if f.Limit > maxAuditLimit {
		f.Limit = maxAuditLimit
	}
	return s.store.List(ctx, tenantID, f)
}

// GenerateComplianceReport aggregates every record in [start, end) from the
// store-side tallies.
func (s *AuditService) GenerateComplianceReport(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (*domain.ComplianceReport, error) {
	if tenantID == uuid.Nil {
		return nil, ErrTenantRequired
	}
	if !end.After(start) {
		return nil, ErrInvalidTimeRange
	}

	tallies, err := s.store.Tally(ctx, tenantID, start, end)
	if err != nil {
		return nil, err
	}

	report := &domain.ComplianceReport{
		TenantID:        tenantID,
		Start:           start,
		End:             end,
		ErrorCounts:     make(map[string]int),
		OperationCounts: make(map[string]int),
		GeneratedAt:     s.clock.Now().UTC(),
	}

	var latencyTotal int64
	for _, t := range tallies {
		report.TotalOperations += t.Count
		report.OperationCounts[t.Operation] += t.Count
		latencyTotal += t.LatencyMsSum
		if t.Success {
			report.SuccessCount += t.Count
			continue
		}
		report.FailureCount += t.Count
		code := t.ErrorType
		if code == "" {
			code = domain.ResultSystemError
		}
		report.ErrorCounts[string(code)] += t.Count
	}

	if report.TotalOperations > 0 {
		report.SuccessRate = float64(report.SuccessCount) / float64(report.TotalOperations)
		report.AvgLatencyMs = float64(latencyTotal) / float64(report.TotalOperations)
	}
	return report, nil
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
