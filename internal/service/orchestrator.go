package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/Harshitk-cp/psychograph/internal/guard"
	"github.com/Harshitk-cp/psychograph/internal/llm"
	"github.com/Harshitk-cp/psychograph/internal/metrics"
	"github.com/Harshitk-cp/psychograph/internal/resilience"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultEventWindow = 200
	defaultCallCost    = 10
	maxUserIDLength    = 256

	// DefaultOperation names the breaker and bucket used for profile analysis.
	DefaultOperation = "psychographic_analysis"
)

// LLMInvoker is the gateway as seen by the orchestrator.
type LLMInvoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error)
}

type OrchestratorConfig struct {
	EventWindow int
	Operation   string
	CallCost    int
}

type OrchestratorDeps struct {
	Events       domain.EventStore
	Profiles     domain.ProfileStore
	ProfileAudit domain.ProfileAuditStore
	Heuristic    *HeuristicLayer
	ML           *MLLayer
	Gateway      LLMInvoker
	Clock        resilience.Clock
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// CycleResult describes one completed inference cycle.
type CycleResult struct {
	CycleID    uuid.UUID            `json:"cycle_id"`
	Profile    *domain.FusedProfile `json:"profile"`
	Decision   EscalationDecision   `json:"decision"`
	LLMOutcome domain.ResultCode    `json:"llm_outcome,omitempty"`
	Heuristic  domain.IndicatorSet  `json:"heuristic"`
	ML         domain.IndicatorSet  `json:"ml"`
	Signals    Signals              `json:"signals"`
	Duration   time.Duration        `json:"duration_ns"`
}

type Orchestrator struct {
	events       domain.EventStore
	profiles     domain.ProfileStore
	profileAudit domain.ProfileAuditStore
	heuristic    *HeuristicLayer
	ml           *MLLayer
	policy       EscalationPolicy
	fusion       FusionEngine
	gateway      LLMInvoker
	cfg          OrchestratorConfig
	clock        resilience.Clock
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewOrchestrator(d OrchestratorDeps, cfg OrchestratorConfig) *Orchestrator {
	if cfg.EventWindow <= 0 {
		cfg.EventWindow = defaultEventWindow
	}
	if cfg.Operation == "" {
		cfg.Operation = DefaultOperation
	}
	if cfg.CallCost <= 0 {
		cfg.CallCost = defaultCallCost
	}
	if d.Heuristic == nil {
		d.Heuristic = NewHeuristicLayer()
	}
	if d.ML == nil {
		d.ML = NewMLLayer(nil, d.Logger)
	}
	if d.Clock == nil {
		d.Clock = resilience.SystemClock{}
	}
	return &Orchestrator{
		events:       d.Events,
		profiles:     d.Profiles,
		profileAudit: d.ProfileAudit,
		heuristic:    d.Heuristic,
		ml:           d.ML,
		gateway:      d.Gateway,
		cfg:          cfg,
		clock:        d.Clock,
		metrics:      d.Metrics,
		logger:       d.Logger,
	}
}

// RunInferenceCycle scores the user's recent window, escalates to the LLM at
// most once, fuses and persists the profile. LLM failures degrade the result
// instead of failing the cycle.
func (o *Orchestrator) RunInferenceCycle(ctx context.Context, tenantID uuid.UUID, userID string) (*CycleResult, error) {
	if tenantID == uuid.Nil {
		return nil, ErrTenantRequired
	}
	if userID == "" || len(userID) > maxUserIDLength {
		return nil, ErrUserIDRequired
	}

	start := o.clock.Now()
	cycleID := uuid.New()
	log := o.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("user_id", userID),
		zap.String("cycle_id", cycleID.String()))

	events, err := o.events.ListRecent(ctx, tenantID, userID, o.cfg.EventWindow)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	signals := ComputeSignals(events)

	var heuristicSet, mlSet domain.IndicatorSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		heuristicSet = o.heuristic.ScoreSignals(signals)
		return nil
	})
	g.Go(func() error {
		mlSet = o.ml.ScoreFeatures(gctx, signals.Features())
		return nil
	})
	_ = g.Wait()

	var degradations []string
	if mlSet.IsEmpty() {
		degradations = append(degradations, "ml:unavailable")
		o.metrics.ObserveDegradation("ml", "unavailable")
	}

	decision := o.policy.ShouldEscalate(heuristicSet, mlSet, signals)
	o.metrics.ObserveEscalation(string(decision.Reason), decision.Escalate)

	var (
		analysis *LLMAnalysis
		outcome  domain.ResultCode
	)
	if decision.Escalate && o.gateway != nil {
		analysis, outcome = o.escalate(ctx, tenantID, userID, cycleID, decision, signals)
		if outcome != domain.ResultOK {
			degradations = append(degradations, "llm:"+string(outcome))
			o.metrics.ObserveDegradation("llm", string(outcome))
			log.Warn("llm escalation degraded", zap.String("code", string(outcome)), zap.String("reason", string(decision.Reason)))
		}
	}

	profile := o.fusion.Fuse(FusionInput{
		Heuristic:    heuristicSet,
		ML:           mlSet,
		LLM:          analysis,
		Signals:      signals,
		Degradations: degradations,
		Contested:    decision.Contested,
	})
	profile.TenantID = tenantID
	profile.UserID = userID
	profile.CycleID = cycleID
	profile.Features = signals.Features()

	if err := o.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("persist profile: %w", err)
	}

	audit := &domain.ProfileUpdateAudit{
		TenantID:   tenantID,
		UserID:     userID,
		CycleID:    cycleID,
		Reason:     decision.Reason,
		Indicators: profile.Indicators,
		Confidence: profile.Confidence,
		Provenance: profile.Provenance,
		Escalated:  decision.Escalate,
		LLMOutcome: outcome,
	}
	if err := o.profileAudit.Append(ctx, audit); err != nil {
		log.Error("failed to append profile update audit", zap.Error(err))
	}

	duration := o.clock.Now().Sub(start)
	o.metrics.ObserveCycle(duration)
	log.Info("inference cycle complete",
		zap.String("reason", string(decision.Reason)),
		zap.Bool("escalated", decision.Escalate),
		zap.Float64("confidence", profile.Confidence),
		zap.Strings("provenance", profile.Provenance))

	return &CycleResult{
		CycleID:    cycleID,
		Profile:    profile,
		Decision:   decision,
		LLMOutcome: outcome,
		Heuristic:  heuristicSet,
		ML:         mlSet,
		Signals:    signals,
		Duration:   duration,
	}, nil
}

func (o *Orchestrator) escalate(ctx context.Context, tenantID uuid.UUID, userID string, cycleID uuid.UUID, decision EscalationDecision, s Signals) (*LLMAnalysis, domain.ResultCode) {
	res, err := o.gateway.Invoke(ctx, InvokeRequest{
		TenantID:       tenantID,
		UserID:         userID,
		Operation:      o.cfg.Operation,
		Prompt:         llm.PsychographicPrompt(s.Summary()),
		Schema:         llm.PsychographicSchema(),
		IdempotencyKey: "cycle:" + cycleID.String(),
		Cost:           o.cfg.CallCost,
		Context: map[string]any{
			"user_id":  userID,
			"cycle_id": cycleID.String(),
			"reason":   string(decision.Reason),
		},
	})
	if err != nil {
		return nil, ResultCodeOf(err)
	}
	return analysisFromOutput(res.Output, res.Model), domain.ResultOK
}

// analysisFromOutput reads a response that already passed schema validation.
func analysisFromOutput(output map[string]any, model string) *LLMAnalysis {
	set := domain.NewIndicatorSet(domain.ModelLLMPrefix + model)
	for _, k := range domain.AllIndicatorKeys() {
		base := llm.IndicatorPath(k)
		value, _ := lookupString(output, base+".value")
		conf, ok := lookupFloat(output, base+".confidence")
		if !ok || !domain.ValidIndicatorValue(k, value) {
			continue
		}
		set = set.With(k, domain.Indicator{Value: value, Confidence: conf})
	}

	a := &LLMAnalysis{Indicators: set}
	a.Reasoning, _ = lookupString(output, "reasoning")
	if list, ok := output["motivations"].([]any); ok {
		for _, m := range list {
			if s, ok := m.(string); ok && s != "" {
				a.Motivations = append(a.Motivations, s)
			}
		}
	}
	return a
}

func lookupString(m map[string]any, path string) (string, bool) {
	v, ok := guard.Lookup(m, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lookupFloat(m map[string]any, path string) (float64, bool) {
	v, ok := guard.Lookup(m, path)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
