package service

import "github.com/Harshitk-cp/psychograph/internal/domain"

type EscalationDecision struct {
	Escalate bool                `json:"escalate"`
	Reason   domain.UpdateReason `json:"reason"`
	// Contested lists the keys the LLM is asked to settle. Empty unless the
	// cheap layers disagree.
	Contested []domain.IndicatorKey `json:"contested,omitempty"`
}

// EscalationPolicy decides whether a cycle is worth an LLM call.
type EscalationPolicy struct{}

// ShouldEscalate escalates when the cheap layers disagree on risk profile or
// the window shows high purchase intent. Disagreement outranks high value.
// Disagreement on other keys is tolerated.
func (EscalationPolicy) ShouldEscalate(heuristic, ml domain.IndicatorSet, s Signals) EscalationDecision {
	h, hok := heuristic.Get(domain.IndicatorRiskProfile)
	m, mok := ml.Get(domain.IndicatorRiskProfile)
	if hok && mok && h.Value != m.Value {
		return EscalationDecision{
			Escalate:  true,
			Reason:    domain.ReasonDisagreement,
			Contested: []domain.IndicatorKey{domain.IndicatorRiskProfile},
		}
	}
	if s.HighValue() {
		return EscalationDecision{Escalate: true, Reason: domain.ReasonHighValue}
	}
	return EscalationDecision{Escalate: false, Reason: domain.ReasonRoutine}
}
