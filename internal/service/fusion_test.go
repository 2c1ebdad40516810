package service

import (
	"testing"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indicatorSet(model string, risk string, riskConf float64) domain.IndicatorSet {
	return domain.NewIndicatorSet(model).
		With(domain.IndicatorRiskProfile, domain.Indicator{Value: risk, Confidence: riskConf}).
		With(domain.IndicatorCognitiveStyle, domain.Indicator{Value: "balanced", Confidence: 0.5}).
		With(domain.IndicatorMood, domain.Indicator{Value: "neutral", Confidence: 0.5})
}

func TestEscalationPolicy(t *testing.T) {
	var policy EscalationPolicy
	h := indicatorSet(domain.ModelHeuristics, "conservative", 0.65)

	risk := []domain.IndicatorKey{domain.IndicatorRiskProfile}

	tests := []struct {
		name      string
		ml        domain.IndicatorSet
		signals   Signals
		escalate  bool
		reason    domain.UpdateReason
		contested []domain.IndicatorKey
	}{
		{"agreement is routine", indicatorSet(domain.ModelML, "conservative", 0.6), Signals{}, false, domain.ReasonRoutine, nil},
		{"risk disagreement escalates", indicatorSet(domain.ModelML, "aggressive", 0.55), Signals{}, true, domain.ReasonDisagreement, risk},
		{"disagreement outranks high value", indicatorSet(domain.ModelML, "aggressive", 0.55), Signals{CheckoutCompletions: 1}, true, domain.ReasonDisagreement, risk},
		{"high value escalates", indicatorSet(domain.ModelML, "conservative", 0.6), Signals{PricingViews: 3}, true, domain.ReasonHighValue, nil},
		{"missing ml cannot disagree", domain.NewIndicatorSet(domain.ModelML), Signals{}, false, domain.ReasonRoutine, nil},
		{"missing ml still escalates on value", domain.NewIndicatorSet(domain.ModelML), Signals{CheckoutStarts: 2}, true, domain.ReasonHighValue, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := policy.ShouldEscalate(h, tt.ml, tt.signals)
			assert.Equal(t, tt.escalate, d.Escalate)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.contested, d.Contested)
		})
	}
}

func TestEscalationPolicy_OtherKeysTolerated(t *testing.T) {
	h := indicatorSet(domain.ModelHeuristics, "moderate", 0.55).
		With(domain.IndicatorMood, domain.Indicator{Value: "anxious", Confidence: 0.55})
	ml := indicatorSet(domain.ModelML, "moderate", 0.6).
		With(domain.IndicatorMood, domain.Indicator{Value: "positive", Confidence: 0.6})

	d := EscalationPolicy{}.ShouldEscalate(h, ml, Signals{})
	assert.False(t, d.Escalate)
}

func TestFusionEngine_HighestConfidenceWins(t *testing.T) {
	h := indicatorSet(domain.ModelHeuristics, "conservative", 0.65)
	ml := indicatorSet(domain.ModelML, "aggressive", 0.55).
		With(domain.IndicatorCognitiveStyle, domain.Indicator{Value: "analytical", Confidence: 0.8})

	p := FusionEngine{}.Fuse(FusionInput{Heuristic: h, ML: ml, Signals: Signals{Events: 3}})

	assert.Equal(t, "conservative", p.Indicators[domain.IndicatorRiskProfile].Value)
	assert.Equal(t, "analytical", p.Indicators[domain.IndicatorCognitiveStyle].Value)
	// Ties between the cheap layers go to the earlier one.
	assert.Equal(t, "neutral", p.Indicators[domain.IndicatorMood].Value)
	assert.Equal(t, []string{domain.ModelHeuristics, domain.ModelML}, p.Provenance)
	assert.InDelta(t, (0.65+0.8+0.5)/3, p.Confidence, 1e-9)
	assert.Contains(t, p.Evidence, "heuristic rules and ML scoring over 3 events")
}

func TestFusionEngine_LLMFloorAndTiesOnContestedKey(t *testing.T) {
	h := indicatorSet(domain.ModelHeuristics, "conservative", 0.7)
	ml := indicatorSet(domain.ModelML, "moderate", 0.6)
	llmSet := domain.NewIndicatorSet("llm@mock/mock-1").
		With(domain.IndicatorRiskProfile, domain.Indicator{Value: "aggressive", Confidence: 0.4}).
		With(domain.IndicatorMood, domain.Indicator{Value: "anxious", Confidence: 0.95})

	p := FusionEngine{}.Fuse(FusionInput{
		Heuristic: h,
		ML:        ml,
		LLM:       &LLMAnalysis{Indicators: llmSet, Reasoning: "Hesitant buyer.", Motivations: []string{"security"}},
		Contested: []domain.IndicatorKey{domain.IndicatorRiskProfile},
	})

	risk := p.Indicators[domain.IndicatorRiskProfile]
	assert.Equal(t, "aggressive", risk.Value, "floored LLM rank wins the tie")
	assert.InDelta(t, 0.4, risk.Confidence, 1e-9, "winner keeps its raw confidence")
	assert.Equal(t, "anxious", p.Indicators[domain.IndicatorMood].Value)
	assert.Equal(t, "balanced", p.Indicators[domain.IndicatorCognitiveStyle].Value)
	assert.InDelta(t, (0.4+0.5+0.95)/3, p.Confidence, 1e-9)

	assert.Equal(t, []string{domain.ModelHeuristics, "llm@mock/mock-1"}, p.Provenance)
	assert.Equal(t, "Hesitant buyer.", p.Evidence)
	assert.Equal(t, []string{"security"}, p.Motivations)

	// Inputs are not modified.
	orig, _ := llmSet.Get(domain.IndicatorRiskProfile)
	assert.InDelta(t, 0.4, orig.Confidence, 1e-9)
}

func TestFusionEngine_UncontestedKeysCompareRawConfidence(t *testing.T) {
	h := domain.NewIndicatorSet(domain.ModelHeuristics).
		With(domain.IndicatorRiskProfile, domain.Indicator{Value: "conservative", Confidence: 0.7}).
		With(domain.IndicatorCognitiveStyle, domain.Indicator{Value: "analytical", Confidence: 0.7}).
		With(domain.IndicatorMood, domain.Indicator{Value: "positive", Confidence: 0.7})
	llmSet := domain.NewIndicatorSet("llm@mock/mock-1").
		With(domain.IndicatorRiskProfile, domain.Indicator{Value: "aggressive", Confidence: 0.9}).
		With(domain.IndicatorCognitiveStyle, domain.Indicator{Value: "intuitive", Confidence: 0.1}).
		With(domain.IndicatorMood, domain.Indicator{Value: "anxious", Confidence: 0.1})

	p := FusionEngine{}.Fuse(FusionInput{
		Heuristic: h,
		ML:        domain.NewIndicatorSet(domain.ModelML),
		LLM:       &LLMAnalysis{Indicators: llmSet},
		Contested: []domain.IndicatorKey{domain.IndicatorRiskProfile},
	})

	assert.Equal(t, "aggressive", p.Indicators[domain.IndicatorRiskProfile].Value)
	assert.Equal(t, "analytical", p.Indicators[domain.IndicatorCognitiveStyle].Value)
	assert.Equal(t, "positive", p.Indicators[domain.IndicatorMood].Value)
	assert.InDelta(t, 0.7, p.Indicators[domain.IndicatorMood].Confidence, 1e-9)
	assert.Equal(t, []string{domain.ModelHeuristics, "llm@mock/mock-1"}, p.Provenance)
	assert.InDelta(t, (0.9+0.7+0.7)/3, p.Confidence, 1e-9)
}

func TestFusionEngine_UncontestedTieGoesToEarlierLayer(t *testing.T) {
	h := indicatorSet(domain.ModelHeuristics, "conservative", 0.7)
	llmSet := domain.NewIndicatorSet("llm@mock/mock-1").
		With(domain.IndicatorRiskProfile, domain.Indicator{Value: "aggressive", Confidence: 0.7})

	p := FusionEngine{}.Fuse(FusionInput{
		Heuristic: h,
		ML:        domain.NewIndicatorSet(domain.ModelML),
		LLM:       &LLMAnalysis{Indicators: llmSet},
	})

	assert.Equal(t, "conservative", p.Indicators[domain.IndicatorRiskProfile].Value)
	assert.Equal(t, []string{domain.ModelHeuristics}, p.Provenance)
}

func TestFusionEngine_HeuristicsOnly(t *testing.T) {
	h := indicatorSet(domain.ModelHeuristics, "moderate", 0.5)

	p := FusionEngine{}.Fuse(FusionInput{
		Heuristic:    h,
		ML:           domain.NewIndicatorSet(domain.ModelML),
		Degradations: []string{"ml:unavailable"},
	})

	require.Len(t, p.Indicators, 3)
	assert.Equal(t, []string{domain.ModelHeuristics}, p.Provenance)
	assert.Equal(t, []string{"ml:unavailable"}, p.Degradations)
	assert.Contains(t, p.Evidence, "Derived from heuristic rules over")
	assert.GreaterOrEqual(t, p.Confidence, 0.0)
	assert.LessOrEqual(t, p.Confidence, 1.0)
}
