package service

import (
	"testing"
	"time"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSignals(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()
	events := []domain.BehavioralEvent{
		evt(tenantID, "u", domain.EventClick, now, map[string]any{"dwell_ms": 2000.0}),
		evt(tenantID, "u", domain.EventClick, now, nil),
		evt(tenantID, "u", domain.EventHover, now, nil),
		evt(tenantID, "u", domain.EventScroll, now, map[string]any{"dwell_ms": "oops"}),
		evt(tenantID, "u", domain.EventPageView, now, pageView(domain.PagePricing, 4000)),
		evt(tenantID, "u", domain.EventPageView, now, pageView(domain.PageProduct, 0)),
		evt(tenantID, "u", domain.EventCheckoutStart, now, nil),
		evt(tenantID, "u", domain.EventCheckoutComplete, now, nil),
		evt(tenantID, "u", domain.EventType("teleport"), now, map[string]any{"dwell_ms": 99999.0}),
	}

	s := ComputeSignals(events)

	assert.Equal(t, 8, s.Events)
	assert.Equal(t, 2, s.Clicks)
	assert.Equal(t, 1, s.Hovers)
	assert.Equal(t, 1, s.Scrolls)
	assert.Equal(t, 2, s.PageViews)
	assert.Equal(t, 1, s.PricingViews)
	assert.Equal(t, 1, s.ProductViews)
	assert.Equal(t, 1, s.CheckoutStarts)
	assert.Equal(t, 1, s.CheckoutCompletions)
	assert.Equal(t, 2, s.DwellSamples)
	assert.InDelta(t, 3.0, s.AvgDwellSeconds, 1e-9)

	f := s.Features()
	require.Len(t, f, domain.FeatureDimensions)
	assert.Equal(t, float32(2), f[domain.FeatureClicks])
	assert.Equal(t, float32(1), f[domain.FeaturePricingViews])
	assert.Equal(t, float32(3), f[domain.FeatureAvgDwellSeconds])
}

func TestSignals_HighValue(t *testing.T) {
	assert.False(t, Signals{}.HighValue())
	assert.True(t, Signals{CheckoutCompletions: 1}.HighValue())
	assert.True(t, Signals{CheckoutStarts: 2}.HighValue())
	assert.True(t, Signals{PricingViews: 3}.HighValue())
	assert.False(t, Signals{PricingViews: 2, CheckoutStarts: 1}.HighValue())
}

func TestSignals_SummaryHasNoPayloads(t *testing.T) {
	s := ComputeSignals([]domain.BehavioralEvent{
		evt(uuid.New(), "u", domain.EventPageView, time.Now(), map[string]any{"page": "pricing", "email": "a@b.io"}),
	})
	summary := s.Summary()
	assert.Contains(t, summary, "pricing_views=1")
	assert.NotContains(t, summary, "a@b.io")
}

func TestHeuristicLayer_Rules(t *testing.T) {
	tests := []struct {
		name  string
		s     Signals
		key   domain.IndicatorKey
		value string
		conf  float64
	}{
		{"fast completion is aggressive", Signals{Events: 3, CheckoutCompletions: 1, DwellSamples: 2, AvgDwellSeconds: 10}, domain.IndicatorRiskProfile, "aggressive", 0.65},
		{"completion without dwell is not aggressive", Signals{Events: 3, CheckoutCompletions: 1}, domain.IndicatorRiskProfile, "moderate", 0.55},
		{"repeated pricing is conservative", Signals{Events: 3, PageViews: 3, PricingViews: 3}, domain.IndicatorRiskProfile, "conservative", 0.65},
		{"empty window is moderate", Signals{}, domain.IndicatorRiskProfile, "moderate", 0.5},
		{"long dwell is analytical", Signals{Events: 1, DwellSamples: 1, AvgDwellSeconds: 90}, domain.IndicatorCognitiveStyle, "analytical", 0.6},
		{"scroll heavy is analytical", Signals{Events: 5, Scrolls: 5, Clicks: 2}, domain.IndicatorCognitiveStyle, "analytical", 0.6},
		{"quick clicks are intuitive", Signals{Events: 10, Clicks: 10, Hovers: 1, DwellSamples: 10, AvgDwellSeconds: 3}, domain.IndicatorCognitiveStyle, "intuitive", 0.6},
		{"default style is balanced", Signals{Events: 2, Clicks: 1, Hovers: 1}, domain.IndicatorCognitiveStyle, "balanced", 0.5},
		{"abandoned checkouts are anxious", Signals{Events: 2, CheckoutStarts: 2}, domain.IndicatorMood, "anxious", 0.55},
		{"completion is positive", Signals{Events: 1, CheckoutCompletions: 1}, domain.IndicatorMood, "positive", 0.6},
		{"rage clicking is frustrated", Signals{Events: 25, Clicks: 25, DwellSamples: 25, AvgDwellSeconds: 1}, domain.IndicatorMood, "frustrated", 0.55},
		{"default mood is neutral", Signals{Events: 1, Clicks: 1}, domain.IndicatorMood, "neutral", 0.5},
	}

	h := NewHeuristicLayer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := h.ScoreSignals(tt.s)
			ind, ok := set.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.value, ind.Value)
			assert.InDelta(t, tt.conf, ind.Confidence, 1e-9)
		})
	}
}

func TestHeuristicLayer_CompleteAndBounded(t *testing.T) {
	h := NewHeuristicLayer()
	windows := []Signals{
		{},
		{Events: 100, Clicks: 80, Hovers: 5, DwellSamples: 100, AvgDwellSeconds: 0.5},
		{Events: 4, CheckoutStarts: 4, CheckoutCompletions: 4, DwellSamples: 4, AvgDwellSeconds: 120},
	}

	for _, s := range windows {
		set := h.ScoreSignals(s)
		assert.Equal(t, domain.ModelHeuristics, set.Model)
		for _, k := range domain.AllIndicatorKeys() {
			ind, ok := set.Get(k)
			require.True(t, ok, "missing %s", k)
			assert.True(t, domain.ValidIndicatorValue(k, ind.Value))
			assert.GreaterOrEqual(t, ind.Confidence, 0.5)
			assert.LessOrEqual(t, ind.Confidence, 0.7)
		}
	}
}

func TestHeuristicLayer_Deterministic(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now()
	events := []domain.BehavioralEvent{
		evt(tenantID, "u", domain.EventPageView, now, pageView(domain.PagePricing, 12000)),
		evt(tenantID, "u", domain.EventClick, now, nil),
	}

	h := NewHeuristicLayer()
	assert.Equal(t, h.Score(events), h.Score(events))
}
