package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidIndicatorValue(t *testing.T) {
	for _, k := range AllIndicatorKeys() {
		assert.True(t, ValidIndicatorKey(string(k)))
		for _, v := range IndicatorValues(k) {
			assert.True(t, ValidIndicatorValue(k, v), "%s=%s", k, v)
		}
		assert.False(t, ValidIndicatorValue(k, "reckless"))
	}

	assert.False(t, ValidIndicatorKey("mood"))
	assert.False(t, ValidIndicatorValue(IndicatorRiskProfile, string(MoodAnxious)))
	assert.Nil(t, IndicatorValues("unknown"))
}

func TestIndicatorSet_WithCopies(t *testing.T) {
	base := NewIndicatorSet(ModelHeuristics).With(IndicatorRiskProfile, Indicator{Value: "moderate", Confidence: 0.6})
	next := base.With(IndicatorMood, Indicator{Value: "neutral", Confidence: 0.5})

	_, ok := base.Get(IndicatorMood)
	assert.False(t, ok, "With must not modify the receiver")
	assert.Len(t, next.Indicators, 2)
	assert.Equal(t, ModelHeuristics, next.Model)
	assert.Equal(t, map[string]float64{"risk_profile": 0.6, "emotional_state.mood": 0.5}, next.Confidences())
	assert.True(t, NewIndicatorSet(ModelML).IsEmpty())
}

func TestCreditLedger_NeedsReset(t *testing.T) {
	last := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := &CreditLedger{LastResetDate: last}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"same month", time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC), false},
		{"next month", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"next year earlier month", time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"clock behind", time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), false},
		{"previous year", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"non-UTC zone same UTC month", time.Date(2026, 4, 1, 1, 0, 0, 0, time.FixedZone("CET", 2*3600)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.NeedsReset(tt.now))
		})
	}
}

func TestBehavioralEvent_Payload(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		page    string
		dwell   float64
	}{
		{"json number", map[string]any{"page": "pricing", "dwell_ms": 1500.0}, "pricing", 1500},
		{"int", map[string]any{"dwell_ms": 20}, "", 20},
		{"negative", map[string]any{"dwell_ms": -5.0}, "", 0},
		{"wrong types", map[string]any{"page": 7, "dwell_ms": "long"}, "", 0},
		{"nil payload", nil, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := BehavioralEvent{Type: EventPageView, Payload: tt.payload}
			assert.Equal(t, tt.page, e.Page())
			assert.Equal(t, tt.dwell, e.DwellMillis())
		})
	}
}

func TestValidEnums(t *testing.T) {
	assert.True(t, ValidEventType("checkout_complete"))
	assert.False(t, ValidEventType("purchase"))
	assert.True(t, ValidResultCode("CIRCUIT_OPEN"))
	assert.False(t, ValidResultCode("TIMEOUT"))
}
