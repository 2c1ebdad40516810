package domain

type IndicatorKey string

const (
	IndicatorRiskProfile    IndicatorKey = "risk_profile"
	IndicatorCognitiveStyle IndicatorKey = "cognitive_style"
	IndicatorMood           IndicatorKey = "emotional_state.mood"
)

// AllIndicatorKeys returns the indicator keys in fusion order.
func AllIndicatorKeys() []IndicatorKey {
	return []IndicatorKey{IndicatorRiskProfile, IndicatorCognitiveStyle, IndicatorMood}
}

func ValidIndicatorKey(k string) bool {
	switch IndicatorKey(k) {
	case IndicatorRiskProfile, IndicatorCognitiveStyle, IndicatorMood:
		return true
	}
	return false
}

type RiskProfile string

const (
	RiskConservative RiskProfile = "conservative"
	RiskModerate     RiskProfile = "moderate"
	RiskAggressive   RiskProfile = "aggressive"
)

type CognitiveStyle string

const (
	CognitiveAnalytical CognitiveStyle = "analytical"
	CognitiveIntuitive  CognitiveStyle = "intuitive"
	CognitiveBalanced   CognitiveStyle = "balanced"
)

type Mood string

const (
	MoodPositive   Mood = "positive"
	MoodNeutral    Mood = "neutral"
	MoodAnxious    Mood = "anxious"
	MoodFrustrated Mood = "frustrated"
)

// IndicatorValues returns the closed value set for a key.
func IndicatorValues(k IndicatorKey) []string {
	switch k {
	case IndicatorRiskProfile:
		return []string{string(RiskConservative), string(RiskModerate), string(RiskAggressive)}
	case IndicatorCognitiveStyle:
		return []string{string(CognitiveAnalytical), string(CognitiveIntuitive), string(CognitiveBalanced)}
	case IndicatorMood:
		return []string{string(MoodPositive), string(MoodNeutral), string(MoodAnxious), string(MoodFrustrated)}
	}
	return nil
}

func ValidIndicatorValue(k IndicatorKey, v string) bool {
	switch k {
	case IndicatorRiskProfile:
		switch RiskProfile(v) {
		case RiskConservative, RiskModerate, RiskAggressive:
			return true
		}
	case IndicatorCognitiveStyle:
		switch CognitiveStyle(v) {
		case CognitiveAnalytical, CognitiveIntuitive, CognitiveBalanced:
			return true
		}
	case IndicatorMood:
		switch Mood(v) {
		case MoodPositive, MoodNeutral, MoodAnxious, MoodFrustrated:
			return true
		}
	}
	return false
}

type Indicator struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Model provenance tags for the built-in layers.
const (
	ModelHeuristics = "heuristics@v1"
	ModelML         = "ml@v3"
	ModelLLMPrefix  = "llm@"
)

// IndicatorSet is the output of one inference layer. Layers build a fresh set
// per call; With returns a copy so a published set is never modified.
type IndicatorSet struct {
	Model      string                     `json:"model"`
	Indicators map[IndicatorKey]Indicator `json:"indicators"`
}

func NewIndicatorSet(model string) IndicatorSet {
	return IndicatorSet{Model: model, Indicators: make(map[IndicatorKey]Indicator)}
}

// With returns a copy of s with k set to ind.
func (s IndicatorSet) With(k IndicatorKey, ind Indicator) IndicatorSet {
	out := IndicatorSet{Model: s.Model, Indicators: make(map[IndicatorKey]Indicator, len(s.Indicators)+1)}
	for key, v := range s.Indicators {
		out.Indicators[key] = v
	}
	out.Indicators[k] = ind
	return out
}

func (s IndicatorSet) Get(k IndicatorKey) (Indicator, bool) {
	ind, ok := s.Indicators[k]
	return ind, ok
}

func (s IndicatorSet) IsEmpty() bool {
	return len(s.Indicators) == 0
}

// Confidences flattens the set into key -> confidence.
func (s IndicatorSet) Confidences() map[string]float64 {
	out := make(map[string]float64, len(s.Indicators))
	for k, v := range s.Indicators {
		out[string(k)] = v.Confidence
	}
	return out
}

// Feature vector layout shared by the heuristic and ML layers.
const (
	FeatureClicks = iota
	FeatureHovers
	FeatureScrolls
	FeatureCheckoutStarts
	FeatureCheckoutCompletions
	FeaturePricingViews
	FeatureProductViews
	FeatureAvgDwellSeconds
	FeatureDimensions
)

type FeatureVector []float32
