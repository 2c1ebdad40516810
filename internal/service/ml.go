package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Harshitk-cp/psychograph/internal/domain"
	"go.uber.org/zap"
)

var ErrInvalidPrediction = errors.New("invalid prediction")

// Predictor scores a feature vector. Implementations may be remote and may fail.
type Predictor interface {
	Predict(ctx context.Context, features domain.FeatureVector) (map[domain.IndicatorKey]domain.Indicator, error)
}

// ClassWeights holds one weight per feature dimension plus a bias.
type ClassWeights struct {
	Weights []float64
	Bias    float64
}

// LinearPredictor is a per-key softmax over linear class scores of
// log-scaled features.
type LinearPredictor struct {
	Classes map[domain.IndicatorKey]map[string]ClassWeights
}

// feature order: clicks, hovers, scrolls, checkout starts, checkout
// completions, pricing views, product views, avg dwell seconds
func DefaultLinearPredictor() *LinearPredictor {
	return &LinearPredictor{Classes: map[domain.IndicatorKey]map[string]ClassWeights{
		domain.IndicatorRiskProfile: {
			string(domain.RiskConservative): {Weights: []float64{0, 0.1, 0.2, 0.1, -0.8, 0.9, 0.3, 0.3}},
			string(domain.RiskModerate):     {Weights: []float64{0.1, 0.1, 0.1, 0.2, 0.2, 0.2, 0.2, 0.1}, Bias: 0.4},
			string(domain.RiskAggressive):   {Weights: []float64{0.3, -0.1, -0.2, 0.5, 1.0, -0.4, 0.1, -0.5}},
		},
		domain.IndicatorCognitiveStyle: {
			string(domain.CognitiveAnalytical): {Weights: []float64{-0.2, 0.3, 0.6, 0, 0, 0.3, 0.3, 0.7}},
			string(domain.CognitiveIntuitive):  {Weights: []float64{0.7, -0.3, -0.3, 0.1, 0.2, -0.2, 0, -0.5}},
			string(domain.CognitiveBalanced):   {Weights: []float64{0.2, 0.2, 0.2, 0.1, 0.1, 0.1, 0.1, 0.1}, Bias: 0.3},
		},
		domain.IndicatorMood: {
			string(domain.MoodPositive):   {Weights: []float64{0, 0, 0, 0.1, 1.2, 0, 0.1, 0}},
			string(domain.MoodNeutral):    {Weights: []float64{0.1, 0.1, 0.1, 0, 0, 0.1, 0.1, 0.1}, Bias: 0.5},
			string(domain.MoodAnxious):    {Weights: []float64{0, 0.1, 0, 0.9, -0.6, 0.4, 0, 0}},
			string(domain.MoodFrustrated): {Weights: []float64{0.6, -0.2, 0.1, 0, -0.3, 0, 0, -0.6}},
		},
	}}
}

func (p *LinearPredictor) Predict(ctx context.Context, features domain.FeatureVector) (map[domain.IndicatorKey]domain.Indicator, error) {
	if len(features) != domain.FeatureDimensions {
		return nil, fmt.Errorf("expected %d features, got %d", domain.FeatureDimensions, len(features))
	}

	x := make([]float64, len(features))
	for i, f := range features {
		x[i] = math.Log1p(math.Max(float64(f), 0))
	}

	out := make(map[domain.IndicatorKey]domain.Indicator, len(p.Classes))
	for key, classes := range p.Classes {
		best, conf, err := softmaxArgmax(x, domain.IndicatorValues(key), classes)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = domain.Indicator{Value: best, Confidence: conf}
	}
	return out, nil
}

// softmaxArgmax iterates values in their declared order so ties resolve
// deterministically.
func softmaxArgmax(x []float64, values []string, classes map[string]ClassWeights) (string, float64, error) {
	scores := make([]float64, 0, len(values))
	names := make([]string, 0, len(values))
	maxScore := math.Inf(-1)

	for _, v := range values {
		cw, ok := classes[v]
		if !ok {
			continue
		}
		if len(cw.Weights) != len(x) {
			return "", 0, fmt.Errorf("class %s has %d weights", v, len(cw.Weights))
		}
		s := cw.Bias
		for i := range x {
			s += cw.Weights[i] * x[i]
		}
		scores = append(scores, s)
		names = append(names, v)
		maxScore = math.Max(maxScore, s)
	}
	if len(scores) == 0 {
		return "", 0, errors.New("no classes")
	}

	var sum float64
	for i := range scores {
		scores[i] = math.Exp(scores[i] - maxScore)
		sum += scores[i]
	}

	bestIdx := 0
	for i := range scores {
		if scores[i] > scores[bestIdx] {
			bestIdx = i
		}
	}
	return names[bestIdx], scores[bestIdx] / sum, nil
}

// MLLayer wraps a Predictor and never fails: any bad prediction degrades to
// an empty set carrying the model tag.
type MLLayer struct {
	predictor Predictor
	model     string
	logger    *zap.Logger
}

func NewMLLayer(predictor Predictor, logger *zap.Logger) *MLLayer {
	if predictor == nil {
		predictor = DefaultLinearPredictor()
	}
	return &MLLayer{predictor: predictor, model: domain.ModelML, logger: logger}
}

func (l *MLLayer) Score(ctx context.Context, events []domain.BehavioralEvent) domain.IndicatorSet {
	return l.ScoreFeatures(ctx, ComputeSignals(events).Features())
}

func (l *MLLayer) ScoreFeatures(ctx context.Context, features domain.FeatureVector) domain.IndicatorSet {
	empty := domain.NewIndicatorSet(l.model)

	pred, err := l.predictor.Predict(ctx, features)
	if err == nil {
		err = checkPrediction(pred)
	}
	if err != nil {
		l.logger.Warn("ml layer unavailable, continuing without it", zap.String("model", l.model), zap.Error(err))
		return empty
	}

	set := empty
	for _, k := range domain.AllIndicatorKeys() {
		set = set.With(k, pred[k])
	}
	return set
}

func checkPrediction(pred map[domain.IndicatorKey]domain.Indicator) error {
	for _, k := range domain.AllIndicatorKeys() {
		ind, ok := pred[k]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrInvalidPrediction, k)
		}
		if !domain.ValidIndicatorValue(k, ind.Value) {
			return fmt.Errorf("%w: %s=%q", ErrInvalidPrediction, k, ind.Value)
		}
		if math.IsNaN(ind.Confidence) || ind.Confidence < 0 || ind.Confidence > 1 {
			return fmt.Errorf("%w: %s confidence %v", ErrInvalidPrediction, k, ind.Confidence)
		}
	}
	return nil
}
