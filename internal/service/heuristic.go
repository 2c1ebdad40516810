package service

import (
	"fmt"
	"strings"

	"github.com/Harshitk-cp/psychograph/internal/domain"
)

// Signals are the window counters every layer reasons over.
type Signals struct {
	Events              int     `json:"events"`
	Clicks              int     `json:"clicks"`
	Hovers              int     `json:"hovers"`
	Scrolls             int     `json:"scrolls"`
	PageViews           int     `json:"page_views"`
	CheckoutStarts      int     `json:"checkout_starts"`
	CheckoutCompletions int     `json:"checkout_completions"`
	PricingViews        int     `json:"pricing_views"`
	ProductViews        int     `json:"product_views"`
	DwellSamples        int     `json:"dwell_samples"`
	AvgDwellSeconds     float64 `json:"avg_dwell_seconds"`
}

// ComputeSignals aggregates an event window. Unknown event types and
// malformed payloads contribute nothing.
func ComputeSignals(events []domain.BehavioralEvent) Signals {
	var s Signals
	var dwellTotal float64

	for _, e := range events {
		if !domain.ValidEventType(string(e.Type)) {
			continue
		}
		s.Events++

		switch e.Type {
		case domain.EventClick:
			s.Clicks++
		case domain.EventHover:
			s.Hovers++
		case domain.EventScroll:
			s.Scrolls++
		case domain.EventPageView:
			s.PageViews++
			switch e.Page() {
			case domain.PagePricing:
				s.PricingViews++
			case domain.PageProduct:
				s.ProductViews++
			}
		case domain.EventCheckoutStart:
			s.CheckoutStarts++
		case domain.EventCheckoutComplete:
			s.CheckoutCompletions++
		}

		if d := e.DwellMillis(); d > 0 {
			s.DwellSamples++
			dwellTotal += d
		}
	}

	if s.DwellSamples > 0 {
		s.AvgDwellSeconds = dwellTotal / float64(s.DwellSamples) / 1000
	}
	return s
}

// HighValue reports purchase intent strong enough to justify a model call.
func (s Signals) HighValue() bool {
	return s.CheckoutCompletions > 0 || s.CheckoutStarts >= 2 || s.PricingViews >= 3
}

func (s Signals) hasDwell() bool {
	return s.DwellSamples > 0
}

func (s Signals) Features() domain.FeatureVector {
	v := make(domain.FeatureVector, domain.FeatureDimensions)
	v[domain.FeatureClicks] = float32(s.Clicks)
	v[domain.FeatureHovers] = float32(s.Hovers)
	v[domain.FeatureScrolls] = float32(s.Scrolls)
	v[domain.FeatureCheckoutStarts] = float32(s.CheckoutStarts)
	v[domain.FeatureCheckoutCompletions] = float32(s.CheckoutCompletions)
	v[domain.FeaturePricingViews] = float32(s.PricingViews)
	v[domain.FeatureProductViews] = float32(s.ProductViews)
	v[domain.FeatureAvgDwellSeconds] = float32(s.AvgDwellSeconds)
	return v
}

// Summary renders the counters for a prompt or an evidence string. It holds
// aggregates only, never raw payloads.
func (s Signals) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "events=%d\n", s.Events)
	fmt.Fprintf(&sb, "clicks=%d hovers=%d scrolls=%d\n", s.Clicks, s.Hovers, s.Scrolls)
	fmt.Fprintf(&sb, "page_views=%d pricing_views=%d product_views=%d\n", s.PageViews, s.PricingViews, s.ProductViews)
	fmt.Fprintf(&sb, "checkout_starts=%d checkout_completions=%d\n", s.CheckoutStarts, s.CheckoutCompletions)
	fmt.Fprintf(&sb, "avg_dwell_seconds=%.1f (samples=%d)", s.AvgDwellSeconds, s.DwellSamples)
	return sb.String()
}

const (
	heuristicMinConfidence = 0.5
	heuristicMaxConfidence = 0.7
)

// HeuristicLayer maps window signals through fixed threshold rules. It is
// pure and deterministic.
type HeuristicLayer struct{}

func NewHeuristicLayer() *HeuristicLayer {
	return &HeuristicLayer{}
}

func (h *HeuristicLayer) Score(events []domain.BehavioralEvent) domain.IndicatorSet {
	return h.ScoreSignals(ComputeSignals(events))
}

func (h *HeuristicLayer) ScoreSignals(s Signals) domain.IndicatorSet {
	return domain.NewIndicatorSet(domain.ModelHeuristics).
		With(domain.IndicatorRiskProfile, riskRule(s)).
		With(domain.IndicatorCognitiveStyle, cognitiveRule(s)).
		With(domain.IndicatorMood, moodRule(s))
}

func riskRule(s Signals) domain.Indicator {
	switch {
	case s.CheckoutCompletions > 0 && s.hasDwell() && s.AvgDwellSeconds < 30:
		return heuristic(string(domain.RiskAggressive), 0.65)
	case s.PricingViews >= 3 && s.CheckoutCompletions == 0:
		return heuristic(string(domain.RiskConservative), 0.65)
	case s.Events == 0:
		return heuristic(string(domain.RiskModerate), 0.5)
	}
	return heuristic(string(domain.RiskModerate), 0.55)
}

func cognitiveRule(s Signals) domain.Indicator {
	switch {
	case s.AvgDwellSeconds >= 60 || (s.Scrolls > 0 && s.Scrolls > 2*s.Clicks):
		return heuristic(string(domain.CognitiveAnalytical), 0.60)
	case s.Clicks > 0 && s.Clicks > 2*s.Hovers && s.hasDwell() && s.AvgDwellSeconds < 20:
		return heuristic(string(domain.CognitiveIntuitive), 0.60)
	}
	return heuristic(string(domain.CognitiveBalanced), 0.50)
}

func moodRule(s Signals) domain.Indicator {
	switch {
	case s.CheckoutStarts >= 2 && s.CheckoutCompletions < s.CheckoutStarts:
		return heuristic(string(domain.MoodAnxious), 0.55)
	case s.CheckoutCompletions > 0:
		return heuristic(string(domain.MoodPositive), 0.60)
	case s.Clicks > 20 && s.hasDwell() && s.AvgDwellSeconds < 5:
		return heuristic(string(domain.MoodFrustrated), 0.55)
	}
	return heuristic(string(domain.MoodNeutral), 0.50)
}

func heuristic(value string, confidence float64) domain.Indicator {
	return domain.Indicator{Value: value, Confidence: clamp(confidence, heuristicMinConfidence, heuristicMaxConfidence)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
